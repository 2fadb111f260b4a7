package testlog

import (
	"testing"

	"github.com/danmuck/msgbuf/internal/logging"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logf records a test progress line through the shared logger.
func Logf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}
