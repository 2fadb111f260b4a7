package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/msgbuf/internal/observability"
	"github.com/danmuck/msgbuf/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to msgbufd TOML config")
	flag.Parse()

	logger := observability.InitLogger("msgbufd")

	cfg := defaultDaemonConfig()
	if *configPath != "" {
		loaded, err := loadDaemonConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
		}
		cfg = loaded
	}
	if cfg.levelSet {
		zerolog.SetGlobalLevel(cfg.LogLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := server.Appear(cfg.ID, cfg.Addr, cfg.CorsOrigins)
	s.MaxSweepLen = cfg.MaxSweepLen
	s.Limits = cfg.Limits
	if err := s.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("msgbufd exited")
		os.Exit(1)
	}
}
