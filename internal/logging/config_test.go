package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		" DEBUG ":  zerolog.DebugLevel,
		"warning":  zerolog.WarnLevel,
		"off":      zerolog.Disabled,
		"error":    zerolog.ErrorLevel,
		"info":     zerolog.InfoLevel,
		"disabled": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("unknown level must not parse")
	}
	if _, ok := ParseLevel(""); ok {
		t.Fatalf("empty level must not parse")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogTimestamp, "false")
	t.Setenv(EnvLogNoColor, "true")
	t.Setenv(EnvLogJSON, "nope")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel || cfg.Timestamp || !cfg.NoColor || cfg.JSON {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestApplyJSONWritesStructuredLines(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var out bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, JSON: true, Out: &out})
	log.Debug().Msg("hidden")
	log.Info().Str("datatype", "i").Msg("visible")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Fatalf("debug line leaked at info level: %s", got)
	}
	if !strings.Contains(got, `"datatype":"i"`) || !strings.Contains(got, `"message":"visible"`) {
		t.Fatalf("unexpected log output: %s", got)
	}
}
