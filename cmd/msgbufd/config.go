package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/msgbuf/internal/logging"
	"github.com/danmuck/msgbuf/internal/protocol/frame"
	"github.com/danmuck/msgbuf/internal/server"
	"github.com/rs/zerolog"
)

type daemonConfig struct {
	ID          string
	Addr        string
	CorsOrigins []string
	MaxSweepLen int
	Limits      frame.Limits
	LogLevel    zerolog.Level
	levelSet    bool
}

type fileConfig struct {
	ID              string   `toml:"id"`
	Addr            string   `toml:"addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	MaxSweepLen     int      `toml:"max_sweep_len"`
	MaxPayloadBytes int64    `toml:"max_payload_bytes"`
	LogLevel        string   `toml:"log_level"`
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		ID:          "msgbufd",
		Addr:        ":9200",
		CorsOrigins: []string{"http://localhost:3000"},
		MaxSweepLen: server.DefaultMaxSweepLen,
		Limits:      frame.DefaultLimits(),
		LogLevel:    zerolog.InfoLevel,
	}
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load msgbufd config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemonConfig{}, fmt.Errorf("load msgbufd config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}

	if meta.IsDefined("addr") {
		addr := strings.TrimSpace(raw.Addr)
		if addr == "" {
			return daemonConfig{}, fmt.Errorf("addr must not be empty")
		}
		cfg.Addr = addr
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if meta.IsDefined("max_sweep_len") {
		if raw.MaxSweepLen < 0 {
			return daemonConfig{}, fmt.Errorf("max_sweep_len must be >= 0, got %d", raw.MaxSweepLen)
		}
		cfg.MaxSweepLen = raw.MaxSweepLen
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 {
			return daemonConfig{}, fmt.Errorf("max_payload_bytes must be > 0, got %d", raw.MaxPayloadBytes)
		}
		cfg.Limits.MaxPayloadBytes = uint64(raw.MaxPayloadBytes)
	}

	if meta.IsDefined("log_level") {
		level, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return daemonConfig{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
		cfg.levelSet = true
	}

	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
