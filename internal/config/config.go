package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SweepPlan is the on-disk form of a conformance sweep.
type SweepPlan struct {
	Name   string   `toml:"name" yaml:"name" json:"name"`
	Codes  string   `toml:"codes" yaml:"codes" json:"codes"`
	MinLen *int     `toml:"min_len" yaml:"min_len" json:"min_len"`
	MaxLen *int     `toml:"max_len" yaml:"max_len" json:"max_len"`
	Suites []string `toml:"suites" yaml:"suites" json:"suites"`
}

// DefaultSweepPlan covers every suite for codes hilHILfd and lengths 1..9.
func DefaultSweepPlan() SweepPlan {
	minLen, maxLen := 1, 9
	return SweepPlan{
		Name:   "default",
		Codes:  "hilHILfd",
		MinLen: &minLen,
		MaxLen: &maxLen,
	}
}

// LoadSweepPlan reads a plan from a .toml, .yaml, or .yml file. Unset fields
// keep their defaults.
func LoadSweepPlan(path string) (SweepPlan, error) {
	cfg := DefaultSweepPlan()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := loadToml(path, &cfg); err != nil {
			return SweepPlan{}, err
		}
	case ".yaml", ".yml":
		if err := loadYaml(path, &cfg); err != nil {
			return SweepPlan{}, err
		}
	default:
		return SweepPlan{}, fmt.Errorf("config load failed (%s): unsupported plan format", path)
	}
	if err := ValidateSweepPlan(cfg); err != nil {
		return SweepPlan{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func loadYaml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateSweepPlan(cfg SweepPlan) error {
	if strings.TrimSpace(cfg.Codes) == "" {
		return fmt.Errorf("sweep plan missing codes")
	}
	if cfg.MinLen == nil || cfg.MaxLen == nil {
		return fmt.Errorf("sweep plan missing length range")
	}
	if *cfg.MinLen < 0 {
		return fmt.Errorf("sweep plan min_len must be >= 0")
	}
	if *cfg.MaxLen < *cfg.MinLen {
		return fmt.Errorf("sweep plan max_len %d below min_len %d", *cfg.MaxLen, *cfg.MinLen)
	}
	_, err := cfg.Options()
	return err
}
