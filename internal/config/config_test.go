package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/msgbuf/internal/sweep"
)

func writePlan(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadSweepPlanToml(t *testing.T) {
	path := writePlan(t, "plan.toml", `name = "ints"
codes = "iI"
max_len = 4
suites = ["roundtrip", "full"]
`)
	cfg, err := LoadSweepPlan(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "ints" || cfg.Codes != "iI" || *cfg.MinLen != 1 || *cfg.MaxLen != 4 {
		t.Fatalf("unexpected plan %+v", cfg)
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if len(opts.Suites) != 2 || opts.Suites[0] != sweep.SuiteRoundTrip || opts.Suites[1] != sweep.SuiteFull {
		t.Fatalf("unexpected suites %v", opts.Suites)
	}
}

func TestLoadSweepPlanYaml(t *testing.T) {
	path := writePlan(t, "plan.yml", `codes: fd
min_len: 0
max_len: 2
`)
	cfg, err := LoadSweepPlan(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if cfg.Name != "default" || opts.Codes != "fd" || opts.MinLen != 0 || opts.MaxLen != 2 {
		t.Fatalf("unexpected options %+v from %+v", opts, cfg)
	}
	if len(opts.Suites) != len(sweep.Suites()) {
		t.Fatalf("empty suite list should select all suites, got %v", opts.Suites)
	}
}

func TestLoadSweepPlanRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
		want string
	}{
		{"format", "plan.json", `{}`, "unsupported plan format"},
		{"parse", "plan.toml", `codes = [`, "config parse failed"},
		{"codes", "plan.toml", `codes = ""`, "missing codes"},
		{"unknown code", "plan.yaml", "codes: iz\n", "unknown type code"},
		{"range", "plan.toml", "min_len = 5\nmax_len = 2\n", "below min_len"},
		{"negative", "plan.yaml", "min_len: -1\n", "min_len must be"},
		{"suite", "plan.toml", `suites = ["collectives"]`, "unknown suite"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadSweepPlan(writePlan(t, tc.file, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if _, err := LoadSweepPlan(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTemplatesLoad(t *testing.T) {
	for _, format := range []string{"toml", "yaml"} {
		path := filepath.Join(t.TempDir(), "plan."+format)
		if err := WriteTemplate(path, format, false); err != nil {
			t.Fatalf("write %s template: %v", format, err)
		}
		if err := WriteTemplate(path, format, false); err == nil {
			t.Fatalf("expected refusal to overwrite %s", path)
		}
		cfg, err := LoadSweepPlan(path)
		if err != nil {
			t.Fatalf("load %s template: %v", format, err)
		}
		opts, err := cfg.Options()
		if err != nil {
			t.Fatalf("%s template options: %v", format, err)
		}
		def := sweep.DefaultOptions()
		if opts.Codes != def.Codes || opts.MinLen != def.MinLen || opts.MaxLen != def.MaxLen || len(opts.Suites) != len(def.Suites) {
			t.Fatalf("%s template differs from defaults: %+v", format, opts)
		}
	}
	if _, err := Template("ini"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
