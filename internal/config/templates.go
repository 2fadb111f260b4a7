package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown plan format: %s", format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("plan already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `name = "default"
codes = "hilHILfd"
min_len = 1
max_len = 9
suites = ["roundtrip", "type-default", "count", "count-type", "window", "full", "bad-message"]
`

const yamlTemplate = `name: default
codes: hilHILfd
min_len: 1
max_len: 9
suites:
  - roundtrip
  - type-default
  - count
  - count-type
  - window
  - full
  - bad-message
`
