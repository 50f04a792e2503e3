package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// MergeFile overlays the YAML or TOML file at path onto c. The format is
// chosen by extension; keys absent from the file keep their current value.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
