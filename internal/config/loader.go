package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/NFTIndexor/pkg/config"
	"gopkg.in/yaml.v3"
)

type format struct {
	name      string
	unmarshal func([]byte, any) error
}

var (
	formatYAML = format{name: "YAML", unmarshal: yaml.Unmarshal}
	formatJSON = format{name: "JSON", unmarshal: json.Unmarshal}
	formatTOML = format{name: "TOML", unmarshal: toml.Unmarshal}

	formatsByExt = map[string]format{
		".yaml": formatYAML,
		".yml":  formatYAML,
		".json": formatJSON,
		".toml": formatTOML,
	}
)

// LoadFromFile picks the format from the file extension (.yaml, .yml, .json
// or .toml). ${VAR} references in the file are expanded from the environment
// before parsing, so RPC keys can stay out of the file.
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))

	f, ok := formatsByExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}

	return load(path, f)
}

func LoadFromYAML(path string) (*pkgconfig.Config, error) { return load(path, formatYAML) }

func LoadFromJSON(path string) (*pkgconfig.Config, error) { return load(path, formatJSON) }

func LoadFromTOML(path string) (*pkgconfig.Config, error) { return load(path, formatTOML) }

func load(path string, f format) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := f.unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", f.name, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
