package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace config file.
const FileName = "taskline.yml"

// DataDir holds the save file and journal inside a workspace.
const DataDir = ".taskline"

// Config models taskline.yml.
type Config struct {
	Storage struct {
		File string `yaml:"file"`
	} `yaml:"storage"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Journal struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"journal"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	if strings.ContainsAny(c.Storage.File, "\n\x00") {
		return fmt.Errorf("config.storage.file is not a valid path")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// SaveFile resolves the save file location. Relative paths are taken from
// the workspace; an empty setting falls back to .taskline/tasks.txt.
func (c *Config) SaveFile(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	file := c.Storage.File
	if file == "" {
		return filepath.Join(workspace, DataDir, "tasks.txt")
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(workspace, file)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `storage:
  # relative paths are resolved against the workspace
  file: .taskline/tasks.txt

log:
  level: warn

journal:
  enabled: true

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  # bearer tokens are required when set
  jwt_secret: ""
`
