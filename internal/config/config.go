package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models sprintdeck.yml.
type Config struct {
	Org struct {
		ID string `yaml:"id"`
	} `yaml:"org"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		// JWTSecretEnv names the environment variable holding the HS256
		// secret; the secret itself never lives in the file.
		JWTSecretEnv string `yaml:"jwt_secret_env"`
	} `yaml:"auth"`
	Store struct {
		Backend string `yaml:"backend"` // sqlite or memory
	} `yaml:"store"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with sd init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(""), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	switch c.Store.Backend {
	case "", "sqlite", "memory":
	default:
		return fmt.Errorf("config.store.backend must be sqlite or memory")
	}
	return nil
}

// JWTSecret resolves the signing secret from the configured env var.
func (c *Config) JWTSecret() string {
	name := c.Auth.JWTSecretEnv
	if name == "" {
		name = "SPRINTDECK_JWT_SECRET"
	}
	return os.Getenv(name)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sprintdeck.yml")
}

// Default returns the default Config for an org.
func Default(orgID string) *Config {
	if orgID == "" {
		orgID = "default-org"
	}
	var cfg Config
	_ = yaml.Unmarshal([]byte(GenerateDefault(orgID)), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultTemplate = `org:
  id: %s

server:
  addr: ":8080"
  base_path: /v1

auth:
  jwt_secret_env: SPRINTDECK_JWT_SECRET

store:
  backend: sqlite
`
