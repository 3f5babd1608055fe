package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when CONFIG_PATH is unset. It may be absent.
const DefaultPath = "./config.yaml"

// Override adjusts the configuration after files and environment have
// been read and before it is validated. Command-line flags use it.
type Override func(*Config)

// WithStorage replaces the storage backend and path. Empty values keep
// what the file or environment set.
func WithStorage(backend, path string) Override {
	return func(c *Config) {
		if backend != "" {
			c.Storage.Backend = backend
		}
		if path != "" {
			c.Storage.Path = path
		}
	}
}

// Load builds the configuration from, in increasing priority: env-default
// tags, the YAML file, environment variables, then overrides.
func Load(overrides ...Override) (*Config, error) {
	var cfg Config
	if err := readSources(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// readSources fills cfg from the YAML file named by CONFIG_PATH (or
// DefaultPath) and the environment. Only an explicitly named file must
// exist.
func readSources(cfg *Config) error {
	path, explicit := os.LookupEnv("CONFIG_PATH")
	if !explicit || path == "" {
		path, explicit = DefaultPath, false
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return nil
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("file %s: %w", path, err)
	default:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("read env: %w", err)
		}
		return nil
	}
}
