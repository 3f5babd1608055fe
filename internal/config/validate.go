package config

import (
	"fmt"
	"strings"
)

// Validate checks the loaded configuration. Load calls it automatically;
// callers that override fields afterwards should call it again.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0 (got %d)", c.Server.MaxBodyBytes)
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendJSONFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q (got %q)", BackendJSONFile, BackendSQLite, c.Storage.Backend)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}

	return nil
}
