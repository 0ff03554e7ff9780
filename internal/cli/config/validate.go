package config

import (
	"fmt"
	"os"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (expected auto, text, markdown, or json)", c.OutputFormat)
	}

	if c.Clusters < 2 {
		return fmt.Errorf("clusters must be at least 2, got %d", c.Clusters)
	}

	if s := c.Serve; s != nil && s.Port != 0 && (s.Port < 1 || s.Port > 65535) {
		return fmt.Errorf("serve port out of range: %d", s.Port)
	}

	// Only validate directory existence if we're running a command that
	// needs it. This allows help commands to work without a valid directory.
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.DataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s\nHint: Create the directory or use --data-dir to specify a different path", c.DataDir)
	}
	return nil
}
