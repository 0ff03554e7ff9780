// Package config provides configuration management for the salespipe CLI.
//
// Configuration is loaded from salespipe.yaml, environment variables with
// the SALESPIPE_ prefix, and command-line flags, in increasing order of
// precedence. Relative paths are resolved against the project root, which
// is discovered by searching upward from the working directory.
package config

// ServeConfig holds configuration for the report server.
type ServeConfig struct {
	Port     int  `koanf:"port"`
	AutoOpen bool `koanf:"auto_open"`
	Watch    bool `koanf:"watch"`
}

// DefaultServeConfig returns a ServeConfig with default values.
func DefaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Port:     8765,
		AutoOpen: true,
		Watch:    false,
	}
}

// GetServeConfig returns the serve config with defaults applied for any
// unset values.
func (c *Config) GetServeConfig() *ServeConfig {
	if c.Serve == nil {
		return DefaultServeConfig()
	}
	s := c.Serve
	if s.Port == 0 {
		s.Port = 8765
	}
	return s
}

// WarehouseConfig holds optional DuckDB session settings, passed through
// to the connection as key=value settings on open.
type WarehouseConfig struct {
	Params map[string]any `koanf:"params"`
}

// GetWarehouseConfig returns the warehouse config, never nil.
func (c *Config) GetWarehouseConfig() *WarehouseConfig {
	if c.Warehouse == nil {
		return &WarehouseConfig{}
	}
	return c.Warehouse
}

// Config holds all CLI configuration options.
type Config struct {
	DataDir      string           `koanf:"data_dir"`
	CleanedDir   string           `koanf:"cleaned_dir"`
	ProcessedDir string           `koanf:"processed_dir"`
	DatabasePath string           `koanf:"database"`
	StatePath    string           `koanf:"state_path"`
	Clusters     int              `koanf:"clusters"`
	Seed         int64            `koanf:"seed"`
	Verbose      bool             `koanf:"verbose"`
	OutputFormat string           `koanf:"output"`
	Serve        *ServeConfig     `koanf:"serve"`
	Warehouse    *WarehouseConfig `koanf:"warehouse"`

	// ProjectRoot is the resolved project root directory. It is derived
	// during loading, never read from the config file.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultDataDir       = "data"
	DefaultCleanedName   = "cleaned_data"
	DefaultProcessedName = "processed_data"
	DefaultStateFile     = ".salespipe/state.db"
	DefaultClusters      = 4
	DefaultSeed          = 42
	DefaultOutput        = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)
