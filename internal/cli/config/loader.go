package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// findConfigFile finds the config file to use.
// Priority: explicit path > salespipe.yaml > salespipe.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("salespipe.yaml"); err == nil {
		return "salespipe.yaml"
	}
	if _, err := os.Stat("salespipe.yml"); err == nil {
		return "salespipe.yml"
	}
	return ""
}

// configExistsIn checks if a salespipe config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"salespipe.yaml", "salespipe.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a salespipe config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root from CLI flags and filesystem.
// Priority:
//  1. Infer from --data-dir (parent if it contains a config or is named "data")
//  2. Search upward from CWD for salespipe.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	// 1. Infer from --data-dir
	if flags != nil {
		if dataDir, _ := flags.GetString("data-dir"); dataDir != "" && flags.Changed("data-dir") {
			absData, err := filepath.Abs(dataDir)
			if err == nil {
				parent := filepath.Dir(absData)

				// If parent has a config file, it's the project root
				if configExistsIn(parent) {
					return parent
				}

				// If the folder is named "data", assume parent is root
				if filepath.Base(absData) == "data" {
					return parent
				}
			}
		}
	}

	// 2. Search upward from CWD for salespipe.yaml
	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	// 3. Default to CWD
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// Infer project root from flags before loading config.
	// This enables --data-dir testdata/data to imply the project root
	// testdata/ without an explicit config file.
	projectRoot := inferProjectRoot(flags)

	// Track paths that were explicitly provided as flags (already relative
	// to CWD). These are converted to absolute paths before the normal
	// resolution step, to prevent double-resolution when the project root
	// was inferred from them.
	var flagDataDir, flagStatePath, flagDatabase string
	if flags != nil {
		if flags.Changed("data-dir") {
			if v, _ := flags.GetString("data-dir"); v != "" {
				flagDataDir, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("state") {
			if v, _ := flags.GetString("state"); v != "" {
				flagStatePath, _ = filepath.Abs(v)
			}
		}
		if flags.Changed("database") {
			if v, _ := flags.GetString("database"); v != "" {
				flagDatabase, _ = filepath.Abs(v)
			}
		}
	}

	// If an explicit config file is provided, use its directory as project
	// root (unless a more specific hint was given via flags)
	if cfgFile != "" && projectRoot == inferProjectRoot(nil) {
		// No flag-based inference happened, use the config file's directory
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"data_dir":   DefaultDataDir,
		"state_path": DefaultStateFile,
		"clusters":   DefaultClusters,
		"seed":       DefaultSeed,
		"verbose":    false,
		"output":     DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file.
	// Search in the project root if no explicit config file was provided.
	if cfgFile == "" {
		for _, name := range []string{"salespipe.yaml", "salespipe.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (SALESPIPE_ prefix).
	// Transform: SALESPIPE_DATA_DIR -> data_dir, double underscores nest:
	// SALESPIPE_SERVE__PORT -> serve.port
	if err := k.Load(env.Provider("SALESPIPE_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "SALESPIPE_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority, overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses --state for brevity, but the config struct
			// uses state_path for clarity
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Set project root and resolve relative paths.
	// Paths explicitly provided via flags use the pre-computed absolute
	// paths (already relative to CWD at flag parse time). Paths from the
	// config file or defaults resolve relative to the project root.
	cfg.ProjectRoot = projectRoot

	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	} else {
		cfg.DataDir = resolvePathRelativeTo(cfg.DataDir, projectRoot)
	}
	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(expandEnvVars(cfg.StatePath), projectRoot)
	}
	if flagDatabase != "" {
		cfg.DatabasePath = flagDatabase
	} else {
		cfg.DatabasePath = resolvePathRelativeTo(expandEnvVars(cfg.DatabasePath), projectRoot)
	}

	// The cleaned and processed directories default to subdirectories of
	// the data directory when not configured.
	if cfg.CleanedDir == "" {
		cfg.CleanedDir = filepath.Join(cfg.DataDir, DefaultCleanedName)
	} else {
		cfg.CleanedDir = resolvePathRelativeTo(cfg.CleanedDir, projectRoot)
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.DataDir, DefaultProcessedName)
	} else {
		cfg.ProcessedDir = resolvePathRelativeTo(cfg.ProcessedDir, projectRoot)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
