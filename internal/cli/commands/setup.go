package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/driftwood-labs/salespipe/internal/cli/config"
	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
	"github.com/driftwood-labs/salespipe/internal/warehouse"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *pipeline.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need database access.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	dataDir := getEnvOrDefault("SALESPIPE_DATA_DIR", config.DefaultDataDir)
	database := os.Getenv("SALESPIPE_DATABASE")
	statePath := getEnvOrDefault("SALESPIPE_STATE_PATH", config.DefaultStateFile)
	verbose := os.Getenv("SALESPIPE_VERBOSE") == "true"
	outputFormat := os.Getenv("SALESPIPE_OUTPUT")

	clusters := config.DefaultClusters
	if v, err := strconv.Atoi(os.Getenv("SALESPIPE_CLUSTERS")); err == nil && v > 0 {
		clusters = v
	}
	seed := int64(config.DefaultSeed)
	if v, err := strconv.ParseInt(os.Getenv("SALESPIPE_SEED"), 10, 64); err == nil {
		seed = v
	}

	return &config.Config{
		DataDir:      dataDir,
		CleanedDir:   filepath.Join(dataDir, config.DefaultCleanedName),
		ProcessedDir: filepath.Join(dataDir, config.DefaultProcessedName),
		DatabasePath: database,
		StatePath:    statePath,
		Clusters:     clusters,
		Seed:         seed,
		Verbose:      verbose,
		OutputFormat: outputFormat,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*pipeline.Engine, error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, err
		}
	}

	params, err := warehouse.DecodeParams(cfg.GetWarehouseConfig().Params)
	if err != nil {
		return nil, err
	}

	pipelineCfg := pipeline.Config{
		DataDir:         cfg.DataDir,
		CleanedDir:      cfg.CleanedDir,
		ProcessedDir:    cfg.ProcessedDir,
		DatabasePath:    cfg.DatabasePath,
		StatePath:       cfg.StatePath,
		WarehouseParams: params,
		Logger:          logger,
	}

	return pipeline.New(pipelineCfg)
}
