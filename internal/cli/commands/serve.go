package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/pipeline"
	"github.com/driftwood-labs/salespipe/internal/report"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Port      int
	NoBrowser bool
	Watch     bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline artifacts over HTTP",
		Long: `Start a local web server listing the cleaned and processed artifacts.

The index page links every exported CSV and the cluster chart. With
--watch, the pipeline re-runs whenever a raw CSV changes, so the served
artifacts stay current.`,
		Example: `  # Serve on the default port
  salespipe serve

  # Serve on a custom port without opening the browser
  salespipe serve --port 3000 --no-browser

  # Rebuild automatically when raw CSVs change
  salespipe serve --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 0, "Port to serve on (default: 8765)")
	cmd.Flags().BoolVar(&opts.NoBrowser, "no-browser", false, "Don't auto-open browser")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Re-run the pipeline when raw CSVs change")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg

	// Get serve config with defaults
	serveCfg := cfg.GetServeConfig()

	// CLI flags override config file
	port := serveCfg.Port
	if opts.Port != 0 {
		port = opts.Port
	}

	autoOpen := serveCfg.AutoOpen
	if opts.NoBrowser {
		autoOpen = false
	}

	watch := serveCfg.Watch
	if cmd.Flags().Changed("watch") {
		watch = opts.Watch
	}

	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}

	eng := cmdCtx.Engine
	rebuild := func(ctx context.Context) error {
		if _, _, err := eng.Prep(ctx); err != nil {
			return err
		}
		_, err := eng.Segment(ctx, pipeline.SegmentOptions{
			Clusters: cfg.Clusters,
			Seed:     cfg.Seed,
		})
		return err
	}

	server := report.NewServer(report.ServerConfig{
		DataDir:      cfg.DataDir,
		CleanedDir:   cfg.CleanedDir,
		ProcessedDir: cfg.ProcessedDir,
		Port:         port,
		Watch:        watch,
		Rebuild:      rebuild,
		Logger:       cmdCtx.Logger,
	})

	// Open browser if configured
	if autoOpen {
		go openBrowser(server.URL())
	}

	fmt.Printf("Starting report server on %s\n", server.URL())
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}
