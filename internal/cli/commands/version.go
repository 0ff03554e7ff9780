package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
)

// VersionInfo describes the build.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Date    string `json:"date,omitempty"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display salespipe version and build information.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "salespipe v%s\n", info.Version)
			if info.Commit != "" {
				_, _ = fmt.Fprintf(out, "commit: %s\n", info.Commit)
			}
			if info.Date != "" {
				_, _ = fmt.Fprintf(out, "built: %s\n", info.Date)
			}
			_, _ = fmt.Fprintln(out, "Retail sales pipeline built with Go and DuckDB")
			return nil
		},
	}
}
