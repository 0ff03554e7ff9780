package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/config"
	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
	"github.com/driftwood-labs/salespipe/internal/warehouse"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a pipeline environment health check",
		Long: `Check that the pipeline can run in the current environment.

The doctor command verifies:
- Configuration file and directories
- Every raw CSV source: presence, delimiter, required columns
- Output directories are writable
- The state database is reachable

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  salespipe doctor

  # Output as JSON
  salespipe doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary    PipelineSummary `json:"summary"`
	Checks     []HealthCheck   `json:"checks"`
	IssueCount int             `json:"issue_count"`
	Hints      []string        `json:"hints,omitempty"`
}

// PipelineSummary contains pipeline-level statistics.
type PipelineSummary struct {
	Sources    int `json:"sources"`
	Datasets   int `json:"datasets"`
	GraphDepth int `json:"graph_depth"`
	RootCount  int `json:"root_count"`
	LeafCount  int `json:"leaf_count"`
	EdgeCount  int `json:"edge_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	doctorOutput := buildDoctorOutput(cfg)

	// Render based on mode
	var renderErr error
	switch r.EffectiveMode() {
	case output.ModeJSON:
		renderErr = r.JSON(doctorOutput)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, doctorOutput)
	default:
		renderDoctorText(r, doctorOutput)
	}
	if renderErr != nil {
		return renderErr
	}

	for _, check := range doctorOutput.Checks {
		if check.Status == "error" {
			return errors.New("health check failed")
		}
	}
	return nil
}

func buildDoctorOutput(cfg *config.Config) *DoctorOutput {
	checks := runHealthChecks(cfg)

	issues := 0
	for _, check := range checks {
		if check.Status != "pass" {
			issues++
		}
	}

	return &DoctorOutput{
		Summary:    buildPipelineSummary(),
		Checks:     checks,
		IssueCount: issues,
		Hints:      buildHints(checks),
	}
}

func buildPipelineSummary() PipelineSummary {
	summary := PipelineSummary{
		Sources:  len(pipeline.Sources()),
		Datasets: len(pipeline.Datasets()),
	}

	graph, err := pipeline.BuildGraph()
	if err != nil {
		return summary
	}
	summary.EdgeCount = graph.Edges()
	if levels, err := graph.Levels(); err == nil {
		summary.GraphDepth = len(levels)
		if len(levels) > 0 {
			summary.RootCount = len(levels[0])
			summary.LeafCount = len(levels[len(levels)-1])
		}
	}
	return summary
}

func runHealthChecks(cfg *config.Config) []HealthCheck {
	var checks []HealthCheck

	// Environment: config file
	if file := config.GetConfigFileUsed(); file != "" {
		checks = append(checks, HealthCheck{
			Name: "config file", Group: "environment", Status: "pass", Detail: file,
		})
	} else {
		checks = append(checks, HealthCheck{
			Name: "config file", Group: "environment", Status: "warn",
			Detail: "no salespipe.yaml found, using defaults",
		})
	}

	// Environment: data directory
	if info, err := os.Stat(cfg.DataDir); err != nil {
		checks = append(checks, HealthCheck{
			Name: "data directory", Group: "environment", Status: "error",
			Detail: fmt.Sprintf("%s does not exist", cfg.DataDir),
		})
		// Without the data dir, every source check would fail the same way.
		return append(checks, outputAndStateChecks(cfg)...)
	} else if !info.IsDir() {
		checks = append(checks, HealthCheck{
			Name: "data directory", Group: "environment", Status: "error",
			Detail: fmt.Sprintf("%s is not a directory", cfg.DataDir),
		})
		return append(checks, outputAndStateChecks(cfg)...)
	}
	checks = append(checks, HealthCheck{
		Name: "data directory", Group: "environment", Status: "pass", Detail: cfg.DataDir,
	})

	// Sources: presence, delimiter, required columns
	for _, src := range pipeline.Sources() {
		checks = append(checks, checkSource(cfg.DataDir, src))
	}

	return append(checks, outputAndStateChecks(cfg)...)
}

func checkSource(dataDir string, src pipeline.Source) HealthCheck {
	check := HealthCheck{Name: "source " + src.Name, Group: "sources"}

	path := filepath.Join(dataDir, src.File)
	if _, err := os.Stat(path); err != nil {
		check.Status = "error"
		check.Detail = src.File + " not found"
		return check
	}

	header, delim, err := warehouse.ReadHeader(path)
	if err != nil {
		check.Status = "error"
		check.Detail = err.Error()
		return check
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range src.Columns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		check.Status = "error"
		check.Detail = "missing columns: " + strings.Join(missing, ", ")
		return check
	}

	check.Status = "pass"
	check.Detail = fmt.Sprintf("%s, %d columns", warehouse.DelimiterName(delim), len(header))
	return check
}

func outputAndStateChecks(cfg *config.Config) []HealthCheck {
	var checks []HealthCheck

	checks = append(checks,
		checkWritableDir("cleaned directory", cfg.CleanedDir),
		checkWritableDir("processed directory", cfg.ProcessedDir),
	)

	// State: database reachable
	stateCheck := HealthCheck{Name: "state database", Group: "state"}
	if _, err := os.Stat(cfg.StatePath); os.IsNotExist(err) {
		stateCheck.Status = "pass"
		stateCheck.Detail = "will be created on first run"
	} else if db, err := openStateDBReadOnly(cfg.StatePath); err != nil {
		stateCheck.Status = "error"
		stateCheck.Detail = err.Error()
	} else {
		var runs int
		if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs); err != nil {
			stateCheck.Status = "error"
			stateCheck.Detail = fmt.Sprintf("schema check failed: %v", err)
		} else {
			stateCheck.Status = "pass"
			stateCheck.Detail = fmt.Sprintf("%d runs recorded", runs)
		}
		_ = db.Close()
	}
	checks = append(checks, stateCheck)

	// State: warehouse database
	warehouseCheck := HealthCheck{Name: "warehouse database", Group: "state"}
	if cfg.DatabasePath == "" {
		warehouseCheck.Status = "pass"
		warehouseCheck.Detail = "in-memory"
	} else if err := probeWritable(filepath.Dir(cfg.DatabasePath)); err != nil {
		warehouseCheck.Status = "error"
		warehouseCheck.Detail = err.Error()
	} else {
		warehouseCheck.Status = "pass"
		warehouseCheck.Detail = cfg.DatabasePath
	}
	checks = append(checks, warehouseCheck)

	return checks
}

func checkWritableDir(name, dir string) HealthCheck {
	check := HealthCheck{Name: name, Group: "outputs"}
	if err := probeWritable(dir); err != nil {
		check.Status = "error"
		check.Detail = err.Error()
		return check
	}
	check.Status = "pass"
	check.Detail = dir
	return check
}

// probeWritable verifies the directory exists (creating it if needed) and
// accepts a write.
func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

// buildHints creates actionable hints based on findings.
func buildHints(checks []HealthCheck) []string {
	var hints []string
	seen := make(map[string]bool)
	add := func(h string) {
		if !seen[h] {
			hints = append(hints, h)
			seen[h] = true
		}
	}

	for _, check := range checks {
		if check.Status == "pass" {
			continue
		}
		switch {
		case check.Name == "config file":
			add("Run 'salespipe init' to scaffold a config file")
		case check.Name == "data directory":
			add("Run 'salespipe init' to create the data directory, or point --data-dir at your CSVs")
		case strings.HasPrefix(check.Name, "source "):
			add("Place the raw CSV exports in the data directory")
		case check.Name == "state database":
			add("Remove the state database to let the next run recreate it")
		}
	}

	return hints
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("Pipeline Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Pipeline Summary
	r.Println(styles.Header2.Render("Pipeline Summary"))
	r.Printf("   Sources: %d | Datasets: %d\n", out.Summary.Sources, out.Summary.Datasets)
	r.Printf("   Graph Depth: %d levels | Roots: %d | Leaves: %d\n",
		out.Summary.GraphDepth, out.Summary.RootCount, out.Summary.LeafCount)
	r.Println("")

	// Checks grouped by category
	r.Println(styles.Header2.Render("Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		line := fmt.Sprintf("%s %s", icon, check.Name)
		if check.Detail != "" {
			line += " " + styles.Muted.Render(check.Detail)
		}
		r.Println("   " + line)
	}
	r.Println("")

	// Issue count
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	if out.IssueCount == 0 {
		r.Printf("   %s\n", styles.Success.Render("All checks passed"))
	} else {
		r.Printf("   %s\n", styles.Warning.Render(fmt.Sprintf("%d issues found", out.IssueCount)))
	}
	r.Println("")

	// Hints
	if len(out.Hints) > 0 {
		r.Println(styles.Header2.Render("Hints"))
		for i, hint := range out.Hints {
			r.Printf("   %d. %s\n", i+1, hint)
		}
		r.Println("")
	}
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	r.Println("# Pipeline Health Report")
	r.Println("")

	// Pipeline Summary
	r.Println("## Pipeline Summary")
	r.Println("")
	r.Printf("- **Sources**: %d\n", out.Summary.Sources)
	r.Printf("- **Datasets**: %d\n", out.Summary.Datasets)
	r.Printf("- **Graph Depth**: %d levels\n", out.Summary.GraphDepth)
	r.Printf("- **Roots**: %d\n", out.Summary.RootCount)
	r.Printf("- **Leaves**: %d\n", out.Summary.LeafCount)
	r.Println("")

	// Checks
	r.Println("## Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.Checks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s", status, check.Name)
		if check.Detail != "" {
			r.Printf(": %s", check.Detail)
		}
		r.Println("")
	}
	r.Println("")

	// Issues
	r.Println("## Result")
	r.Println("")
	if out.IssueCount == 0 {
		r.Println("All checks passed.")
	} else {
		r.Printf("**%d issues found**\n", out.IssueCount)
	}
	r.Println("")

	// Hints
	if len(out.Hints) > 0 {
		r.Println("## Hints")
		r.Println("")
		for i, hint := range out.Hints {
			r.Printf("%d. %s\n", i+1, hint)
		}
		r.Println("")
	}
}
