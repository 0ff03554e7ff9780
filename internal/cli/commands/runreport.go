package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
	"github.com/driftwood-labs/salespipe/internal/state"
)

// RunSummary describes one recorded run in JSON output.
type RunSummary struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StepReport describes one step within a run in JSON output.
type StepReport struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Rows       int64  `json:"rows"`
	Artifact   string `json:"artifact,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunReport is the JSON shape shared by the prep, segment, and run commands.
type RunReport struct {
	Run   RunSummary   `json:"run"`
	Steps []StepReport `json:"steps"`
}

func newRunSummary(run *state.Run) RunSummary {
	return RunSummary{
		ID:          run.ID,
		Kind:        string(run.Kind),
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
	}
}

func newStepReports(steps []pipeline.StepResult) []StepReport {
	reports := make([]StepReport, 0, len(steps))
	for _, st := range steps {
		reports = append(reports, StepReport{
			Name:       st.Name,
			Status:     string(st.Status),
			Rows:       st.Rows,
			Artifact:   st.Artifact,
			DurationMS: st.Duration.Milliseconds(),
			Error:      st.Error,
		})
	}
	return reports
}

func newRunReport(run *state.Run, steps []pipeline.StepResult) RunReport {
	return RunReport{Run: newRunSummary(run), Steps: newStepReports(steps)}
}

// shortID abbreviates a run ID for terminal output.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runDuration(run *state.Run) time.Duration {
	if run.CompletedAt == nil {
		return 0
	}
	return run.CompletedAt.Sub(run.StartedAt)
}

// stepDetail builds the muted detail shown next to a step status line.
func stepDetail(st pipeline.StepResult) string {
	switch st.Status {
	case state.StepStatusSuccess:
		detail := fmt.Sprintf("%d rows", st.Rows)
		if st.Artifact != "" {
			detail += " -> " + filepath.Base(st.Artifact)
		}
		return detail
	case state.StepStatusFailed, state.StepStatusSkipped:
		return st.Error
	}
	return ""
}

// renderStepsText prints one status line per step plus a muted summary.
func renderStepsText(r *output.Renderer, run *state.Run, steps []pipeline.StepResult) {
	var succeeded, failed, skipped int
	for _, st := range steps {
		r.StatusLine(st.Name, string(st.Status), stepDetail(st))
		switch st.Status {
		case state.StepStatusSuccess:
			succeeded++
		case state.StepStatusFailed:
			failed++
		case state.StepStatusSkipped:
			skipped++
		}
	}

	r.Println("")
	summary := fmt.Sprintf("Run %s %s (%d succeeded, %d failed, %d skipped)",
		shortID(run.ID), run.Status, succeeded, failed, skipped)
	if d := runDuration(run); d > 0 {
		summary += " in " + d.Round(time.Millisecond).String()
	}
	r.Muted(summary)
}

// renderStepsMarkdown prints the run as a markdown table with a summary.
func renderStepsMarkdown(r *output.Renderer, title string, run *state.Run, steps []pipeline.StepResult) {
	r.Println(output.FormatHeader(1, title))
	r.Println("")
	r.Println("| Step | Status | Rows | Artifact |")
	r.Println("|------|--------|-----:|----------|")
	for _, st := range steps {
		artifact := ""
		if st.Artifact != "" {
			artifact = filepath.Base(st.Artifact)
		}
		r.Printf("| %s | %s | %d | %s |\n", st.Name, st.Status, st.Rows, artifact)
	}
	r.Println("")
	r.Println(output.FormatKeyValue("Run", run.ID))
	r.Println(output.FormatKeyValue("Status", string(run.Status)))
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", run.Error))
	}
}
