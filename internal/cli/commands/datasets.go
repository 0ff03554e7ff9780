package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftwood-labs/salespipe/internal/cli/output"
	"github.com/driftwood-labs/salespipe/internal/pipeline"
)

// GraphQuerier provides read-only access to the step graph.
type GraphQuerier interface {
	Parents(string) []string
	Children(string) []string
	Len() int
	Edges() int
}

// DatasetInfo is the JSON shape of one dataset definition.
type DatasetInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
	Columns     []string `json:"columns"`
	OutputFile  string   `json:"output_file"`
}

// GraphNode is one step in the JSON graph output.
type GraphNode struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on,omitempty"`
	UsedBy    []string `json:"used_by,omitempty"`
}

// GraphLevel groups steps that can run in parallel.
type GraphLevel struct {
	Level int         `json:"level"`
	Steps []GraphNode `json:"steps"`
}

// GraphOutput is the JSON shape of the step graph.
type GraphOutput struct {
	Levels     []GraphLevel `json:"levels"`
	TotalSteps int          `json:"total_steps"`
	TotalEdges int          `json:"total_edges"`
}

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand() *cobra.Command {
	var showGraph bool

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List the prep datasets and their dependencies",
		Long: `List the datasets the prep stage builds, with the tables each one
joins and the columns it exports.

With --graph, show the full step graph instead, grouped by execution
level: every step in a level depends only on steps in earlier levels.`,
		Example: `  # List all datasets
  salespipe datasets

  # Show the step graph
  salespipe datasets --graph

  # Dataset definitions as JSON
  salespipe datasets --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDatasets(cmd, showGraph)
		},
	}

	cmd.Flags().BoolVar(&showGraph, "graph", false, "Show the step dependency graph")

	return cmd
}

func runDatasets(cmd *cobra.Command, showGraph bool) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	r := cmdCtx.Renderer

	if showGraph {
		graph, err := pipeline.BuildGraph()
		if err != nil {
			return fmt.Errorf("failed to build step graph: %w", err)
		}
		levels, err := graph.Levels()
		if err != nil {
			return fmt.Errorf("failed to compute execution levels: %w", err)
		}

		switch r.EffectiveMode() {
		case output.ModeJSON:
			return graphJSON(r, graph, levels)
		case output.ModeMarkdown:
			graphMarkdown(r, graph, levels)
			return nil
		default:
			graphText(r, graph, levels)
			return nil
		}
	}

	datasets := pipeline.Datasets()
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return datasetsJSON(r, datasets)
	case output.ModeMarkdown:
		datasetsMarkdown(r, datasets)
		return nil
	default:
		datasetsText(r, datasets)
		return nil
	}
}

// datasetsText outputs dataset definitions in styled text format.
func datasetsText(r *output.Renderer, datasets []pipeline.Dataset) {
	styles := r.Styles()

	r.Header(1, fmt.Sprintf("Datasets (%d)", len(datasets)))

	for _, ds := range datasets {
		r.Printf("  %s\n", styles.StepName.Render(ds.Name))
		r.Printf("    %s\n", styles.Muted.Render(ds.Description))
		r.Printf("    %s %s\n", styles.Muted.Render("builds on:"), strings.Join(ds.Dependencies, ", "))
		r.Printf("    %s %s\n", styles.Muted.Render("columns:"), strings.Join(ds.Columns, ", "))
		r.Printf("    %s %s\n", styles.Muted.Render("output:"), ds.OutputFile)
		r.Println("")
	}
}

// datasetsMarkdown outputs dataset definitions in markdown format.
func datasetsMarkdown(r *output.Renderer, datasets []pipeline.Dataset) {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Datasets (%d)", len(datasets))))
	r.Println("")

	for _, ds := range datasets {
		r.Println(output.FormatHeader(2, ds.Name))
		r.Println(output.FormatKeyValue("Description", ds.Description))
		r.Println(output.FormatKeyValue("Builds on", strings.Join(ds.Dependencies, ", ")))
		r.Println(output.FormatKeyValue("Columns", strings.Join(ds.Columns, ", ")))
		r.Println(output.FormatKeyValue("Output", ds.OutputFile))
		r.Println("")
	}
}

// datasetsJSON outputs dataset definitions in JSON format.
func datasetsJSON(r *output.Renderer, datasets []pipeline.Dataset) error {
	infos := make([]DatasetInfo, 0, len(datasets))
	for _, ds := range datasets {
		infos = append(infos, DatasetInfo{
			Name:        ds.Name,
			Description: ds.Description,
			DependsOn:   ds.Dependencies,
			Columns:     ds.Columns,
			OutputFile:  ds.OutputFile,
		})
	}
	return r.JSON(infos)
}

// graphText outputs the step graph in styled text format.
func graphText(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	styles := r.Styles()

	r.Header(1, "Step Graph")

	for i, level := range levels {
		r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		for _, step := range level {
			deps := graph.Parents(step)
			children := graph.Children(step)

			r.Printf("  %s\n", styles.StepName.Render(step))
			if len(deps) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("depends on:"), strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("used by:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d steps, %d dependencies", graph.Len(), graph.Edges())))
}

// graphMarkdown outputs the step graph in markdown format.
func graphMarkdown(r *output.Renderer, graph GraphQuerier, levels [][]string) {
	r.Println(output.FormatHeader(1, "Step Graph"))
	r.Println("")

	for i, level := range levels {
		levelName := fmt.Sprintf("Level %d", i)
		if i == 0 {
			levelName = "Level 0 (Sources)"
		}
		r.Println(output.FormatHeader(2, levelName))

		for _, step := range level {
			deps := graph.Parents(step)
			children := graph.Children(step)

			r.Printf("- %s\n", step)
			if len(deps) > 0 {
				r.Printf("  - depends on: %s\n", strings.Join(deps, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - used by: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Total Steps", fmt.Sprintf("%d", graph.Len())))
	r.Println(output.FormatKeyValue("Total Dependencies", fmt.Sprintf("%d", graph.Edges())))
}

// graphJSON outputs the step graph in JSON format.
func graphJSON(r *output.Renderer, graph GraphQuerier, levels [][]string) error {
	out := GraphOutput{
		Levels:     make([]GraphLevel, 0, len(levels)),
		TotalSteps: graph.Len(),
		TotalEdges: graph.Edges(),
	}

	for i, level := range levels {
		gl := GraphLevel{
			Level: i,
			Steps: make([]GraphNode, 0, len(level)),
		}
		for _, step := range level {
			gl.Steps = append(gl.Steps, GraphNode{
				Name:      step,
				DependsOn: graph.Parents(step),
				UsedBy:    graph.Children(step),
			})
		}
		out.Levels = append(out.Levels, gl)
	}

	return r.JSON(out)
}
