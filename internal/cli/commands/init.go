package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/driftwood-labs/salespipe/internal/cli/config"
	"github.com/driftwood-labs/salespipe/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new salespipe project",
		Long: `Initialize a new salespipe project with the default directory layout
and a commented configuration file.

This creates:
  - data/ directory for the raw CSV exports
  - data/cleaned_data/ and data/processed_data/ output directories
  - salespipe.yaml configuration file`,
		Example: `  # Initialize in current directory
  salespipe init

  # Initialize in a new directory
  salespipe init my-project

  # Force overwrite existing config
  salespipe init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			// Create renderer
			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	// Create directory if specified and doesn't exist
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	// Check if config already exists
	configPath := filepath.Join(dir, "salespipe.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("salespipe.yaml already exists. Use --force to overwrite")
	}

	content, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	created := []string{
		config.DefaultDataDir,
		filepath.Join(config.DefaultDataDir, config.DefaultCleanedName),
		filepath.Join(config.DefaultDataDir, config.DefaultProcessedName),
	}
	for _, d := range created {
		if err := os.MkdirAll(filepath.Join(dir, d), 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}

	r.StatusLine("salespipe.yaml", "success", "")
	for _, d := range created {
		r.StatusLine(d+"/", "success", "")
	}

	r.Println("")
	r.Success("salespipe project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Drop the raw CSV exports into data/")
	r.Println("  2. Run 'salespipe doctor' to verify the environment")
	r.Println("  3. Run 'salespipe run' to build the datasets and segments")

	return nil
}

// defaultConfigYAML renders the default configuration with explanatory
// comments on every key.
func defaultConfigYAML() ([]byte, error) {
	serve := config.DefaultServeConfig()

	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content,
		yamlPair("data_dir", config.DefaultDataDir,
			"Directory holding the raw CSV exports.")...)
	root.Content = append(root.Content,
		yamlPair("database", "",
			"Warehouse database file. Leave empty to run DuckDB in memory.")...)
	root.Content = append(root.Content,
		yamlPair("state_path", config.DefaultStateFile,
			"Run history database.")...)
	root.Content = append(root.Content,
		yamlPair("clusters", strconv.Itoa(config.DefaultClusters),
			"Number of customer segments.")...)
	root.Content = append(root.Content,
		yamlPair("seed", strconv.FormatInt(config.DefaultSeed, 10),
			"Random seed for clustering. Fixed seed keeps segments reproducible.")...)
	root.Content = append(root.Content,
		yamlPair("output", config.DefaultOutput,
			"Output format: auto, text, markdown, json.")...)

	serveNode := &yaml.Node{Kind: yaml.MappingNode}
	serveNode.Content = append(serveNode.Content,
		yamlPair("port", strconv.Itoa(serve.Port), "")...)
	serveNode.Content = append(serveNode.Content,
		yamlPair("auto_open", strconv.FormatBool(serve.AutoOpen), "")...)
	serveNode.Content = append(serveNode.Content,
		yamlPair("watch", strconv.FormatBool(serve.Watch), "")...)
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: "serve", HeadComment: "Report server settings for 'salespipe serve'."},
		serveNode,
	)

	var buf bytes.Buffer
	buf.WriteString("# salespipe configuration\n\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// yamlPair builds a key/value scalar pair, with an optional comment above
// the key.
func yamlPair(key, value, comment string) []*yaml.Node {
	k := &yaml.Node{Kind: yaml.ScalarNode, Value: key, HeadComment: comment}
	v := &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	if value == "" {
		v.Style = yaml.DoubleQuotedStyle
	}
	return []*yaml.Node{k, v}
}
