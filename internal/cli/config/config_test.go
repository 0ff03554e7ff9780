package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExpandEnvVars tests the expandEnvVars function.
func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single variable",
			input:    "${TEST_VAR_ONE}",
			expected: "value_one",
		},
		{
			name:     "multiple variables",
			input:    "${TEST_VAR_ONE}/${TEST_VAR_TWO}",
			expected: "value_one/value_two",
		},
		{
			name:     "variable in path",
			input:    "/path/to/${TEST_VAR_ONE}/file",
			expected: "/path/to/value_one/file",
		},
		{
			name:     "unset variable stays as-is",
			input:    "${UNSET_VARIABLE}",
			expected: "${UNSET_VARIABLE}",
		},
		{
			name:     "no variables",
			input:    "plain string",
			expected: "plain string",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// TestConfig_Validate tests the Config.Validate method.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{DataDir: "data", Clusters: 4, OutputFormat: "auto"}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty data_dir", func(t *testing.T) {
		cfg := valid()
		cfg.DataDir = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_dir is required")
	})

	t.Run("invalid output format", func(t *testing.T) {
		cfg := valid()
		cfg.OutputFormat = "xml"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid output format")
	})

	t.Run("too few clusters", func(t *testing.T) {
		cfg := valid()
		cfg.Clusters = 1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "clusters must be at least 2")
	})

	t.Run("serve port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Serve = &ServeConfig{Port: 70000}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serve port out of range")
	})
}

// TestGetServeConfig tests serve config defaulting.
func TestGetServeConfig(t *testing.T) {
	t.Run("nil serve returns defaults", func(t *testing.T) {
		cfg := &Config{}
		s := cfg.GetServeConfig()
		assert.Equal(t, 8765, s.Port)
		assert.True(t, s.AutoOpen)
		assert.False(t, s.Watch)
	})

	t.Run("unset port gets default", func(t *testing.T) {
		cfg := &Config{Serve: &ServeConfig{Watch: true}}
		s := cfg.GetServeConfig()
		assert.Equal(t, 8765, s.Port)
		assert.True(t, s.Watch)
	})

	t.Run("explicit port preserved", func(t *testing.T) {
		cfg := &Config{Serve: &ServeConfig{Port: 9000}}
		assert.Equal(t, 9000, cfg.GetServeConfig().Port)
	})
}

// TestGetWarehouseConfig tests warehouse config defaulting.
func TestGetWarehouseConfig(t *testing.T) {
	cfg := &Config{}
	assert.NotNil(t, cfg.GetWarehouseConfig())

	cfg.Warehouse = &WarehouseConfig{Params: map[string]any{"threads": 2}}
	assert.Equal(t, 2, cfg.GetWarehouseConfig().Params["threads"])
}

// TestLoadConfig_Defaults verifies defaults apply with no config file present.
func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "data", filepath.Base(cfg.DataDir))
	assert.Equal(t, filepath.Join(cfg.DataDir, "cleaned_data"), cfg.CleanedDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "processed_data"), cfg.ProcessedDir)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(cfg.StatePath), ".salespipe/state.db"))
	assert.Equal(t, "", cfg.DatabasePath)
	assert.Equal(t, 4, cfg.Clusters)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "auto", cfg.OutputFormat)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

// TestLoadConfig_FromFile verifies config file values and path resolution.
func TestLoadConfig_FromFile(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cfgContent := `data_dir: warehouse_data
database: sales.duckdb
clusters: 6
seed: 7
output: json
serve:
  port: 9100
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "salespipe.yaml"), []byte(cfgContent), 0600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "warehouse_data", filepath.Base(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, "sales.duckdb", filepath.Base(cfg.DatabasePath))
	assert.Equal(t, 6, cfg.Clusters)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, "json", cfg.OutputFormat)
	assert.Equal(t, 9100, cfg.GetServeConfig().Port)
	assert.True(t, strings.HasSuffix(GetConfigFileUsed(), "salespipe.yaml"))
}

// TestLoadConfig_Precedence tests that flags override env vars, which
// override the config file.
func TestLoadConfig_Precedence(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	cfgContent := `data_dir: from_file
clusters: 6
`
	cfgPath := filepath.Join(tmpDir, "salespipe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgContent), 0600))

	t.Setenv("SALESPIPE_DATA_DIR", "from_env")
	t.Setenv("SALESPIPE_CLUSTERS", "8")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("data-dir", "", "data directory")
	require.NoError(t, flags.Set("data-dir", "from_flag"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	// Flag wins for data_dir, env wins for clusters.
	assert.Equal(t, "from_flag", filepath.Base(cfg.DataDir))
	assert.Equal(t, 8, cfg.Clusters)
}

// TestLoadConfig_EnvNesting verifies double underscores address nested keys.
func TestLoadConfig_EnvNesting(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	t.Setenv("SALESPIPE_SERVE__PORT", "9001")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.GetServeConfig().Port)
}

// TestLoadConfig_StateFlag verifies the --state flag maps to state_path.
func TestLoadConfig_StateFlag(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state database path")
	require.NoError(t, flags.Set("state", "custom_state.db"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.StatePath))
	assert.Equal(t, "custom_state.db", filepath.Base(cfg.StatePath))
}

// TestLoadConfig_UpwardSearch verifies the project root is discovered from
// a nested working directory.
func TestLoadConfig_UpwardSearch(t *testing.T) {
	ResetConfig()
	root := t.TempDir()

	cfgContent := "data_dir: warehouse_data\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "salespipe.yaml"), []byte(cfgContent), 0600))

	nested := filepath.Join(root, "sub", "inner")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "warehouse_data", filepath.Base(cfg.DataDir))
	assert.Equal(t, cfg.ProjectRoot, filepath.Dir(cfg.DataDir))
	assert.True(t, strings.HasSuffix(GetConfigFileUsed(), "salespipe.yaml"))
}

// TestLoadConfig_DatabaseEnvExpansion verifies ${VAR} expansion in paths.
func TestLoadConfig_DatabaseEnvExpansion(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Setenv("SALESPIPE_TEST_WAREHOUSE", "/srv/warehouses")

	cfgContent := "database: ${SALESPIPE_TEST_WAREHOUSE}/sales.duckdb\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "salespipe.yaml"), []byte(cfgContent), 0600))

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/warehouses/sales.duckdb", cfg.DatabasePath)
}

// TestResetConfig verifies test isolation helpers clear loader state.
func TestResetConfig(t *testing.T) {
	ResetConfig()
	t.Chdir(t.TempDir())

	_, err := LoadConfig("", nil)
	require.NoError(t, err)
	require.NotNil(t, GetCurrentConfig())

	ResetConfig()
	assert.Nil(t, GetCurrentConfig())
	assert.Empty(t, GetConfigFileUsed())
}
