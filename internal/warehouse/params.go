package warehouse

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB session configuration, parsed from the
// warehouse.params config map using mapstructure.
type Params struct {
	// Extensions to install and load (e.g. "httpfs", "json")
	Extensions []string `mapstructure:"extensions"`

	// Settings applied at session level (e.g. memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// DecodeParams converts a raw config map into Params.
func DecodeParams(raw map[string]any) (Params, error) {
	var params Params
	if len(raw) == 0 {
		return params, nil
	}
	if err := mapstructure.Decode(raw, &params); err != nil {
		return params, fmt.Errorf("failed to decode warehouse params: %w", err)
	}
	return params, nil
}
