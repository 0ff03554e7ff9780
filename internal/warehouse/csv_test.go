package warehouse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    rune
		wantErr bool
	}{
		{
			name:    "semicolon delimited",
			content: "SalesID;CustomerID;TotalPrice\n1;2;3.50\n",
			want:    ';',
		},
		{
			name:    "comma delimited",
			content: "SalesID,CustomerID,TotalPrice\n1,2,3.50\n",
			want:    ',',
		},
		{
			name:    "semicolon wins over comma",
			content: "SalesID;Label,Note\n1;a,b\n",
			want:    ';',
		},
		{
			name:    "single column defaults to comma",
			content: "SalesID\n1\n2\n",
			want:    ',',
		},
		{
			name:    "header without trailing newline",
			content: "CityID;CityName",
			want:    ';',
		},
		{
			name:    "empty file",
			content: "",
			wantErr: true,
		},
		{
			name:    "blank first line",
			content: "\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempCSV(t, "input.csv", tt.content)
			got, err := DetectDelimiter(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectDelimiterMissingFile(t *testing.T) {
	_, err := DetectDelimiter(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestDelimiterName(t *testing.T) {
	assert.Equal(t, "semicolon", DelimiterName(';'))
	assert.Equal(t, "comma", DelimiterName(','))
	assert.Equal(t, "tab", DelimiterName('\t'))
	assert.Equal(t, "'|'", DelimiterName('|'))
}

func TestReadHeader(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantCols  []string
		wantDelim rune
		wantErr   bool
	}{
		{
			name:      "semicolon header",
			content:   "SalesID;CustomerID;TotalPrice\n1;2;3.50\n",
			wantCols:  []string{"SalesID", "CustomerID", "TotalPrice"},
			wantDelim: ';',
		},
		{
			name:      "comma header with padding",
			content:   "CategoryID, CategoryName\n1,Produce\n",
			wantCols:  []string{"CategoryID", "CategoryName"},
			wantDelim: ',',
		},
		{
			name:    "empty file",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempCSV(t, "input.csv", tt.content)
			cols, delim, err := ReadHeader(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCols, cols)
			assert.Equal(t, tt.wantDelim, delim)
		})
	}
}

func TestSQLStringList(t *testing.T) {
	assert.Equal(t, "['NULL', 'NA', 'N/A', 'NaN', '']", sqlStringList(MissingTokens))
	assert.Equal(t, "[]", sqlStringList(nil))
	assert.Equal(t, "['it''s']", sqlStringList([]string{"it's"}))
}

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		want    Params
		wantErr bool
	}{
		{
			name: "empty map",
			raw:  nil,
			want: Params{},
		},
		{
			name: "settings and extensions",
			raw: map[string]any{
				"settings":   map[string]any{"memory_limit": "4GB", "threads": "4"},
				"extensions": []any{"httpfs"},
			},
			want: Params{
				Settings:   map[string]string{"memory_limit": "4GB", "threads": "4"},
				Extensions: []string{"httpfs"},
			},
		},
		{
			name:    "wrong shape",
			raw:     map[string]any{"settings": "not-a-map"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeParams(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
