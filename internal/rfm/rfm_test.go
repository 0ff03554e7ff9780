package rfm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	records := []Record{
		{CustomerID: 1, Recency: 0, Frequency: 10, Monetary: 100},
		{CustomerID: 2, Recency: 5, Frequency: 20, Monetary: 300},
		{CustomerID: 3, Recency: 10, Frequency: 30, Monetary: 500},
	}

	scaled := Scale(records)
	require.Len(t, scaled, 3)

	assert.Equal(t, []float64{0, 0, 0}, scaled[0])
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, scaled[1])
	assert.Equal(t, []float64{1, 1, 1}, scaled[2])
}

func TestScaleConstantFeature(t *testing.T) {
	records := []Record{
		{CustomerID: 1, Recency: 7, Frequency: 1, Monetary: 50},
		{CustomerID: 2, Recency: 7, Frequency: 2, Monetary: 80},
	}

	scaled := Scale(records)
	// Recency has no spread, so it scales to 0 for everyone.
	assert.Equal(t, 0.0, scaled[0][0])
	assert.Equal(t, 0.0, scaled[1][0])
	assert.Equal(t, 0.0, scaled[0][1])
	assert.Equal(t, 1.0, scaled[1][1])
}

func TestScaleEdgeSizes(t *testing.T) {
	assert.Empty(t, Scale(nil))

	scaled := Scale([]Record{{CustomerID: 9, Recency: 3, Frequency: 4, Monetary: 5}})
	require.Len(t, scaled, 1)
	assert.Equal(t, []float64{0, 0, 0}, scaled[0])
}

func TestSummaries(t *testing.T) {
	records := []Record{
		{CustomerID: 1, Recency: 10, Frequency: 2, Monetary: 100, Cluster: 0},
		{CustomerID: 2, Recency: 20, Frequency: 4, Monetary: 300, Cluster: 0},
		{CustomerID: 3, Recency: 5, Frequency: 50, Monetary: 9000, Cluster: 2},
	}

	sums := Summaries(records, 3)
	require.Len(t, sums, 3)

	assert.Equal(t, 0, sums[0].Cluster)
	assert.Equal(t, 2, sums[0].Customers)
	assert.Equal(t, 15.0, sums[0].MeanRecency)
	assert.Equal(t, 3.0, sums[0].MeanFrequency)
	assert.Equal(t, 200.0, sums[0].MeanMonetary)

	// Cluster 1 has no members but still appears.
	assert.Equal(t, 1, sums[1].Cluster)
	assert.Equal(t, 0, sums[1].Customers)
	assert.Equal(t, 0.0, sums[1].MeanMonetary)

	assert.Equal(t, 1, sums[2].Customers)
	assert.Equal(t, 9000.0, sums[2].MeanMonetary)
}

func TestWriteCSV(t *testing.T) {
	records := []Record{
		{CustomerID: 11, Recency: 0, Frequency: 40, Monetary: 1683.96, Cluster: 2},
		{CustomerID: 12, Recency: 117, Frequency: 1, Monetary: 12.5, Cluster: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	want := "CustomerID,Recency,Frequency,Monetary,Cluster\n" +
		"11,0,40,1683.96,2\n" +
		"12,117,1,12.5,0\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVKeepsFloatPrecision(t *testing.T) {
	records := []Record{
		{CustomerID: 1, Recency: 1, Frequency: 1, Monetary: 1683.9600000000003, Cluster: 1},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))
	assert.Contains(t, buf.String(), "1,1,1,1683.9600000000003,1\n")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed_data", "rfm_segmented_customers.csv")
	records := []Record{{CustomerID: 5, Recency: 3, Frequency: 7, Monetary: 42, Cluster: 1}}

	require.NoError(t, WriteFile(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CustomerID,Recency,Frequency,Monetary,Cluster\n5,3,7,42,1\n", string(data))
}
