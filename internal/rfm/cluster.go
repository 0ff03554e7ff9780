package rfm

import (
	"fmt"
	"math/rand"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Cluster partitions the records into k segments over their scaled features
// and assigns each record's Cluster label. The same seed and input always
// produce the same assignment.
func Cluster(records []Record, k int, seed int64) error {
	if k < 2 {
		return fmt.Errorf("cluster count must be at least 2, got %d", k)
	}
	if len(records) < k {
		return fmt.Errorf("need at least %d customers to form %d clusters, got %d", k, k, len(records))
	}

	// The clustering library draws its initial centroids from the shared
	// source, so seeding it is what makes runs reproducible.
	//nolint:staticcheck // rand.Seed is the only way to pin the library's randomness
	rand.Seed(seed)

	scaled := Scale(records)
	observations := make(clusters.Observations, len(records))
	for i, row := range scaled {
		observations[i] = clusters.Coordinates(row)
	}

	km := kmeans.New()
	partition, err := km.Partition(observations, k)
	if err != nil {
		return fmt.Errorf("failed to cluster customers: %w", err)
	}

	for i := range records {
		records[i].Cluster = partition.Nearest(observations[i])
	}
	return nil
}
