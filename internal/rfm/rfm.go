// Package rfm computes customer segments from recency, frequency, and
// monetary features: values are min-max scaled, clustered with k-means,
// and written back as per-customer labels.
package rfm

// Record holds the RFM features of one customer and, after clustering,
// the assigned segment label.
type Record struct {
	CustomerID int64
	// Recency is the number of days since the customer's latest purchase,
	// relative to the newest purchase date in the dataset.
	Recency int
	// Frequency is the customer's transaction row count.
	Frequency int64
	// Monetary is the sum of the customer's transaction totals.
	Monetary float64
	// Cluster is the segment label in [0, k-1]. Valid after Cluster().
	Cluster int
}

// Scale returns the records' features min-max scaled to [0, 1], one row per
// record in order: recency, frequency, monetary. A feature with no spread
// scales to 0.
func Scale(records []Record) [][]float64 {
	scaled := make([][]float64, len(records))
	if len(records) == 0 {
		return scaled
	}

	features := func(r Record) [3]float64 {
		return [3]float64{float64(r.Recency), float64(r.Frequency), r.Monetary}
	}

	min := features(records[0])
	max := features(records[0])
	for _, r := range records[1:] {
		f := features(r)
		for i := 0; i < 3; i++ {
			if f[i] < min[i] {
				min[i] = f[i]
			}
			if f[i] > max[i] {
				max[i] = f[i]
			}
		}
	}

	for i, r := range records {
		f := features(r)
		row := make([]float64, 3)
		for j := 0; j < 3; j++ {
			if span := max[j] - min[j]; span > 0 {
				row[j] = (f[j] - min[j]) / span
			}
		}
		scaled[i] = row
	}
	return scaled
}

// Summary aggregates one cluster for reporting.
type Summary struct {
	Cluster       int
	Customers     int
	MeanRecency   float64
	MeanFrequency float64
	MeanMonetary  float64
}

// Summaries returns per-cluster aggregates, ordered by cluster label.
// Clusters with no members are included with zero values.
func Summaries(records []Record, k int) []Summary {
	sums := make([]Summary, k)
	for i := range sums {
		sums[i].Cluster = i
	}
	for _, r := range records {
		if r.Cluster < 0 || r.Cluster >= k {
			continue
		}
		s := &sums[r.Cluster]
		s.Customers++
		s.MeanRecency += float64(r.Recency)
		s.MeanFrequency += float64(r.Frequency)
		s.MeanMonetary += r.Monetary
	}
	for i := range sums {
		if n := float64(sums[i].Customers); n > 0 {
			sums[i].MeanRecency /= n
			sums[i].MeanFrequency /= n
			sums[i].MeanMonetary /= n
		}
	}
	return sums
}
