// Package stats implements the outlier-selection rule the brute-force
// driver uses to pick a round's winning candidate: the measurement farthest
// from the mean of the round, ties going to the first occurrence.
package stats

import "github.com/tiecoon/b7/internal/b7err"

// Mean returns the arithmetic mean of a non-empty slice of measurements.
func Mean(values []int64) float64 {
	var sum int64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// OutlierIndex returns the index of the element farthest from the mean.
// Ties go to the first occurrence in input order. It panics if values is
// empty, matching spec: an empty measurement list is a programming error,
// not a runtime condition a caller should recover from.
func OutlierIndex(values []int64) int {
	if len(values) == 0 {
		panic(b7err.Runnerf("stats: OutlierIndex called with no measurements"))
	}
	mean := Mean(values)
	best := 0
	bestDev := deviation(values[0], mean)
	for i := 1; i < len(values); i++ {
		dev := deviation(values[i], mean)
		if dev > bestDev {
			bestDev = dev
			best = i
		}
	}
	return best
}

func deviation(v int64, mean float64) float64 {
	d := float64(v) - mean
	if d < 0 {
		d = -d
	}
	return d
}
