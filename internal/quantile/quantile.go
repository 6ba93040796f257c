// Package quantile builds sparse time-to-index checkpoints over sorted
// timestamp arrays so a cursor can be seeded near a target time.
package quantile

import "math"

// Fractions are the checkpoint fractions of the maximum timestamp.
var Fractions = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

// Index holds one (fraction, time, index) triple per checkpoint.
// Indices[k] is the first position whose timestamp is >= Times[k].
type Index struct {
	Fractions []float64
	Times     []float64
	Indices   []int
	Max       float64
}

// Build scans times once across all fractions. times must be non-decreasing.
func Build(times []float64) Index {
	idx := Index{
		Fractions: append([]float64(nil), Fractions...),
		Times:     make([]float64, len(Fractions)),
		Indices:   make([]int, len(Fractions)),
		Max:       maxOf(times),
	}

	pos := 0
	for k, fraction := range Fractions {
		target := idx.Max * fraction
		idx.Times[k] = target
		for pos < len(times) && times[pos] < target {
			pos++
		}
		idx.Indices[k] = pos
	}
	// fraction 0 always seeds at the start, even when the array opens with
	// negative or NaN timestamps.
	if len(idx.Indices) > 0 {
		idx.Indices[0] = 0
	}
	return idx
}

// Seed returns the index of the nearest checkpoint at or below target.
// Every position before the returned index has a timestamp below target.
func (q Index) Seed(target float64) int {
	seed := 0
	for k, t := range q.Times {
		if t > target {
			break
		}
		seed = q.Indices[k]
	}
	return seed
}

// Len reports the number of checkpoints.
func (q Index) Len() int {
	return len(q.Indices)
}

func maxOf(times []float64) float64 {
	found := false
	maxVal := 0.0
	for _, t := range times {
		if math.IsNaN(t) {
			continue
		}
		if !found || t > maxVal {
			maxVal = t
			found = true
		}
	}
	return maxVal
}
