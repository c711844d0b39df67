package audio

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// peakOf returns the largest absolute value in a single channel's samples,
// via gonum's Max/Min rather than a hand-rolled scan.
func peakOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	max := floats.Max(samples)
	min := floats.Min(samples)
	return math.Max(max, -min)
}

// rmsOf computes the root-mean-square of samples. gonum's stat package
// computes population variance (mean-subtracted), not a raw mean square,
// so the sum of squares is accumulated directly, divided by the count,
// and passed through math.Sqrt.
func rmsOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, s := range samples {
		sumSq += s * s
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

func dbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
