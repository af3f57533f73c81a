package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FitnessSummary describes the fitness distribution of one generation.
type FitnessSummary struct {
	Best   float64 `json:"best"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	StdDev float64 `json:"std_dev"`
}

func Summarize(fitness []float64) FitnessSummary {
	if len(fitness) == 0 {
		return FitnessSummary{}
	}
	summary := FitnessSummary{
		Best: floats.Max(fitness),
		Mean: stat.Mean(fitness, nil),
		Min:  floats.Min(fitness),
	}
	if len(fitness) > 1 {
		summary.StdDev = stat.StdDev(fitness, nil)
	}
	return summary
}

// Improvement returns the change from the first to the last value of a
// best-by-generation series.
func Improvement(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	return series[len(series)-1] - series[0]
}
