package metrics

import (
	"math"

	"cgmev/gengar/pkg/trace"
)

// ADRR is the average daily risk range: for each calendar day the largest
// hypoglycemic and hyperglycemic risk values are summed, then averaged over
// all days present.
func ADRR(tr *trace.Trace) float64 {
	days := tr.ByDay()
	if len(days) == 0 {
		return math.NaN()
	}

	var total float64
	for _, day := range days {
		var maxLow, maxHigh float64
		for _, r := range day.Readings {
			low, high := risk(r.MgDL)
			maxLow = math.Max(maxLow, low)
			maxHigh = math.Max(maxHigh, high)
		}
		total += maxLow + maxHigh
	}
	return total / float64(len(days))
}

// risk splits a reading's blood glucose index into its hypo (low) and hyper
// (high) components.
func risk(mgdl float64) (low, high float64) {
	bgi := math.Pow(math.Log(mgdl), 1.084) - 5.381
	if bgi < 0 {
		return 22.7 * bgi * bgi, 0
	}
	return 0, 22.7 * bgi * bgi
}
