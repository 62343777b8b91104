package metrics

import (
	"math"

	"cgmev/gengar/pkg/trace"
)

// Swing is the raw glucose movement between two turning points of the
// smoothed curve.
type Swing struct {
	Start int
	End   int
	// Peak marks segments that rise into a peak; the rest fall into a valley.
	Peak      bool
	Amplitude float64
}

// MAGE is the mean amplitude of swings larger than the trace's standard
// deviation, or NaN when none qualify.
func MAGE(tr *trace.Trace, window int) float64 {
	vals := tr.Values()
	limit := sd(vals)
	if math.IsNaN(limit) {
		return math.NaN()
	}

	var sum float64
	n := 0
	for _, s := range Swings(vals, window) {
		if s.Amplitude > limit {
			sum += s.Amplitude
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Swings smooths vals with a centered moving average, splits the series where
// the smoothed slope changes sign, and measures max - min of the raw values
// in each segment. The series ends are treated as turning points.
func Swings(vals []float64, window int) []Swing {
	if len(vals) < 2 {
		return nil
	}
	smooth := movingAverage(vals, window)

	// steps[k] is the direction from k to k+1; flat steps keep the previous
	// direction so plateaus do not split a run.
	steps := make([]int, len(vals)-1)
	first := -1
	for k := range steps {
		d := smooth[k+1] - smooth[k]
		switch {
		case d > 0:
			steps[k] = 1
		case d < 0:
			steps[k] = -1
		case k > 0:
			steps[k] = steps[k-1]
		}
		if first < 0 && steps[k] != 0 {
			first = k
		}
	}
	if first < 0 {
		return nil
	}
	for k := 0; k < first; k++ {
		steps[k] = steps[first]
	}

	crossings := []int{0}
	for k := 1; k < len(steps); k++ {
		if steps[k] != steps[k-1] {
			crossings = append(crossings, k)
		}
	}
	crossings = append(crossings, len(vals)-1)

	// TODO: parity is seeded from the first two raw samples; compare with
	// seeding it from steps[0] on the reference datasets.
	peak := vals[0] < vals[1]
	swings := make([]Swing, 0, len(crossings)-1)
	for i := 0; i+1 < len(crossings); i++ {
		lo, hi := crossings[i], crossings[i+1]
		mn, mx := vals[lo], vals[lo]
		for _, v := range vals[lo : hi+1] {
			mn = math.Min(mn, v)
			mx = math.Max(mx, v)
		}
		swings = append(swings, Swing{Start: lo, End: hi, Peak: peak, Amplitude: mx - mn})
		peak = !peak
	}
	return swings
}

// movingAverage is a centered rolling mean that averages whatever samples
// fall inside the window near the edges.
func movingAverage(vals []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window/2
		hi := lo + window - 1
		if lo < 0 {
			lo = 0
		}
		if hi > len(vals)-1 {
			hi = len(vals) - 1
		}
		var sum float64
		for _, v := range vals[lo : hi+1] {
			sum += v
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
