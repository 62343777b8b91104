// Package interval groups masked trace samples into contiguous runs and
// resolves those runs against a look-ahead window.
package interval

import (
	"math"

	"cgmev/gengar/pkg/trace"
)

// Interval is an inclusive run of sample indices [Start, End].
type Interval struct {
	Start int
	End   int
}

// Minutes is the time from the first to the last sample of the run.
func (iv Interval) Minutes(tr *trace.Trace) float64 {
	return tr.Minutes(iv.Start, iv.End)
}

// Predicate reports whether sample i belongs to a run.
type Predicate func(i int) bool

// Normal reports whether sample i, which follows run, is back on the normal side.
type Normal func(run Interval, i int) bool

// Extract returns the maximal runs of samples satisfying pred, left to right.
// Two matching samples only share a run when they are exactly one sampling
// interval apart. No length or merge policy is applied.
func Extract(tr *trace.Trace, pred Predicate) []Interval {
	var runs []Interval
	prev := -1
	for i := 0; i < tr.Len(); i++ {
		if !pred(i) {
			continue
		}
		if prev >= 0 && tr.Time(i).Sub(tr.Time(prev)) == tr.Interval {
			runs[len(runs)-1].End = i
		} else {
			runs = append(runs, Interval{Start: i, End: i})
		}
		prev = i
	}
	return runs
}

// Resolve drops runs shorter than minLength minutes and merges every run
// whose following ceil(endLength/interval) samples are not all normal into
// the run after it. The last run is open ended and never needs to resolve.
func Resolve(tr *trace.Trace, runs []Interval, minLength, endLength float64, normal Normal) []Interval {
	lookahead := int(math.Ceil(endLength / tr.IntervalMinutes()))

	// Top of the stack is the leftmost pending run.
	stack := make([]Interval, len(runs))
	for i, run := range runs {
		stack[len(runs)-1-i] = run
	}

	var resolved []Interval
	for len(stack) > 0 {
		run := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if run.Minutes(tr) < minLength {
			continue
		}

		if len(stack) > 0 && !returnsToNormal(tr, run, lookahead, normal) {
			next := stack[len(stack)-1]
			stack[len(stack)-1] = Interval{Start: run.Start, End: next.End}
			continue
		}

		resolved = append(resolved, run)
	}
	return resolved
}

func returnsToNormal(tr *trace.Trace, run Interval, lookahead int, normal Normal) bool {
	last := run.End + lookahead
	if last > tr.Len()-1 {
		last = tr.Len() - 1
	}
	for i := run.End + 1; i <= last; i++ {
		if !normal(run, i) {
			return false
		}
	}
	return true
}
