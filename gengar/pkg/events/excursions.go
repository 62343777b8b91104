package events

import (
	"fmt"
	"math"
	"sort"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/interval"
	"cgmev/gengar/pkg/trace"

	"github.com/montanaflynn/stats"
)

// Excursions runs DetectExcursions with the configured parameters.
func Excursions(tr *trace.Trace, cfg defs.AnalysisConfig) []defs.Event {
	return DetectExcursions(tr, cfg.Z, cfg.MinLength, cfg.EndLength)
}

// DetectExcursions finds runs at least z sample standard deviations away from
// the trace mean. Each event is anchored at the run's extreme value and its
// window is widened to the surrounding turning points of the curve.
// A trace without variance has no excursions.
func DetectExcursions(tr *trace.Trace, z, minLength, endLength float64) []defs.Event {
	vals := tr.Values()
	mean, err := stats.Mean(vals)
	if err != nil {
		return nil
	}
	sd, err := stats.StandardDeviationSample(vals)
	if err != nil || math.IsNaN(sd) || sd == 0 {
		return nil
	}
	upper, lower := mean+z*sd, mean-z*sd

	peaks, nadirs := turningPoints(vals)

	direction := func(run interval.Interval) defs.Direction {
		if vals[run.Start] > mean {
			return defs.Hyper
		}
		return defs.Hypo
	}

	runs := interval.Extract(tr, func(i int) bool {
		return vals[i] >= upper || vals[i] <= lower
	})
	runs = interval.Resolve(tr, runs, minLength, endLength, func(run interval.Interval, i int) bool {
		if direction(run) == defs.Hyper {
			return vals[i] <= upper
		}
		return vals[i] >= lower
	})

	excursions := make([]defs.Event, 0, len(runs))
	for _, run := range runs {
		dir := direction(run)
		anchor := extremum(vals, run, dir)

		// Hyper excursions rise out of a nadir, hypo excursions fall from a peak.
		snaps := nadirs
		if dir == defs.Hypo {
			snaps = peaks
		}
		start, end := run.Start, run.End
		if start != 0 {
			if i := sort.SearchInts(snaps, start+1) - 1; i >= 0 {
				start = snaps[i]
			}
		}
		if end != len(vals)-1 {
			if i := sort.SearchInts(snaps, end); i < len(snaps) {
				end = snaps[i]
			}
		}

		startTime, endTime := tr.Time(start), tr.Time(end)
		excursions = append(excursions, defs.Event{
			Patient: tr.Patient,
			Time:    tr.Time(anchor),
			Before:  tr.Minutes(start, anchor),
			After:   tr.Minutes(anchor, end),
			Type:    defs.ExcursionType(dir),
			Description: fmt.Sprintf("%s to %s %sglycemic excursion",
				startTime.Format(descTimeFormat), endTime.Format(descTimeFormat), dir),
		})
	}
	return excursions
}

// turningPoints returns the indices of strict local maxima and minima.
// The first and last samples are never turning points.
func turningPoints(vals []float64) (peaks, nadirs []int) {
	for i := 1; i < len(vals)-1; i++ {
		switch {
		case vals[i-1] < vals[i] && vals[i+1] < vals[i]:
			peaks = append(peaks, i)
		case vals[i-1] > vals[i] && vals[i+1] > vals[i]:
			nadirs = append(nadirs, i)
		}
	}
	return peaks, nadirs
}

// extremum returns the first index of the run's maximum (hyper) or minimum (hypo).
func extremum(vals []float64, run interval.Interval, dir defs.Direction) int {
	best := run.Start
	for i := run.Start + 1; i <= run.End; i++ {
		if (dir == defs.Hyper && vals[i] > vals[best]) || (dir == defs.Hypo && vals[i] < vals[best]) {
			best = i
		}
	}
	return best
}
