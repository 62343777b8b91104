package metrics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cgmev/gengar/pkg/trace"
)

// MaxAGPInterval is the coarsest sampling an ambulatory glucose profile accepts.
const MaxAGPInterval = 5 * time.Minute

var ErrSamplingTooCoarse = errors.New("sampling interval too coarse")

// ProfileSlot holds the distribution of readings taken in one time-of-day slot.
type ProfileSlot struct {
	Minute int     `json:"minute"`
	Count  int     `json:"count"`
	P5     float64 `json:"p5"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P95    float64 `json:"p95"`
}

// AGP folds every day of the trace onto one 24 hour axis, with slots one
// sampling interval wide, and reports percentiles per slot. Only slots that
// received readings are returned, ordered by time of day.
func AGP(tr *trace.Trace) ([]ProfileSlot, error) {
	if tr.Interval > MaxAGPInterval {
		return nil, fmt.Errorf("agp needs at most %s between readings, got %s: %w",
			MaxAGPInterval, tr.Interval, ErrSamplingTooCoarse)
	}

	width := int(tr.IntervalMinutes())
	if width < 1 {
		width = 1
	}
	slots := make(map[int][]float64)
	for _, r := range tr.Readings {
		minute := r.Time.Hour()*60 + r.Time.Minute()
		slot := minute / width * width
		slots[slot] = append(slots[slot], r.MgDL)
	}

	profile := make([]ProfileSlot, 0, len(slots))
	for minute, vals := range slots {
		sort.Float64s(vals)
		profile = append(profile, ProfileSlot{
			Minute: minute,
			Count:  len(vals),
			P5:     quantile(vals, 0.05),
			P25:    quantile(vals, 0.25),
			P50:    quantile(vals, 0.5),
			P75:    quantile(vals, 0.75),
			P95:    quantile(vals, 0.95),
		})
	}
	sort.Slice(profile, func(i, j int) bool {
		return profile[i].Minute < profile[j].Minute
	})
	return profile, nil
}
