// Package events detects threshold episodes and statistical excursions in a
// glucose trace and emits them as canonical event records.
package events

import (
	"fmt"
	"sort"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/interval"
	"cgmev/gengar/pkg/trace"
)

const descTimeFormat = "2006-01-02 15:04:05"

// Band is one severity threshold. Hypo bands match values at or below the
// threshold, hyper bands values at or above it.
type Band struct {
	Direction defs.Direction
	Threshold float64
	Level     int
}

// Bands expands the configured thresholds into the five detection passes.
func Bands(th defs.Thresholds) []Band {
	return []Band{
		{Direction: defs.Hyper, Threshold: th.HyperLvl0, Level: 0},
		{Direction: defs.Hyper, Threshold: th.HyperLvl1, Level: 1},
		{Direction: defs.Hyper, Threshold: th.HyperLvl2, Level: 2},
		{Direction: defs.Hypo, Threshold: th.HypoLvl1, Level: 1},
		{Direction: defs.Hypo, Threshold: th.HypoLvl2, Level: 2},
	}
}

func (b Band) beyond(v float64) bool {
	if b.Direction == defs.Hypo {
		return v <= b.Threshold
	}
	return v >= b.Threshold
}

func (b Band) normal(v float64) bool {
	if b.Direction == defs.Hypo {
		return v >= b.Threshold
	}
	return v <= b.Threshold
}

// Episodes runs every configured band over the trace. Bands are independent,
// so nested episodes of increasing severity are all reported. The result is
// ordered by timestamp.
func Episodes(tr *trace.Trace, cfg defs.AnalysisConfig) []defs.Event {
	var episodes []defs.Event
	for _, band := range Bands(cfg.Thresholds) {
		episodes = append(episodes, DetectEpisodes(tr, band, cfg.MinLength, cfg.EndLength)...)
	}
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Time.Before(episodes[j].Time)
	})
	return episodes
}

// DetectEpisodes finds runs beyond the band's threshold lasting at least
// minLength minutes. A run only ends once the following endLength minutes
// are all back on the normal side; otherwise it absorbs the next run.
func DetectEpisodes(tr *trace.Trace, band Band, minLength, endLength float64) []defs.Event {
	runs := interval.Extract(tr, func(i int) bool {
		return band.beyond(tr.Value(i))
	})
	runs = interval.Resolve(tr, runs, minLength, endLength, func(_ interval.Interval, i int) bool {
		return band.normal(tr.Value(i))
	})

	episodes := make([]defs.Event, 0, len(runs))
	for _, run := range runs {
		start, end := tr.Time(run.Start), tr.Time(run.End)
		episodes = append(episodes, defs.Event{
			Patient: tr.Patient,
			Time:    start,
			Before:  0,
			After:   run.Minutes(tr),
			Type:    defs.EpisodeType(band.Direction, band.Level),
			Description: fmt.Sprintf("%s to %s level %d %sglycemic episode",
				start.Format(descTimeFormat), end.Format(descTimeFormat), band.Level, band.Direction),
		})
	}
	return episodes
}
