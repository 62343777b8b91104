// Package features folds per-event measurements into per-type averages.
package features

import (
	"fmt"
	"math"
	"sort"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/metrics"
	"cgmev/gengar/pkg/trace"
)

// Features summarises every event of one type for one patient. Each Mean
// field averages the per-event value; NaN in any instance propagates.
type Features struct {
	Patient       string
	Type          string
	Count         int
	PerDay        float64
	MeanDuration  float64
	MeanGlucose   float64
	MeanUpSlope   float64
	MeanDownSlope float64
	MeanNadir     float64
	MeanPeak      float64
	MeanAmplitude float64
	MeanIAUC      float64
}

func (f Features) Columns() []metrics.Column {
	return []metrics.Column{
		{Name: fmt.Sprintf("Mean %s Duration", f.Type), Value: f.MeanDuration},
		{Name: fmt.Sprintf("Mean Glucose During %ss", f.Type), Value: f.MeanGlucose},
		{Name: fmt.Sprintf("Mean Upwards Slope of %ss (mg/dL per min)", f.Type), Value: f.MeanUpSlope},
		{Name: fmt.Sprintf("Mean Downwards Slope of %ss (mg/dL per min)", f.Type), Value: f.MeanDownSlope},
		{Name: fmt.Sprintf("Mean Minimum Glucose of %ss", f.Type), Value: f.MeanNadir},
		{Name: fmt.Sprintf("Mean Maximum Glucose of %ss", f.Type), Value: f.MeanPeak},
		{Name: fmt.Sprintf("Mean Amplitude of %ss", f.Type), Value: f.MeanAmplitude},
		{Name: fmt.Sprintf("Mean iAUC of %ss", f.Type), Value: f.MeanIAUC},
		{Name: fmt.Sprintf("Mean # of %ss per day", f.Type), Value: f.PerDay},
	}
}

// Measurement is what a single event window yields.
type Measurement struct {
	Duration  float64
	Glucose   float64
	UpSlope   float64
	DownSlope float64
	Nadir     float64
	Peak      float64
	Amplitude float64
	IAUC      float64
}

// Create aggregates the patient's events per type, ordered by type name.
func Create(tr *trace.Trace, evs []defs.Event) []Features {
	byType := make(map[string][]defs.Event)
	for _, e := range evs {
		if e.Patient != tr.Patient {
			continue
		}
		byType[e.Type] = append(byType[e.Type], e)
	}

	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)

	out := make([]Features, 0, len(types))
	for _, typ := range types {
		out = append(out, Aggregate(tr, byType[typ], typ))
	}
	return out
}

// Aggregate averages the measurements of evs, all of which are of type typ.
func Aggregate(tr *trace.Trace, evs []defs.Event, typ string) Features {
	var sum Measurement
	for _, e := range evs {
		m := Measure(tr, e)
		sum.Duration += m.Duration
		sum.Glucose += m.Glucose
		sum.UpSlope += m.UpSlope
		sum.DownSlope += m.DownSlope
		sum.Nadir += m.Nadir
		sum.Peak += m.Peak
		sum.Amplitude += m.Amplitude
		sum.IAUC += m.IAUC
	}

	n := float64(len(evs))
	avg := func(v float64) float64 {
		if n == 0 {
			return math.NaN()
		}
		return v / n
	}

	perDay := math.NaN()
	if days := tr.Days(); days > 0 {
		perDay = n / float64(days)
	}

	return Features{
		Patient:       tr.Patient,
		Type:          typ,
		Count:         len(evs),
		PerDay:        perDay,
		MeanDuration:  avg(sum.Duration),
		MeanGlucose:   avg(sum.Glucose),
		MeanUpSlope:   avg(sum.UpSlope),
		MeanDownSlope: avg(sum.DownSlope),
		MeanNadir:     avg(sum.Nadir),
		MeanPeak:      avg(sum.Peak),
		MeanAmplitude: avg(sum.Amplitude),
		MeanIAUC:      avg(sum.IAUC),
	}
}

// Measure slices the event window out of tr and measures it. Amplitude is
// the change from the window's first reading to the reading at the event
// timestamp; slopes divide it by the time before and after that reading and
// are 0 when that time is 0. Upward slopes are positive, downward negative.
func Measure(tr *trace.Trace, e defs.Event) Measurement {
	w := tr.Window(e)
	base := metrics.Baseline(w)

	m := Measurement{
		Duration:  e.Before + e.After,
		Glucose:   metrics.Mean(w),
		Nadir:     metrics.Nadir(w),
		Peak:      metrics.Peak(w),
		Amplitude: math.NaN(),
		UpSlope:   math.NaN(),
		DownSlope: math.NaN(),
		IAUC:      metrics.IAUC(w, base),
	}

	anchor := w.IndexOf(e.Time)
	if anchor < 0 {
		return m
	}

	amplitude := w.Value(anchor) - base
	m.Amplitude = math.Abs(amplitude)

	toAnchor := slope(amplitude, w.Minutes(0, anchor))
	fromAnchor := slope(amplitude, w.Minutes(anchor, w.Len()-1))
	if amplitude >= 0 {
		m.UpSlope, m.DownSlope = toAnchor, -fromAnchor
	} else {
		m.UpSlope, m.DownSlope = fromAnchor, -toAnchor
	}
	return m
}

func slope(amplitude, minutes float64) float64 {
	if minutes == 0 {
		return 0
	}
	return math.Abs(amplitude / minutes)
}
