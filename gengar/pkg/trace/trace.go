// Package trace holds one patient's evenly sampled glucose series.
package trace

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cgmev/gengar/defs"
)

const dayFormat = "2006-01-02"

var (
	ErrEmptyTrace        = errors.New("empty trace")
	ErrInvalidInterval   = errors.New("sampling interval must be positive")
	ErrUnsorted          = errors.New("timestamps are not strictly increasing")
	ErrIrregularSampling = errors.New("sampling interval is not constant")
	ErrInvalidGlucose    = errors.New("glucose values must be positive")
	ErrMixedPatients     = errors.New("readings belong to more than one patient")
)

// Trace is a read-only, validated series: timestamps strictly increase by
// exactly Interval and every value is a positive mg/dL reading.
type Trace struct {
	Patient  string
	Interval time.Duration
	Readings []defs.Reading
}

// New validates readings and wraps them in a Trace. Readings are never
// reordered or dropped; any violation is reported as an error.
func New(patient string, interval time.Duration, readings []defs.Reading) (*Trace, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("patient %s: %w", patient, ErrInvalidInterval)
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("patient %s: %w", patient, ErrEmptyTrace)
	}

	for i, r := range readings {
		if r.Patient != "" && r.Patient != patient {
			return nil, fmt.Errorf("patient %s: reading %d is for %s: %w", patient, i, r.Patient, ErrMixedPatients)
		}
		if !(r.MgDL > 0) {
			return nil, fmt.Errorf("patient %s: reading %d has value %v: %w", patient, i, r.MgDL, ErrInvalidGlucose)
		}
		if i == 0 {
			continue
		}

		gap := r.Time.Sub(readings[i-1].Time)
		switch {
		case gap <= 0:
			return nil, fmt.Errorf("patient %s: reading %d at %s: %w", patient, i, r.Time, ErrUnsorted)
		case gap != interval:
			return nil, fmt.Errorf("patient %s: gap of %s before reading %d, expected %s: %w",
				patient, gap, i, interval, ErrIrregularSampling)
		}
	}

	return &Trace{Patient: patient, Interval: interval, Readings: readings}, nil
}

func (t *Trace) Len() int {
	return len(t.Readings)
}

// IntervalMinutes is the sampling interval in minutes.
func (t *Trace) IntervalMinutes() float64 {
	return t.Interval.Minutes()
}

func (t *Trace) Time(i int) time.Time {
	return t.Readings[i].Time
}

func (t *Trace) Value(i int) float64 {
	return t.Readings[i].MgDL
}

// Values returns a copy of the glucose values.
func (t *Trace) Values() []float64 {
	vals := make([]float64, len(t.Readings))
	for i, r := range t.Readings {
		vals[i] = r.MgDL
	}
	return vals
}

// Minutes returns the elapsed minutes from sample i to sample j.
func (t *Trace) Minutes(i, j int) float64 {
	return t.Readings[j].Time.Sub(t.Readings[i].Time).Minutes()
}

// IndexOf returns the index of the sample taken exactly at ts, or -1.
func (t *Trace) IndexOf(ts time.Time) int {
	i := sort.Search(len(t.Readings), func(i int) bool {
		return !t.Readings[i].Time.Before(ts)
	})
	if i < len(t.Readings) && t.Readings[i].Time.Equal(ts) {
		return i
	}
	return -1
}

// Slice returns the samples within [start, end], inclusive on both ends.
// The result shares storage with t and may be empty.
func (t *Trace) Slice(start, end time.Time) *Trace {
	lo := sort.Search(len(t.Readings), func(i int) bool {
		return !t.Readings[i].Time.Before(start)
	})
	hi := sort.Search(len(t.Readings), func(i int) bool {
		return t.Readings[i].Time.After(end)
	})
	if hi < lo {
		hi = lo
	}
	return &Trace{Patient: t.Patient, Interval: t.Interval, Readings: t.Readings[lo:hi]}
}

// Window returns the samples covered by an event's analysis window.
func (t *Trace) Window(e defs.Event) *Trace {
	return t.Slice(e.Start(), e.End())
}

// ByDay splits the trace into calendar days, in the location of its timestamps.
func (t *Trace) ByDay() []*Trace {
	var days []*Trace
	start := 0
	for i := 1; i <= len(t.Readings); i++ {
		if i < len(t.Readings) && dayOf(t.Readings[i].Time) == dayOf(t.Readings[start].Time) {
			continue
		}
		days = append(days, &Trace{Patient: t.Patient, Interval: t.Interval, Readings: t.Readings[start:i]})
		start = i
	}
	return days
}

// InLocation moves readings onto loc's wall clock in place, so calendar days
// follow the patient's local dates. A nil loc leaves them unchanged.
func InLocation(readings []defs.Reading, loc *time.Location) {
	if loc == nil {
		return
	}
	for i := range readings {
		readings[i].Time = readings[i].Time.In(loc)
	}
}

// Days is the number of distinct calendar days present.
func (t *Trace) Days() int {
	return len(t.ByDay())
}

func dayOf(ts time.Time) string {
	return ts.Format(dayFormat)
}
