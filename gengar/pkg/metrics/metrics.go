// Package metrics computes glycemic control metrics over a trace or a slice
// of one. Every function is pure; degenerate input yields NaN rather than an
// error so that batch runs over many patients are never aborted.
package metrics

import (
	"math"

	"cgmev/gengar/pkg/trace"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/integrate"
)

// Fixed bounds used by COGI.
const (
	cogiLow  = 70
	cogiHigh = 180
)

// Baseline is the first glucose value of the series.
func Baseline(tr *trace.Trace) float64 {
	if tr.Len() == 0 {
		return math.NaN()
	}
	return tr.Value(0)
}

func Peak(tr *trace.Trace) float64 {
	v, err := stats.Max(tr.Values())
	if err != nil {
		return math.NaN()
	}
	return v
}

func Nadir(tr *trace.Trace) float64 {
	v, err := stats.Min(tr.Values())
	if err != nil {
		return math.NaN()
	}
	return v
}

// Delta is |peak - baseline|.
func Delta(tr *trace.Trace) float64 {
	return math.Abs(Peak(tr) - Baseline(tr))
}

func Mean(tr *trace.Trace) float64 {
	return mean(tr.Values())
}

// SD is the sample standard deviation.
func SD(tr *trace.Trace) float64 {
	return sd(tr.Values())
}

// AUC integrates glucose with the trapezoidal rule, one sampling interval
// per step. Timestamps are not consulted, so the series must be gap free.
func AUC(tr *trace.Trace) float64 {
	return auc(tr.Values(), tr.IntervalMinutes())
}

// IAUC is the area the curve protrudes beyond level, in either direction.
func IAUC(tr *trace.Trace, level float64) float64 {
	vals := tr.Values()
	for i, v := range vals {
		vals[i] = math.Max(0, math.Abs(v-level))
	}
	return auc(vals, tr.IntervalMinutes())
}

// TimeInRange is the percentage of samples within [low, high].
func TimeInRange(tr *trace.Trace, low, high float64) float64 {
	return percentOf(tr, func(v float64) bool { return v >= low && v <= high })
}

// TimeBelow is the percentage of samples strictly below level.
func TimeBelow(tr *trace.Trace, level float64) float64 {
	return percentOf(tr, func(v float64) bool { return v < level })
}

// TimeAbove is the percentage of samples strictly above level.
func TimeAbove(tr *trace.Trace, level float64) float64 {
	return percentOf(tr, func(v float64) bool { return v > level })
}

// A1c estimates HbA1c (%) from mean glucose.
func A1c(tr *trace.Trace) float64 {
	return (46.7 + Mean(tr)) / 28.7
}

// GMI is the glucose management indicator (%).
func GMI(tr *trace.Trace) float64 {
	return 0.02392*Mean(tr) + 3.31
}

// COGI blends time in range, time below range and variability into one
// 0-100 score.
func COGI(tr *trace.Trace) float64 {
	tir := TimeInRange(tr, cogiLow, cogiHigh)
	tbr := TimeBelow(tr, cogiLow)
	return 0.5*tir + 0.35*(1-math.Min(tbr, 15)/15)*100 + 0.15*sdScore(SD(tr))
}

func sdScore(sd float64) float64 {
	switch {
	case sd < 18:
		return 100
	case sd >= 108:
		return 0
	default:
		// NaN falls through here and propagates.
		return (1 - sd/108) * 100
	}
}

func percentOf(tr *trace.Trace, match func(float64) bool) float64 {
	if tr.Len() == 0 {
		return math.NaN()
	}
	n := 0
	for _, r := range tr.Readings {
		if match(r.MgDL) {
			n++
		}
	}
	return 100 * float64(n) / float64(tr.Len())
}

func auc(vals []float64, dx float64) float64 {
	switch len(vals) {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}
	x := make([]float64, len(vals))
	for i := range x {
		x[i] = float64(i) * dx
	}
	return integrate.Trapezoidal(x, vals)
}

func mean(vals []float64) float64 {
	m, err := stats.Mean(vals)
	if err != nil {
		return math.NaN()
	}
	return m
}

func sd(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	s, err := stats.StandardDeviationSample(vals)
	if err != nil {
		return math.NaN()
	}
	return s
}
