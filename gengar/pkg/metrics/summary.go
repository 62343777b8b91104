package metrics

import (
	"math"
	"sort"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/trace"

	"github.com/montanaflynn/stats"
)

// Column is one named value of a tabular summary row.
type Column struct {
	Name  string
	Value float64
}

// Summary is the global metrics row for one patient.
type Summary struct {
	Patient     string
	Mean        float64
	Min         float64
	Q1          float64
	Median      float64
	Q3          float64
	Max         float64
	IntraSD     float64
	InterSD     float64
	A1c         float64
	GMI         float64
	TimeInRange float64
	TimeBelow   float64
	TimeAbove   float64
	MAGE        float64
	ADRR        float64
	COGI        float64
}

func (s Summary) Columns() []Column {
	return []Column{
		{"mean", s.Mean},
		{"min", s.Min},
		{"first quartile", s.Q1},
		{"median", s.Median},
		{"third quartile", s.Q3},
		{"max", s.Max},
		{"intrasd", s.IntraSD},
		{"intersd", s.InterSD},
		{"a1c", s.A1c},
		{"gmi", s.GMI},
		{"percent time in range", s.TimeInRange},
		{"percent time below range", s.TimeBelow},
		{"percent time above range", s.TimeAbove},
		{"MAGE", s.MAGE},
		{"ADRR", s.ADRR},
		{"COGI", s.COGI},
	}
}

// SummarizeAll builds one row per trace. InterSD is the standard deviation of
// every reading across all traces.
func SummarizeAll(trs []*trace.Trace, cfg defs.AnalysisConfig) []Summary {
	interSD := InterSD(trs)
	out := make([]Summary, 0, len(trs))
	for _, tr := range trs {
		out = append(out, Summarize(tr, cfg, interSD))
	}
	return out
}

// InterSD is the sample standard deviation of the pooled readings of trs.
func InterSD(trs []*trace.Trace) float64 {
	var all []float64
	for _, tr := range trs {
		all = append(all, tr.Values()...)
	}
	return sd(all)
}

// Summarize builds the summary row for a single trace.
func Summarize(tr *trace.Trace, cfg defs.AnalysisConfig, interSD float64) Summary {
	sorted := tr.Values()
	sort.Float64s(sorted)

	return Summary{
		Patient:     tr.Patient,
		Mean:        Mean(tr),
		Min:         Nadir(tr),
		Q1:          quantile(sorted, 0.25),
		Median:      quantile(sorted, 0.5),
		Q3:          quantile(sorted, 0.75),
		Max:         Peak(tr),
		IntraSD:     SD(tr),
		InterSD:     interSD,
		A1c:         A1c(tr),
		GMI:         GMI(tr),
		TimeInRange: TimeInRange(tr, cfg.Range.Low, cfg.Range.High),
		TimeBelow:   TimeBelow(tr, cfg.Range.Low),
		TimeAbove:   TimeAbove(tr, cfg.Range.High),
		MAGE:        MAGE(tr, cfg.MAGEWindow),
		ADRR:        ADRR(tr),
		COGI:        COGI(tr),
	}
}

// quantile expects sorted input and interpolates linearly between the two
// closest ranks at h = (n-1)p. The median is taken directly.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if p == 0.5 {
		m, err := stats.Median(sorted)
		if err != nil {
			return math.NaN()
		}
		return m
	}

	h := float64(len(sorted)-1) * p
	lo, hi := int(math.Floor(h)), int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// EventMetrics are the basic measurements of one event window.
type EventMetrics struct {
	Baseline float64
	Peak     float64
	Delta    float64
	IAUC     float64
}

func (m EventMetrics) Columns() []Column {
	return []Column{
		{"baseline", m.Baseline},
		{"peak", m.Peak},
		{"delta", m.Delta},
		{"iAUC", m.IAUC},
	}
}

// ForEvent measures the part of tr covered by the event's window.
func ForEvent(tr *trace.Trace, e defs.Event) EventMetrics {
	w := tr.Window(e)
	base := Baseline(w)
	return EventMetrics{
		Baseline: base,
		Peak:     Peak(w),
		Delta:    Delta(w),
		IAUC:     IAUC(w, base),
	}
}
