package events

import (
	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/trace"
)

// Curated returns every episode followed by every excursion for the trace.
func Curated(tr *trace.Trace, cfg defs.AnalysisConfig) []defs.Event {
	return append(Episodes(tr, cfg), Excursions(tr, cfg)...)
}

// Summary counts events per type.
func Summary(evs []defs.Event) map[string]int {
	counts := make(map[string]int)
	for _, e := range evs {
		counts[e.Type]++
	}
	return counts
}

// OfType filters events down to one patient and type, preserving order.
func OfType(evs []defs.Event, patient, typ string) []defs.Event {
	var out []defs.Event
	for _, e := range evs {
		if e.Patient == patient && e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
