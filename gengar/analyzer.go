package gengar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/events"
	"cgmev/gengar/pkg/features"
	"cgmev/gengar/pkg/metrics"
	"cgmev/gengar/pkg/mg"
	"cgmev/gengar/pkg/trace"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 4

type AnalyzerStore interface {
	mg.GlucoseStore
	mg.EventStore
}

type Analyzer struct {
	Store    AnalyzerStore
	Logger   *zap.Logger
	Location *time.Location
	Config   defs.AnalysisConfig

	// Workers bounds how many patients are processed at once.
	Workers int
}

// PatientReport holds everything computed for one patient. Err is set when
// the patient's readings could not form a valid trace; the other fields are
// then empty.
type PatientReport struct {
	Patient  string
	Events   []defs.Event
	Summary  metrics.Summary
	Features []features.Features
	Err      error
}

// Report is ordered by patient.
type Report struct {
	Patients []PatientReport
}

func (r *Report) Events() []defs.Event {
	var out []defs.Event
	for _, p := range r.Patients {
		out = append(out, p.Events...)
	}
	return out
}

func (r *Report) Summaries() []metrics.Summary {
	var out []metrics.Summary
	for _, p := range r.Patients {
		if p.Err == nil {
			out = append(out, p.Summary)
		}
	}
	return out
}

func (r *Report) Features() []features.Features {
	var out []features.Features
	for _, p := range r.Patients {
		out = append(out, p.Features...)
	}
	return out
}

// Trace loads one patient's readings between start and end, moves them to
// the analyzer's location and validates them.
func (an *Analyzer) Trace(ctx context.Context, patient string, start, end time.Time) (*trace.Trace, error) {
	readings, err := an.Store.ReadGlucose(ctx, patient, start, end)
	if err != nil {
		return nil, &storeError{err: fmt.Errorf("unable to read glucose for %s: %w", patient, err)}
	}
	trace.InLocation(readings, an.Location)
	return trace.New(patient, an.Config.SamplingInterval(), readings)
}

// Analyze runs detection, summary and feature extraction for every stored
// patient. Detected events replace whatever the store held for the range.
// Store failures abort the run; invalid traces are reported per patient.
func (an *Analyzer) Analyze(ctx context.Context, start, end time.Time) (*Report, error) {
	patients, err := an.Store.Patients(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list patients: %w", err)
	}

	an.Logger.Debug("analyzing patients",
		zap.Int("count", len(patients)),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	reports := make([]PatientReport, len(patients))
	traces := make([]*trace.Trace, len(patients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(an.workers())
	for i, p := range patients {
		reports[i].Patient = p
		g.Go(func() error {
			tr, err := an.Trace(gctx, p, start, end)
			var se *storeError
			switch {
			case errors.As(err, &se):
				return se.err
			case err != nil:
				an.Logger.Debug("skipping patient", zap.String("patient", p), zap.Error(err))
				reports[i].Err = err
				return nil
			}
			traces[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var valid []*trace.Trace
	for _, tr := range traces {
		if tr != nil {
			valid = append(valid, tr)
		}
	}
	interSD := metrics.InterSD(valid)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(an.workers())
	for i, tr := range traces {
		if tr == nil {
			continue
		}
		g.Go(func() error {
			evs := events.Curated(tr, an.Config)
			if err := an.Store.ReplaceEvents(gctx, tr.Patient, start, end, evs); err != nil {
				return fmt.Errorf("unable to store events for %s: %w", tr.Patient, err)
			}

			reports[i].Events = evs
			reports[i].Summary = metrics.Summarize(tr, an.Config, interSD)
			reports[i].Features = features.Create(tr, evs)

			an.Logger.Debug("analyzed patient",
				zap.String("patient", tr.Patient),
				zap.Int("readings", tr.Len()),
				zap.Int("events", len(evs)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{Patients: reports}, nil
}

func (an *Analyzer) workers() int {
	if an.Workers > 0 {
		return an.Workers
	}
	return defaultWorkers
}

// storeError separates persistence failures from invalid data.
type storeError struct {
	err error
}

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }
