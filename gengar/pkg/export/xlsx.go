// Package export writes event and summary tables to an XLSX workbook.
package export

import (
	"fmt"
	"math"

	"cgmev/gengar/defs"
	"cgmev/gengar/pkg/features"
	"cgmev/gengar/pkg/metrics"

	"github.com/xuri/excelize/v2"
)

const (
	EventsSheet   = "events"
	SummarySheet  = "summary"
	FeaturesSheet = "features"

	timeFormat = "2006-01-02 15:04:05"
)

var eventHeader = []interface{}{"id", "timestamp", "minutes_before", "minutes_after", "type", "description"}

type Workbook struct {
	file *excelize.File
}

// New creates a workbook containing the three empty tables.
func New() (*Workbook, error) {
	f := excelize.NewFile()
	for _, sheet := range []string{EventsSheet, SummarySheet, FeaturesSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("unable to create sheet %s: %w", sheet, err)
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("unable to delete default sheet: %w", err)
	}
	return &Workbook{file: f}, nil
}

// WriteEvents writes the canonical event table.
func (w *Workbook) WriteEvents(evs []defs.Event) error {
	if err := w.setRow(EventsSheet, 1, eventHeader); err != nil {
		return err
	}
	for i, e := range evs {
		row := []interface{}{e.Patient, e.Time.Format(timeFormat), e.Before, e.After, e.Type, e.Description}
		if err := w.setRow(EventsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// WriteSummaries writes one row per patient.
func (w *Workbook) WriteSummaries(ss []metrics.Summary) error {
	if len(ss) == 0 {
		return nil
	}
	if err := w.setRow(SummarySheet, 1, header("id", ss[0].Columns())); err != nil {
		return err
	}
	for i, s := range ss {
		if err := w.setRow(SummarySheet, i+2, values(s.Patient, s.Columns())); err != nil {
			return err
		}
	}
	return nil
}

// WriteFeatures writes one row per patient and event type. Column names
// embed the event type, so the header is generic.
func (w *Workbook) WriteFeatures(fs []features.Features) error {
	hdr := []interface{}{"id", "type", "count", "per day", "duration", "glucose", "up slope",
		"down slope", "nadir", "peak", "amplitude", "iAUC"}
	if err := w.setRow(FeaturesSheet, 1, hdr); err != nil {
		return err
	}
	for i, f := range fs {
		row := []interface{}{f.Patient, f.Type, f.Count, cell(f.PerDay), cell(f.MeanDuration), cell(f.MeanGlucose),
			cell(f.MeanUpSlope), cell(f.MeanDownSlope), cell(f.MeanNadir), cell(f.MeanPeak),
			cell(f.MeanAmplitude), cell(f.MeanIAUC)}
		if err := w.setRow(FeaturesSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("unable to save workbook: %w", err)
	}
	return nil
}

func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) setRow(sheet string, row int, vals []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(sheet, axis, &vals); err != nil {
		return fmt.Errorf("unable to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func header(first string, cols []metrics.Column) []interface{} {
	out := []interface{}{first}
	for _, c := range cols {
		out = append(out, c.Name)
	}
	return out
}

func values(first string, cols []metrics.Column) []interface{} {
	out := []interface{}{first}
	for _, c := range cols {
		out = append(out, cell(c.Value))
	}
	return out
}

// cell leaves NaN cells empty; excelize cannot store NaN.
func cell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
