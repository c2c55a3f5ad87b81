// Package report writes recorded scores for educators as JSON or a spreadsheet.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/able/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json or xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q (want json or xlsx)", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/json"
}

// Write encodes results to w in format f.
func Write(w io.Writer, f Format, results []model.ScoreResult, now time.Time) error {
	if f == FormatXLSX {
		return WriteXLSX(w, results)
	}
	return WriteJSON(w, results, now)
}

// WriteJSON writes an indented export document with a trailing newline.
func WriteJSON(w io.Writer, results []model.ScoreResult, now time.Time) error {
	if results == nil {
		results = []model.ScoreResult{}
	}
	data, err := json.MarshalIndent(model.ScoreExport{ExportedAt: now.UTC(), Results: results}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SheetName is the worksheet holding the scores.
const SheetName = "Scores"

var headers = []string{
	"Score ID", "User ID", "Name", "Supports", "Assessment ID", "Assessment",
	"Score", "Total", "Started", "Submitted",
}

// WriteXLSX writes one header row and one row per score.
func WriteXLSX(w io.Writer, results []model.ScoreResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, 1, toAny(headers)); err != nil {
		return err
	}
	for i, r := range results {
		supports := make([]string, len(r.Supports))
		for j, s := range r.Supports {
			supports[j] = string(s)
		}
		row := []any{
			r.ScoreID, r.UserID, r.Name, strings.Join(supports, ", "), r.AssessmentID, r.AssessmentTitle,
			r.Score, r.Total, stamp(r.StartedAt), stamp(r.SubmittedAt),
		}
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetName, "C", "F", 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write spreadsheet: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
