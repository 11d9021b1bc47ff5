// Package export renders evaluation sheets as spreadsheets.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/okian/gradebook/internal/domain/model"
	"github.com/xuri/excelize/v2"
)

// ContentType is the media type of WriteSheet output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Worksheet names.
const (
	GradesSheet  = "Grades"
	SummarySheet = "Summary"
)

var gradeHeaders = []string{"Student number", "Last name", "First name", "Score", "Status", "Comments"}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns a download name for the sheet, e.g. "quiz-1_ev-1.xlsx".
func FileName(sheet model.Sheet) string {
	title := unsafeFileChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(sheet.Evaluation.Title)), "-")
	title = strings.Trim(title, "-")
	if title == "" {
		title = "evaluation"
	}
	return fmt.Sprintf("%s_%s.xlsx", title, unsafeFileChars.ReplaceAllString(sheet.Evaluation.ID, "-"))
}

// WriteSheet writes the roster and its scores to w as an xlsx workbook.
// Ungraded rows leave the score cell empty. stats may be nil.
func WriteSheet(w io.Writer, sheet model.Sheet, stats *model.EvaluationStatistics) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", GradesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range gradeHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(GradesSheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := boldRow(f, GradesSheet, len(gradeHeaders)); err != nil {
		return err
	}

	for i, r := range sheet.Students {
		row := i + 2
		values := []any{r.StudentNumber, r.LastName, r.FirstName, nil, "", r.Comments}
		if r.Score != nil {
			values[3] = *r.Score
			values[4] = r.Status.Label()
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(GradesSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	_ = f.SetColWidth(GradesSheet, "A", "C", 18)
	_ = f.SetColWidth(GradesSheet, "F", "F", 40)

	if err := writeSummary(f, sheet.Evaluation, stats); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, ev model.Evaluation, stats *model.EvaluationStatistics) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	rows := [][]any{
		{"Evaluation", ev.Title},
		{"Date", ev.Date.Format("2006-01-02")},
		{"Max score", ev.MaxScore},
		{"Coefficient", ev.Coefficient},
		{"Status", ev.Status.Label()},
	}
	if stats != nil {
		rows = append(rows,
			[]any{"Students", stats.Students},
			[]any{"Graded", stats.Graded},
			[]any{"Mean", stats.Mean},
			[]any{"Median", stats.Median},
			[]any{"Min", stats.Min},
			[]any{"Max", stats.Max},
			[]any{"Passed", stats.Passed},
			[]any{fmt.Sprintf("Mean /%g", stats.Scale), stats.NormalizedMean},
		)
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SummarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 16)
	return nil
}

func boldRow(f *excelize.File, sheet string, cols int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(cols, 1)
	return f.SetCellStyle(sheet, "A1", last, style)
}
