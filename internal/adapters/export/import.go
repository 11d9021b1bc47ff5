package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoScoreColumn is returned when the Grades sheet lacks the student number
// or score header.
var ErrNoScoreColumn = errors.New("grades sheet needs a student number and a score column")

// ImportedScore is one filled-in row of a Grades sheet. Score is the cell text
// as typed, empty when the cell is blank.
type ImportedScore struct {
	Row           int
	StudentNumber string
	Score         string
}

// ReadGrades reads back a workbook produced by WriteSheet after scores were
// filled in. Columns are located by header so reordered sheets still import.
func ReadGrades(r io.Reader) ([]ImportedScore, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(GradesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s sheet: %w", GradesSheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoScoreColumn
	}

	numberCol, scoreCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case strings.ToLower(gradeHeaders[0]):
			numberCol = i
		case strings.ToLower(gradeHeaders[3]):
			scoreCol = i
		}
	}
	if numberCol < 0 || scoreCol < 0 {
		return nil, ErrNoScoreColumn
	}

	var out []ImportedScore
	for i, row := range rows[1:] {
		number := cell(row, numberCol)
		if number == "" {
			continue
		}
		out = append(out, ImportedScore{Row: i + 2, StudentNumber: number, Score: cell(row, scoreCol)})
	}
	return out, nil
}

// GetRows trims trailing empty cells, so short rows are expected.
func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}
