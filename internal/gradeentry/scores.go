package gradeentry

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/gradebook/internal/adapters/export"
)

// ErrMalformedLine is returned for a score line without a key.
var ErrMalformedLine = errors.New("malformed score line")

// ScoreLine is one score to enter. Key is an enrollment code or a student
// number; Raw is the score as typed.
type ScoreLine struct {
	Line int
	Key  string
	Raw  string
}

// ReadScoresFile reads score lines from a CSV file or an xlsx sheet.
func ReadScoresFile(path string) ([]ScoreLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readWorkbook(f)
	}
	return ReadScores(f)
}

func readWorkbook(r io.Reader) ([]ScoreLine, error) {
	rows, err := export.ReadGrades(r)
	if err != nil {
		return nil, err
	}
	out := make([]ScoreLine, 0, len(rows))
	for _, row := range rows {
		out = append(out, ScoreLine{Line: row.Row, Key: row.StudentNumber, Raw: row.Score})
	}
	return out, nil
}

// ReadScores parses "key,score" CSV. The separator is ';' when the first data
// line contains one, which leaves room for decimal commas. An optional header
// row and '#' comments are skipped. A missing score leaves Raw empty.
func ReadScores(r io.Reader) ([]ScoreLine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = separator(data)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []ScoreLine
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse scores: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if isHeader(rec[0]) {
				continue
			}
		}

		key := strings.TrimSpace(rec[0])
		if key == "" {
			if len(rec) == 1 {
				continue
			}
			return nil, fmt.Errorf("%w: line %d has no enrollment code", ErrMalformedLine, line)
		}
		sl := ScoreLine{Line: line, Key: key}
		if len(rec) > 1 {
			sl.Raw = strings.TrimSpace(rec[1])
		}
		out = append(out, sl)
	}
	return out, nil
}

func separator(data []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, ";") {
			return ';'
		}
		break
	}
	return ','
}

func isHeader(field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "enrollment_code", "enrollment code", "student_number", "student number":
		return true
	}
	return false
}
