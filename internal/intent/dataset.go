package intent

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Example is one labelled message.
type Example struct {
	Text  string
	Label Label

	// Line is the CSV line the example was read from, 0 otherwise.
	Line int
}

// name identifies the example in errors; i is its position in a slice.
func (e Example) name(i int) string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d", e.Line)
	}
	return fmt.Sprintf("example %d", i)
}

// RowError reports a bad CSV row. Line is 1-based and counts the header.
type RowError struct {
	Line   int
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Err }

// LoadCSV reads examples from CSV with a header naming a "text" and a
// "label" column. Labels are intent names or ids.
func LoadCSV(r io.Reader) ([]Example, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	textCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return nil, &RowError{Line: 1, Reason: fmt.Sprintf("header %v needs text and label columns", header)}
	}

	var out []Example
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &RowError{Line: line, Reason: err.Error(), Err: err}
		}
		// Quoted fields may span lines.
		line, _ = cr.FieldPos(0)
		text := strings.TrimSpace(rec[textCol])
		if text == "" {
			return nil, &RowError{Line: line, Reason: "text is blank"}
		}
		label, err := ParseLabel(rec[labelCol])
		if err != nil {
			return nil, &RowError{Line: line, Reason: err.Error(), Err: err}
		}
		out = append(out, Example{Text: text, Label: label, Line: line})
	}
	return out, nil
}

// LoadCSVFile reads examples from path.
func LoadCSVFile(path string) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intent dataset: %w", err)
	}
	defer f.Close()

	examples, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return examples, nil
}
