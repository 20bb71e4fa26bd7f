package dataset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSchema is wrapped by every SchemaError.
var ErrSchema = errors.New("schema mismatch")

// SchemaError reports a required column that is absent from a frame.
type SchemaError struct {
	Stage  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: column %q not found", e.Stage, e.Column)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// Frame is an in-memory table: ordered column names and rows of cells.
// A cell is nil (missing), a string, or a float64. Frames are treated as
// immutable; every operation that changes shape returns a new Frame.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// NewFrame builds a frame. Every row must have one cell per column and
// column names must be unique.
func NewFrame(columns []string, rows [][]any) (*Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(r), len(columns))
		}
	}

	return &Frame{
		columns: append([]string(nil), columns...),
		index:   index,
		rows:    rows,
	}, nil
}

func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

func (f *Frame) Len() int { return len(f.rows) }

// Index returns the position of a column.
func (f *Frame) Index(column string) (int, bool) {
	i, ok := f.index[column]
	return i, ok
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) []any { return append([]any(nil), f.rows[i]...) }

// Value returns the cell at row i for a column; ok is false when the
// column does not exist.
func (f *Frame) Value(i int, column string) (any, bool) {
	c, ok := f.index[column]
	if !ok {
		return nil, false
	}
	return f.rows[i][c], true
}

// Lookup resolves column positions in the order given. The first absent
// column is reported as a SchemaError tagged with stage.
func (f *Frame) Lookup(stage string, columns ...string) ([]int, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		pos, ok := f.index[c]
		if !ok {
			return nil, &SchemaError{Stage: stage, Column: c}
		}
		idx[i] = pos
	}
	return idx, nil
}

// Filter returns a frame holding only the rows keep accepts.
func (f *Frame) Filter(keep func(row []any) bool) *Frame {
	rows := make([][]any, 0, len(f.rows))
	for _, r := range f.rows {
		if keep(r) {
			rows = append(rows, append([]any(nil), r...))
		}
	}
	return &Frame{columns: f.columns, index: f.index, rows: rows}
}

// WithColumn sets a column to values, appending it when absent and
// replacing it in place when present.
func (f *Frame) WithColumn(column string, values []any) (*Frame, error) {
	if len(values) != len(f.rows) {
		return nil, fmt.Errorf("column %q has %d values, want %d", column, len(values), len(f.rows))
	}

	columns := f.Columns()
	pos, exists := f.index[column]
	if !exists {
		columns = append(columns, column)
		pos = len(columns) - 1
	}

	rows := make([][]any, len(f.rows))
	for i, r := range f.rows {
		row := make([]any, len(columns))
		copy(row, r)
		row[pos] = values[i]
		rows[i] = row
	}

	return NewFrame(columns, rows)
}

// Rename returns a frame with columns renamed according to aliases
// (old name -> new name). Aliases for absent columns are ignored.
func (f *Frame) Rename(aliases map[string]string) (*Frame, error) {
	columns := f.Columns()
	for i, c := range columns {
		if to, ok := aliases[c]; ok {
			columns[i] = to
		}
	}
	return NewFrame(columns, f.rows)
}

// Float converts a cell to a float64. Missing cells, blank strings and
// text that does not parse report ok=false.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// String renders a cell as text. Whole floats print without a fraction so
// numeric identifiers round-trip as "7" rather than "7.000000".
func String(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
