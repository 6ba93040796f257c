// Package csvtab parses delimited text into typed rows.
package csvtab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing column")

// Value is a single cell. Numeric cells carry their parsed value.
type Value struct {
	Raw   string
	Num   float64
	IsNum bool
}

// Row maps column names to cells.
type Row map[string]Value

// Table is a parsed delimited file.
type Table struct {
	Columns []string
	Rows    []Row
}

// Options controls parsing.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
}

// Parse reads a header row followed by data rows.
func Parse(r io.Reader, opts Options) (Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, fmt.Errorf("empty table")
		}
		return Table{}, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = name
	}

	table := Table{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("failed to read row %d: %w", len(table.Rows)+1, err)
		}
		if isBlank(record) {
			continue
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			cell := ""
			if i < len(record) {
				cell = strings.TrimSpace(record[i])
			}
			row[name] = parseValue(cell)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// ParseString is Parse over an in-memory string.
func ParseString(text string, opts Options) (Table, error) {
	return Parse(strings.NewReader(text), opts)
}

// Require returns ErrMissingColumn when any of names is not a column.
func (t Table) Require(names ...string) error {
	have := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, n := range names {
		if _, ok := have[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Float returns the numeric value of a column.
func (r Row) Float(name string) (float64, error) {
	v, ok := r[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	if !v.IsNum {
		return 0, fmt.Errorf("column %s is not numeric: %q", name, v.Raw)
	}
	return v.Num, nil
}

// String returns the raw text of a column, or "" when absent.
func (r Row) String(name string) string {
	return r[name].Raw
}

func parseValue(cell string) Value {
	v := Value{Raw: cell}
	if cell == "" {
		return v
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		v.Num = f
		v.IsNum = true
	}
	return v
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
