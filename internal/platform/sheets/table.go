package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Cell is one gviz cell: the raw value and, for dates and numbers, the
// spreadsheet's formatted rendering.
type Cell struct {
	V any    `json:"v"`
	F string `json:"f,omitempty"`
}

// Row holds the cells of one sheet row. C is nil when the export omitted the
// cell array entirely; individual nil entries are absent cells.
type Row struct {
	C []*Cell `json:"c"`
}

// Table is one tab as read. HeaderRows counts the sheet rows the source
// consumed as headers before Rows[0]; gviz reports it as parsedNumHeaders.
type Table struct {
	Rows       []Row `json:"rows"`
	HeaderRows int   `json:"parsedNumHeaders,omitempty"`
}

// SheetRow returns the 1-based sheet row that Rows[i] was read from.
func (t Table) SheetRow(i int) int {
	return t.HeaderRows + i + 1
}

// IsHeader reports whether Rows[i] is the tab's header row, which sits on
// sheet row 1 when the source did not consume it.
func (t Table) IsHeader(i int) bool {
	return t.SheetRow(i) == 1
}

// Reader loads a sheet tab as a table of rows.
type Reader interface {
	ReadTable(ctx context.Context, sheet string) (Table, error)
}

// Blank reports whether the row carried no cell array.
func (r Row) Blank() bool {
	return r.C == nil
}

func (r Row) cell(index int) *Cell {
	if index < 0 || index >= len(r.C) {
		return nil
	}
	return r.C[index]
}

// Raw returns the raw value at index, or nil for absent cells.
func (r Row) Raw(index int) any {
	if c := r.cell(index); c != nil {
		return c.V
	}
	return nil
}

// Value returns the trimmed string form of the raw value, "" when absent.
func (r Row) Value(index int) string {
	c := r.cell(index)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(Stringify(c.V))
}

// Display prefers the formatted value and falls back to Value.
func (r Row) Display(index int) string {
	c := r.cell(index)
	if c == nil {
		return ""
	}
	if c.F != "" {
		return strings.TrimSpace(c.F)
	}
	return strings.TrimSpace(Stringify(c.V))
}

// Stringify renders a decoded JSON scalar the way the spreadsheet shows it:
// integers without exponent or trailing zeros, nil as "".
func Stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}

// RowFromValues wraps a plain values row (Sheets API or script "values"
// shape) into cells.
func RowFromValues(values []any) Row {
	cells := make([]*Cell, len(values))
	for i, v := range values {
		cells[i] = &Cell{V: v}
	}
	return Row{C: cells}
}
