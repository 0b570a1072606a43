package holidays

import (
	"strings"

	"sheetconsole/internal/domain/dates"
	"sheetconsole/internal/platform/sheets"
)

// Project maps the calendar tab onto holidays. Each holiday keeps the sheet
// row it was read from; rows without a holiday name are skipped.
func Project(table sheets.Table) []Holiday {
	var out []Holiday
	for i, row := range table.Rows {
		if row.Blank() || table.IsHeader(i) {
			continue
		}
		name := row.Value(7)
		if name == "" {
			continue
		}
		out = append(out, Holiday{
			Date:     formatDate(row.Raw(5)),
			Day:      row.Value(6),
			Name:     name,
			RowIndex: table.SheetRow(i),
		})
	}
	return out
}

// formatDate leaves dashed strings alone and renders anything else as
// DD-MM-YYYY.
func formatDate(raw any) string {
	if s, ok := raw.(string); ok && strings.Contains(s, "-") {
		return strings.TrimSpace(s)
	}
	return dates.NormalizeWith(raw, "-")
}
