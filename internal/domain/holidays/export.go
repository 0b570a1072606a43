package holidays

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"Date", "Day", "Holiday Name"}

const xlsxSheet = "Holidays"

func exportRows(items []Holiday) [][]string {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, exportHeader)
	for _, h := range items {
		rows = append(rows, []string{h.Date, h.Day, h.Name})
	}
	return rows
}

// ExportCSV writes the list as Holidays.csv content. Fields are joined with
// commas as they are; nothing is quoted.
func ExportCSV(w io.Writer, items []Holiday) error {
	rows := exportRows(items)
	lines := make([]string, len(rows))
	for i, row := range rows {
		lines[i] = strings.Join(row, ",")
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func ExportXLSX(w io.Writer, items []Holiday) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for r, row := range exportRows(items) {
		for c, value := range row {
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(xlsxSheet, ref, value); err != nil {
				return fmt.Errorf("set cell %s: %w", ref, err)
			}
		}
	}
	if err := f.SetColWidth(xlsxSheet, "A", "B", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxSheet, "C", "C", 40); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func ExportPDF(w io.Writer, items []Holiday) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Holiday List")
	pdf.Ln(14)

	widths := []float64{35, 35, 110}
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range exportHeader {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for _, h := range items {
		for i, value := range []string{h.Date, h.Day, h.Name} {
			pdf.CellFormat(widths[i], 8, tr(value), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
