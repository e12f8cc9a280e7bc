// Package export renders score and ranking results to the formats the
// CLI offers: fixed-width tables for terminals, CSV and XLSX for
// spreadsheet handoff.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is a rendered result set: a header row plus data rows, all
// stringified by the caller.
type Table struct {
	Header []string
	Rows   [][]string
}

// WriteCSV writes the table as RFC 4180 CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write CSV header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush CSV")
}

// WriteXLSX writes the table as a single-sheet workbook.
func (t *Table) WriteXLSX(w io.Writer, sheetName string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, cell := range t.Header {
		header.AddCell().SetString(cell)
	}
	for _, row := range t.Rows {
		r := sheet.AddRow()
		for _, cell := range row {
			r.AddCell().SetString(cell)
		}
	}

	return eris.Wrap(f.Write(w), "export: write workbook")
}

// WriteText writes the table as fixed-width columns sized to the widest
// cell in each column.
func (t *Table) WriteText(w io.Writer) error {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) error {
		var b strings.Builder
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		}
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	}

	if err := writeRow(t.Header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	total := 0
	for _, width := range widths {
		total += width + 2
	}
	if _, err := io.WriteString(w, strings.Repeat("-", total)+"\n"); err != nil {
		return eris.Wrap(err, "export: write separator")
	}
	for _, row := range t.Rows {
		if err := writeRow(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	return nil
}

// Write dispatches on format: "table", "csv" or "xlsx".
func (t *Table) Write(w io.Writer, format, sheetName string) error {
	switch format {
	case "table":
		return t.WriteText(w)
	case "csv":
		return t.WriteCSV(w)
	case "xlsx":
		return t.WriteXLSX(w, sheetName)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}
