// Package xlsx writes a day's grid as an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"boletim/internal/core"
	"boletim/internal/export"
	"boletim/internal/provider"
	"boletim/internal/table"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var _ provider.DayExporter = (*FileExporter)(nil)

// SheetName is the worksheet name for a date. Excel forbids '/' in names.
func SheetName(date core.Date) string {
	return "Boletim " + strings.ReplaceAll(date.String(), "/", "-")
}

// FileName is the download name for a date's workbook.
func FileName(date core.Date) string {
	return "boletim-" + date.ISO() + ".xlsx"
}

// Write renders record and footer as a single-sheet workbook to w.
func Write(w io.Writer, record *core.Record, footer table.Footer) error {
	f, err := Build(record, footer)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Build lays the grid out in a new workbook.
func Build(record *core.Record, footer table.Footer) (*excelize.File, error) {
	grid := export.BuildGrid(record, footer)
	sheet := SheetName(record.Date)

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	lastCol, _ := excelize.ColumnNumberToName(len(export.Columns))
	for i, row := range grid.Rows {
		r := i + 1
		for c, v := range row.Cells {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			var value any = v
			if c > 0 {
				value = cellValue(v)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("set %s: %w", cell, err)
			}
		}

		style, ok := styles[row.Kind]
		if !ok {
			continue
		}
		first := fmt.Sprintf("A%d", r)
		last := fmt.Sprintf("%s%d", lastCol, r)
		if row.Kind == export.RowTitle || row.Kind == export.RowGroup || row.Kind == export.RowNotice {
			if err := f.MergeCell(sheet, first, last); err != nil {
				f.Close()
				return nil, fmt.Errorf("merge %s: %w", first, err)
			}
		}
		if err := f.SetCellStyle(sheet, first, last, style); err != nil {
			f.Close()
			return nil, fmt.Errorf("style %s: %w", first, err)
		}
	}

	f.SetColWidth(sheet, "A", "A", 32)
	f.SetColWidth(sheet, "B", lastCol, 16)
	return f, nil
}

func newStyles(f *excelize.File) (map[export.RowKind]int, error) {
	defs := map[export.RowKind]*excelize.Style{
		export.RowTitle: {
			Font:      &excelize.Font{Bold: true, Size: 14},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		},
		export.RowGroup: {
			Font:      &excelize.Font{Bold: true, Size: 12, Color: "#FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#337B5B"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		},
		export.RowColumns: {
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
		},
		export.RowHeader: {
			Font: &excelize.Font{Bold: true, Italic: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		},
		export.RowFooter: {
			Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#337B5B"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		},
		export.RowNotice: {
			Font:      &excelize.Font{Italic: true},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		},
	}

	out := make(map[export.RowKind]int, len(defs))
	for kind, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return nil, fmt.Errorf("create style: %w", err)
		}
		out[kind] = id
	}
	return out, nil
}

// cellValue stores counts and goals as numbers so the sheet can sum them.
func cellValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

// FileExporter writes each exported day to Dir as an xlsx file.
type FileExporter struct {
	Dir string
}

func (e *FileExporter) ExportDay(ctx context.Context, record *core.Record, footer table.Footer) (string, error) {
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := filepath.Join(e.Dir, FileName(record.Date))
	tmp, err := os.CreateTemp(e.Dir, ".boletim-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, record, footer); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move export file: %w", err)
	}
	return path, nil
}
