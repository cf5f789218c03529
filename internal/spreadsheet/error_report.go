package spreadsheet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

// AnomalyColumn last column of the error report.
const AnomalyColumn = "ANOMALY"

const errorSheet = "Errors"

// RejectedRow one row of the error report: the original cells and the failed checks.
type RejectedRow struct {
	Values  []string
	Anomaly string
}

// ErrorReportPath <dir>/Error_integration<YYYY-MM-DD>.xlsx
func ErrorReportPath(dir string, day time.Time) string {
	return filepath.Join(dir, "Error_integration"+day.Format("2006-01-02")+".xlsx")
}

// WriteErrorReport writes the rejected rows under the original headers plus ANOMALY.
// An existing report of the same day is replaced.
func WriteErrorReport(path string, headers []string, rows []RejectedRow) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), errorSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FDE9E7"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	all := append(append([]string(nil), headers...), AnomalyColumn)
	if err := f.SetSheetRow(errorSheet, "A1", &all); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(all), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(errorSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(all))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(errorSheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	for i, r := range rows {
		cells := make([]any, len(all))
		for c := range headers {
			if c < len(r.Values) {
				cells[c] = r.Values[c]
			} else {
				cells[c] = ""
			}
		}
		cells[len(all)-1] = r.Anomaly

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(errorSheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(errorSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze panes: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
