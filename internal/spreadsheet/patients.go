// Package spreadsheet reads patient sheets and writes error reports with excelize.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/aradaody/defi-technique/internal/domain"
)

var (
	// ErrInvalidHeaders a header is not one of the accepted patient columns.
	ErrInvalidHeaders = errors.New("invalid column names")
	// ErrMissingHeaders a column needed by validation or matching is absent.
	ErrMissingHeaders = errors.New("missing required columns")
	// ErrNoSheet the workbook holds no worksheet.
	ErrNoSheet = errors.New("workbook has no sheet")
)

// PatientSheet parsed patient sheet. Rows are in sheet order, exact duplicates removed.
type PatientSheet struct {
	Headers    []string
	Rows       []domain.PatientRow
	Duplicates int // exact duplicate rows dropped
	Blank      int // fully empty rows between data rows; kept, validation rejects them
}

// ReadPatients opens the workbook at path and parses its first sheet.
func ReadPatients(path string) (*PatientSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return readPatients(f)
}

// ReadPatientsFrom parses the first sheet of a workbook read from r.
func ReadPatientsFrom(r io.Reader) (*PatientSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workbook: %w", err)
	}
	defer f.Close()
	return readPatients(f)
}

func readPatients(f *excelize.File) (*PatientSheet, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return ParsePatientRows(rows)
}

// ParsePatientRows checks the header row and maps every data row onto a domain.Patient.
// Missing trailing cells are empty strings. Blank rows between data rows are kept so that
// they reach the error report; blank rows at the end of the sheet are dropped.
func ParsePatientRows(rows [][]string) (*PatientSheet, error) {
	var headers []string
	if len(rows) > 0 {
		headers = rows[0]
	}
	if err := CheckHeaders(headers); err != nil {
		return nil, err
	}

	sheet := &PatientSheet{Headers: append([]string(nil), headers...)}
	seen := make(map[string]struct{}, len(rows))

	// empty rows after the last data row are sheet formatting, not data
	end := len(rows)
	for end > 1 && isBlankRow(rows[end-1]) {
		end--
	}

	for i := 1; i < end; i++ {
		row := rows[i]
		for c := len(headers); c < len(row); c++ {
			if strings.TrimSpace(row[c]) != "" {
				cell, _ := excelize.CoordinatesToCellName(c+1, i+1)
				return nil, fmt.Errorf("%w: value in unnamed column at %s", ErrInvalidHeaders, cell)
			}
		}

		values := make([]string, len(headers))
		for c := range headers {
			if c < len(row) {
				values[c] = row[c]
			}
		}

		key := strings.Join(values, "\x1f")
		if _, dup := seen[key]; dup {
			sheet.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		if isBlankRow(values) {
			sheet.Blank++
		}

		pr := domain.PatientRow{Line: i + 1, Values: values}
		for c, h := range headers {
			pr.Patient.Set(h, values[c])
		}
		sheet.Rows = append(sheet.Rows, pr)
	}

	return sheet, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// CheckHeaders every header must be an accepted patient column, at most once, and the
// required columns must all be present.
func CheckHeaders(headers []string) error {
	var bad []string
	present := make(map[string]bool, len(headers))
	for i, h := range headers {
		if !domain.IsPatientColumn(h) || present[h] {
			if h == "" {
				h = fmt.Sprintf("<empty #%d>", i+1)
			}
			bad = append(bad, h)
			continue
		}
		present[h] = true
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidHeaders, strings.Join(bad, ", "))
	}

	var missing []string
	for _, h := range domain.RequiredPatientColumns {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingHeaders, strings.Join(missing, ", "))
	}
	return nil
}
