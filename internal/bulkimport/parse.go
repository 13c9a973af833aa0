package bulkimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyFile indicates the upload had no data rows.
var ErrEmptyFile = errors.New("bulkimport: file has no data rows")

// serialEpoch is the day-zero of spreadsheet serial dates. December 30 1899
// instead of December 31 absorbs the source format's phantom leap day of
// 1900, so serial numbers from real files land on the right calendar date.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	time.RFC3339,
}

// columnAliases maps normalized header names to row fields.
var columnAliases = map[string]func(*Row, string){
	"product id":         func(r *Row, v string) { r.ProductID = v },
	"productid":          func(r *Row, v string) { r.ProductID = v },
	"add quantity":       func(r *Row, v string) { r.Quantity = v },
	"quantity":           func(r *Row, v string) { r.Quantity = v },
	"cost per unit":      func(r *Row, v string) { r.CostPerUnit = v },
	"expiration date":    func(r *Row, v string) { r.ExpirationDate = v },
	"supplier name":      func(r *Row, v string) { r.SupplierName = v },
	"supplier contact":   func(r *Row, v string) { r.SupplierContact = v },
	"supplier email":     func(r *Row, v string) { r.SupplierEmail = v },
	"batch number":       func(r *Row, v string) { r.BatchNumber = v },
	"purchase order ref": func(r *Row, v string) { r.PurchaseOrderRef = v },
	"po ref":             func(r *Row, v string) { r.PurchaseOrderRef = v },
	"received date":      func(r *Row, v string) { r.ReceivedDate = v },
	"notes":              func(r *Row, v string) { r.Notes = v },
}

// ParseCSV reads the upload into rows. The first record is the header; column
// order is free and unknown columns are ignored. Line numbers count from the
// first data row as row 1, matching what operators see in their spreadsheet
// below the header.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("bulkimport: read header: %w", err)
	}

	setters := make([]func(*Row, string), len(header))
	for i, name := range header {
		setters[i] = columnAliases[normalizeHeader(name)]
	}

	var rows []Row
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bulkimport: read row: %w", err)
		}
		line++
		row := Row{Line: line}
		empty := true
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				empty = false
			}
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, cell)
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return rows, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Trim(name, "\ufeff")
	return strings.Join(strings.Fields(name), " ")
}

// parseInt accepts plain integers plus the decorations spreadsheets add:
// grouping commas and a trailing ".0" from numeric cells.
func parseInt(cell string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if v, err := strconv.ParseInt(cleaned, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	v := int64(f)
	if float64(v) != f {
		return 0, fmt.Errorf("not a whole number: %q", cell)
	}
	return v, nil
}

// parseFloat accepts plain decimals plus grouping commas and a currency
// prefix.
func parseFloat(cell string) (float64, error) {
	cleaned := strings.TrimSpace(cell)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimPrefix(cleaned, "₱")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	return v, nil
}

// parseDate normalizes a date cell: calendar layouts first, then spreadsheet
// serial numbers.
func parseDate(cell string, loc *time.Location) (time.Time, error) {
	cleaned := strings.TrimSpace(cell)
	if cleaned == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
		}
	}
	if serial, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return serialToDate(serial, loc), nil
	}
	return time.Time{}, fmt.Errorf("not a date: %q", cell)
}

func serialToDate(serial float64, loc *time.Location) time.Time {
	d := serialEpoch.AddDate(0, 0, int(serial))
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}
