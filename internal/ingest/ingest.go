// Package ingest turns uploaded invoice tables into typed rows.
// Header checks and cell conversion are shared by the CSV and workbook readers.
// Business ranges (negative amounts, future due dates) are not validated here;
// only values the number types cannot hold are rejected.
package ingest

import (
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Parse reads an upload, choosing the reader from the file extension.
// Only ".xlsx" selects the workbook reader; everything else is treated as CSV.
func Parse(filename string, content []byte) ([]domain.InvoiceRow, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ParseXLSX(content)
	}
	return ParseCSV(content)
}

// indexHeader maps required column names to their position in the header row.
// Surrounding whitespace in header names is ignored; the first duplicate wins.
func indexHeader(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range domain.RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.ErrSchema{
			Required: slices.Clone(domain.RequiredColumns),
			Missing:  missing,
		}
	}
	return idx, nil
}

// buildRow converts one data record. n is the 1-based data row number.
func buildRow(n int, record []string, idx map[string]int) (domain.InvoiceRow, error) {
	rawAmount := cell(record, idx[domain.ColumnAmount])
	amount, err := decimal.NewFromString(strings.TrimSpace(rawAmount))
	if err != nil {
		return domain.InvoiceRow{}, &domain.ErrParse{
			Row:    n,
			Column: domain.ColumnAmount,
			Value:  rawAmount,
			Err:    eris.Wrap(err, "parse decimal"),
		}
	}
	if math.IsInf(amount.InexactFloat64(), 0) {
		return domain.InvoiceRow{}, &domain.ErrParse{
			Row:    n,
			Column: domain.ColumnAmount,
			Value:  rawAmount,
			Err:    eris.New("amount is outside the representable range"),
		}
	}

	rawDays := cell(record, idx[domain.ColumnDaysPastDue])
	days, err := parseDays(rawDays)
	if err != nil {
		return domain.InvoiceRow{}, &domain.ErrParse{
			Row:    n,
			Column: domain.ColumnDaysPastDue,
			Value:  rawDays,
			Err:    err,
		}
	}

	return domain.InvoiceRow{
		Customer:    cell(record, idx[domain.ColumnCustomer]),
		Amount:      amount,
		DaysOverdue: days,
		Segment:     cell(record, idx[domain.ColumnSegment]),
	}, nil
}

// parseDays accepts plain integers and integral decimals ("45", "45.0").
func parseDays(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, eris.Wrap(err, "parse integer")
	}
	if !d.IsInteger() {
		return 0, eris.Errorf("parse integer: %s has a fractional part", s)
	}
	b := d.BigInt()
	if !b.IsInt64() || b.Int64() > math.MaxInt || b.Int64() < math.MinInt {
		return 0, eris.Errorf("parse integer: %s is out of range", s)
	}
	return int(b.Int64()), nil
}

func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
