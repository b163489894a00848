package ingest

import (
	"strings"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ParseXLSX reads the first sheet of a workbook with the same header and cell
// rules as ParseCSV. Fully empty rows are skipped.
func ParseXLSX(content []byte) ([]domain.InvoiceRow, error) {
	f, err := xlsx.OpenBinary(content)
	if err != nil {
		return nil, &domain.ErrDecode{Reason: "unreadable workbook", Err: eris.Wrap(err, "xlsx: open workbook")}
	}
	if len(f.Sheets) == 0 {
		return nil, &domain.ErrDecode{Reason: "workbook has no sheets"}
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if blank(cells) {
			continue
		}
		records = append(records, cells)
	}
	if len(records) == 0 {
		return nil, &domain.ErrDecode{Reason: "no header row"}
	}

	idx, err := indexHeader(records[0])
	if err != nil {
		return nil, err
	}

	rows := make([]domain.InvoiceRow, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := buildRow(i+1, record, idx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		if c != nil {
			cells[j] = c.String()
		}
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
