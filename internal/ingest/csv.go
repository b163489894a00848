package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// ParseCSV parses a comma-separated upload with a header row.
// Row order is preserved and blank lines are skipped.
func ParseCSV(content []byte) ([]domain.InvoiceRow, error) {
	text, err := decodeText(content)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.ErrDecode{Reason: "no header row"}
	}
	if err != nil {
		return nil, &domain.ErrDecode{Reason: "malformed header", Err: eris.Wrap(err, "csv: read header")}
	}

	idx, err := indexHeader(header)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.InvoiceRow, 0)
	for n := 1; ; n++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ErrDecode{Reason: "malformed table", Err: eris.Wrapf(err, "csv: read row %d", n)}
		}

		row, err := buildRow(n, record, idx)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// decodeText validates the upload as UTF-8 and strips a leading byte-order mark.
// Content that starts with a UTF-16 BOM is transcoded to UTF-8.
func decodeText(content []byte) ([]byte, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &domain.ErrDecode{Reason: "upload is empty"}
	}

	utf16 := bytes.HasPrefix(content, bomUTF16BE) || bytes.HasPrefix(content, bomUTF16LE)
	if !utf16 && !utf8.Valid(content) {
		return nil, &domain.ErrDecode{Reason: "content is not valid UTF-8 text"}
	}

	text, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), content)
	if err != nil {
		return nil, &domain.ErrDecode{Reason: "content is not valid text", Err: err}
	}
	return text, nil
}
