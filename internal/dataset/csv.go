package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses a delimited text source into a raw table. UTF-8 input (with
// or without BOM) is used as is; anything that is not valid UTF-8 is decoded
// as Latin-1, which is how older portal exports were written. The delimiter
// is sniffed from the header line (comma or semicolon). Malformed rows are
// skipped.
func ReadCSV(r io.Reader) (*RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, derr := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if derr != nil {
			return nil, fmt.Errorf("dataset: decode latin-1: %w", derr)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNotTabular
		}
		return nil, fmt.Errorf("dataset: read csv header: %w", err)
	}

	raw := &RawTable{Header: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("dataset: read csv row: %w", err)
		}
		raw.Rows = append(raw.Rows, row)
	}
	return raw, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// WriteCSV renders a raw table as UTF-8 CSV.
func WriteCSV(w io.Writer, raw *RawTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(raw.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(raw.Rows); err != nil {
		return err
	}
	return cw.Error()
}
