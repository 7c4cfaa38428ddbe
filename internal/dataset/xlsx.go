package dataset

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first sheet of a workbook, treating its first non-empty
// row as the header.
func ReadXLSX(r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNotTabular
	}
	return readSheet(f, sheets[0])
}

func readSheet(f *excelize.File, sheet string) (*RawTable, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("dataset: rows of %q: %w", sheet, err)
	}
	defer rows.Close()

	var raw *RawTable
	for rows.Next() {
		vals, cerr := rows.Columns()
		if cerr != nil {
			return nil, cerr
		}
		if raw == nil {
			if len(trimTrailingEmpties(vals)) == 0 {
				continue
			}
			raw = &RawTable{Header: trimTrailingEmpties(vals)}
			continue
		}
		if len(trimTrailingEmpties(vals)) == 0 {
			continue
		}
		raw.Rows = append(raw.Rows, vals)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotTabular
	}
	return raw, nil
}

func trimTrailingEmpties(xs []string) []string {
	i := len(xs)
	for i > 0 && xs[i-1] == "" {
		i--
	}
	return xs[:i]
}
