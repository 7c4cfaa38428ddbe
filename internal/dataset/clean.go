package dataset

import (
	"math"
	"strconv"
	"strings"
)

// Clean casts a normalized raw table to the canonical typed schema.
//
// year and month are parsed as integers; cells that fail to parse mark the row
// invalid and it is dropped. count cells that fail to parse become 0 and
// negative counts are clamped to 0. Rows with a month outside [1,12] are
// removed. Text columns are trimmed. Only canonical columns that exist in the
// header are populated; everything else passes through in Record.Extra.
//
// The only error is ErrNotTabular for a nil or header-less input; bad cells
// never abort the batch.
func Clean(raw *RawTable) (*Table, error) {
	if raw == nil || len(raw.Header) == 0 {
		return nil, ErrNotTabular
	}

	canonIdx := make(map[Column]int, len(CanonicalColumns))
	for i, h := range raw.Header {
		col := Column(h)
		if !isCanonical(col) {
			continue
		}
		if _, dup := canonIdx[col]; !dup {
			canonIdx[col] = i
		}
	}

	t := &Table{}
	for _, c := range CanonicalColumns {
		if _, ok := canonIdx[c]; ok {
			t.Columns = append(t.Columns, c)
		}
	}
	var extraIdx []int
	for i, h := range raw.Header {
		if idx, ok := canonIdx[Column(h)]; ok && idx == i {
			continue
		}
		extraIdx = append(extraIdx, i)
		t.Extra = append(t.Extra, h)
	}

	cell := func(row []string, col Column) (string, bool) {
		i, ok := canonIdx[col]
		if !ok {
			return "", false
		}
		if i >= len(row) {
			return "", true
		}
		return row[i], true
	}

	t.Records = make([]Record, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		var rec Record

		if s, present := cell(row, ColYear); present {
			v, ok := parseInt(s)
			if !ok {
				continue
			}
			rec.Year = int(v)
		}
		if s, present := cell(row, ColMonth); present {
			v, ok := parseInt(s)
			if !ok || v < 1 || v > 12 {
				continue
			}
			rec.Month = int(v)
		}
		if s, present := cell(row, ColCount); present {
			v, ok := parseCount(s)
			if !ok || v < 0 {
				v = 0
			}
			rec.Count = v
		}
		for _, c := range []Column{ColDepartment, ColProvince, ColDistrict, ColModality} {
			s, present := cell(row, c)
			if !present {
				continue
			}
			rec.setText(c, strings.TrimSpace(s))
		}
		if len(extraIdx) > 0 {
			rec.Extra = make([]string, len(extraIdx))
			for j, i := range extraIdx {
				if i < len(row) {
					rec.Extra[j] = row[i]
				}
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

// Load normalizes and cleans a raw table in one step.
func Load(raw *RawTable) (*Table, error) {
	return Clean(Normalize(raw))
}

func isCanonical(c Column) bool {
	for _, have := range CanonicalColumns {
		if have == c {
			return true
		}
	}
	return false
}

func (r *Record) setText(c Column, v string) {
	switch c {
	case ColDepartment:
		r.Department = v
	case ColProvince:
		r.Province = v
	case ColDistrict:
		r.District = v
	case ColModality:
		r.Modality = v
	}
}

// parseNumber strips common formatting and parses a float.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '_':
			return -1
		default:
			return r
		}
	}, s)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseInt accepts integers and integral float spellings such as "2018.0".
func parseInt(s string) (int64, bool) {
	if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return v, true
	}
	f, ok := parseNumber(s)
	if !ok || f != math.Trunc(f) || !fitsInt64(f) {
		return 0, false
	}
	return int64(f), true
}

// parseCount truncates fractional counts toward zero.
func parseCount(s string) (int64, bool) {
	if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return v, true
	}
	f, ok := parseNumber(s)
	if !ok || !fitsInt64(f) {
		return 0, false
	}
	return int64(math.Trunc(f)), true
}

// fitsInt64 reports whether f converts to int64 without overflow. 2^63 is
// itself out of range, hence the strict bound.
func fitsInt64(f float64) bool {
	return f >= math.MinInt64 && f < math.MaxInt64
}
