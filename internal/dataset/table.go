package dataset

import (
	"errors"
	"strconv"
)

// ErrNotTabular is returned when an input has no header at all.
var ErrNotTabular = errors.New("dataset: input is not tabular")

// RawTable is a source table with string cells, as read from CSV or XLSX.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of a header name, or -1.
func (r *RawTable) Index(name string) int {
	for i, h := range r.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Record is one cleaned row of the canonical schema. Empty text fields stand
// for null categories.
type Record struct {
	Year       int
	Month      int
	Department string
	Province   string
	District   string
	Modality   string
	Count      int64
	Extra      []string
}

// Table is the canonical, typed dataset. Columns lists the canonical columns
// that were present in the source; Extra names pass-through columns whose
// values travel in Record.Extra in the same order.
type Table struct {
	Columns []Column
	Extra   []string
	Records []Record
}

// Has reports whether a canonical column is present.
func (t *Table) Has(cols ...Column) bool {
	if t == nil {
		return false
	}
	for _, c := range cols {
		found := false
		for _, have := range t.Columns {
			if have == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Len returns the number of records; nil tables are empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// Empty reports whether the table has no records.
func (t *Table) Empty() bool { return t.Len() == 0 }

// WithRecords returns a table with the same schema and the given records.
func (t *Table) WithRecords(recs []Record) *Table {
	return &Table{Columns: t.Columns, Extra: t.Extra, Records: recs}
}

// Total sums the count column; 0 when count is absent.
func (t *Table) Total() int64 {
	if !t.Has(ColCount) {
		return 0
	}
	var sum int64
	for _, r := range t.Records {
		sum += r.Count
	}
	return sum
}

// Raw converts the table back to string cells under canonical header names,
// followed by the pass-through columns.
func (t *Table) Raw() *RawTable {
	header := make([]string, 0, len(t.Columns)+len(t.Extra))
	for _, c := range t.Columns {
		header = append(header, string(c))
	}
	header = append(header, t.Extra...)

	rows := make([][]string, 0, len(t.Records))
	for _, r := range t.Records {
		row := make([]string, 0, len(header))
		for _, c := range t.Columns {
			row = append(row, r.Value(c))
		}
		row = append(row, r.Extra...)
		rows = append(rows, row)
	}
	return &RawTable{Header: header, Rows: rows}
}

// Value renders a canonical field as text.
func (r Record) Value(c Column) string {
	switch c {
	case ColYear:
		return strconv.Itoa(r.Year)
	case ColMonth:
		return strconv.Itoa(r.Month)
	case ColDepartment:
		return r.Department
	case ColProvince:
		return r.Province
	case ColDistrict:
		return r.District
	case ColModality:
		return r.Modality
	case ColCount:
		return strconv.FormatInt(r.Count, 10)
	}
	return ""
}

// Text returns the category value of a text column.
func (r Record) Text(c Column) string {
	switch c {
	case ColDepartment:
		return r.Department
	case ColProvince:
		return r.Province
	case ColDistrict:
		return r.District
	case ColModality:
		return r.Modality
	}
	return ""
}
