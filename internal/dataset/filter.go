package dataset

import (
	"sort"
	"strings"

	"github.com/vinodismyname/sidpol/config"
)

// MonthRange is an inclusive month interval.
type MonthRange struct {
	From int `json:"from" validate:"month"`
	To   int `json:"to" validate:"month,gtefield=From"`
}

// Selection is the set of optional predicates a dashboard user can apply.
// Zero values impose no constraint; Department "Todos", Province "Todas" and
// District "Todos" are the explicit "no filter" sentinels used by the UI.
type Selection struct {
	Year       *int        `json:"year,omitempty" validate:"omitempty,min=0"`
	Modalities []string    `json:"modalities,omitempty"`
	Department string      `json:"department,omitempty"`
	Province   string      `json:"province,omitempty"`
	District   string      `json:"district,omitempty"`
	Months     *MonthRange `json:"months,omitempty" validate:"omitempty"`
}

// IsEmpty reports whether the selection imposes no constraint.
func (s Selection) IsEmpty() bool {
	return s.Year == nil && len(s.Modalities) == 0 && !active(s.Department, config.AllDepartmentsSentinel) &&
		!active(s.Province, config.AllProvincesSentinel) && !active(s.District, config.AllDepartmentsSentinel) && s.Months == nil
}

func active(v, sentinel string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != sentinel
}

// Filter returns the rows of t that satisfy every specified predicate of sel.
// A predicate whose column is absent from t is ignored. The input table is
// never modified; the result owns a fresh record slice.
func Filter(t *Table, sel Selection) *Table {
	if t == nil {
		return &Table{}
	}

	type predicate func(Record) bool
	var preds []predicate

	if sel.Year != nil && t.Has(ColYear) {
		year := *sel.Year
		preds = append(preds, func(r Record) bool { return r.Year == year })
	}
	if len(sel.Modalities) > 0 && t.Has(ColModality) {
		set := make(map[string]struct{}, len(sel.Modalities))
		for _, m := range sel.Modalities {
			set[strings.TrimSpace(m)] = struct{}{}
		}
		preds = append(preds, func(r Record) bool {
			_, ok := set[r.Modality]
			return ok
		})
	}
	if active(sel.Department, config.AllDepartmentsSentinel) && t.Has(ColDepartment) {
		dept := strings.TrimSpace(sel.Department)
		preds = append(preds, func(r Record) bool { return r.Department == dept })
	}
	if active(sel.Province, config.AllProvincesSentinel) && t.Has(ColProvince) {
		prov := strings.TrimSpace(sel.Province)
		preds = append(preds, func(r Record) bool { return r.Province == prov })
	}
	if active(sel.District, config.AllDepartmentsSentinel) && t.Has(ColDistrict) {
		dist := strings.TrimSpace(sel.District)
		preds = append(preds, func(r Record) bool { return r.District == dist })
	}
	if sel.Months != nil && t.Has(ColMonth) {
		lo, hi := sel.Months.From, sel.Months.To
		preds = append(preds, func(r Record) bool { return r.Month >= lo && r.Month <= hi })
	}

	out := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		keep := true
		for _, p := range preds {
			if !p(r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, r)
		}
	}
	return t.WithRecords(out)
}

// SortedView returns a copy of t ordered by month ascending, then count
// descending. Equal rows keep their original order. t is not modified.
func SortedView(t *Table) *Table {
	if t == nil {
		return nil
	}
	recs := append([]Record(nil), t.Records...)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Month != recs[j].Month {
			return recs[i].Month < recs[j].Month
		}
		return recs[i].Count > recs[j].Count
	})
	return t.WithRecords(recs)
}
