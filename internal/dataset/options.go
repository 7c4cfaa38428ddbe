package dataset

import (
	"sort"
	"strings"

	"github.com/vinodismyname/sidpol/config"
)

// Options are the values a user can pick from when building a Selection.
type Options struct {
	Years       []int    `json:"years"`
	Modalities  []string `json:"modalities"`
	Departments []string `json:"departments"`
	Provinces   []string `json:"provinces,omitempty"`
}

// SelectionOptions collects sorted distinct years, modalities and departments.
// Provinces are listed only when department names a concrete department, so
// the province picker depends on the department picker.
func SelectionOptions(t *Table, department string) Options {
	opts := Options{Years: []int{}, Modalities: []string{}, Departments: []string{}}
	if t == nil {
		return opts
	}
	if t.Has(ColYear) {
		seen := map[int]struct{}{}
		for _, r := range t.Records {
			if _, ok := seen[r.Year]; !ok {
				seen[r.Year] = struct{}{}
				opts.Years = append(opts.Years, r.Year)
			}
		}
		sort.Ints(opts.Years)
	}
	opts.Modalities = distinct(t, ColModality, nil)
	opts.Departments = distinct(t, ColDepartment, nil)

	department = strings.TrimSpace(department)
	if department != "" && department != config.AllDepartmentsSentinel && t.Has(ColDepartment) {
		opts.Provinces = distinct(t, ColProvince, func(r Record) bool { return r.Department == department })
	}
	return opts
}

func distinct(t *Table, col Column, keep func(Record) bool) []string {
	out := []string{}
	if !t.Has(col) {
		return out
	}
	seen := map[string]struct{}{}
	for _, r := range t.Records {
		if keep != nil && !keep(r) {
			continue
		}
		v := r.Text(col)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
