package insights

import (
	"sort"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// ModalityCount is the summed count of one crime modality.
type ModalityCount struct {
	Modality string `json:"modality"`
	Count    int64  `json:"count"`
}

// MonthCount is the summed count of one calendar month.
type MonthCount struct {
	Month int   `json:"month"`
	Count int64 `json:"count"`
}

// DepartmentCount is the summed count of one department.
type DepartmentCount struct {
	Department string `json:"department"`
	Count      int64  `json:"count"`
}

// ProvinceCount is the summed count of one province.
type ProvinceCount struct {
	Province string `json:"province"`
	Count    int64  `json:"count"`
}

// ModalityMonthCount is one heatmap cell.
type ModalityMonthCount struct {
	Modality string `json:"modality"`
	Month    int    `json:"month"`
	Count    int64  `json:"count"`
}

// DepartmentModalityCount is the summed count of a modality within a department.
type DepartmentModalityCount struct {
	Department string `json:"department"`
	Modality   string `json:"modality"`
	Count      int64  `json:"count"`
}

// groups accumulates sums per key while remembering first-seen order, so
// stable sorts over the result break ties by appearance in the table.
type groups[K comparable] struct {
	order []K
	sums  map[K]int64
}

func groupBy[K comparable](t *dataset.Table, key func(dataset.Record) (K, bool)) groups[K] {
	g := groups[K]{sums: make(map[K]int64)}
	for _, r := range t.Records {
		k, ok := key(r)
		if !ok {
			continue
		}
		if _, seen := g.sums[k]; !seen {
			g.order = append(g.order, k)
		}
		g.sums[k] += r.Count
	}
	return g
}

// textKey groups by a text column, skipping null categories.
func textKey(col dataset.Column) func(dataset.Record) (string, bool) {
	return func(r dataset.Record) (string, bool) {
		v := r.Text(col)
		return v, v != ""
	}
}

func countsBy(t *dataset.Table, col dataset.Column) ([]string, []int64) {
	if !t.Has(col, dataset.ColCount) || t.Empty() {
		return nil, nil
	}
	g := groupBy(t, textKey(col))
	keys := append([]string(nil), g.order...)
	sort.SliceStable(keys, func(i, j int) bool { return g.sums[keys[i]] > g.sums[keys[j]] })
	sums := make([]int64, len(keys))
	for i, k := range keys {
		sums[i] = g.sums[k]
	}
	return keys, sums
}

// ByModality sums counts per modality, largest first.
func ByModality(t *dataset.Table) []ModalityCount {
	keys, sums := countsBy(t, dataset.ColModality)
	out := make([]ModalityCount, len(keys))
	for i := range keys {
		out[i] = ModalityCount{Modality: keys[i], Count: sums[i]}
	}
	return out
}

// ByMonth sums counts per month in calendar order.
func ByMonth(t *dataset.Table) []MonthCount {
	out := []MonthCount{}
	if !t.Has(dataset.ColMonth, dataset.ColCount) {
		return out
	}
	g := groupBy(t, func(r dataset.Record) (int, bool) { return r.Month, true })
	for _, m := range g.order {
		out = append(out, MonthCount{Month: m, Count: g.sums[m]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// TopDepartments returns the n departments with the largest counts. n <= 0
// selects the default of 10.
func TopDepartments(t *dataset.Table, n int) []DepartmentCount {
	if n <= 0 {
		n = config.DefaultTopDepartments
	}
	keys, sums := countsBy(t, dataset.ColDepartment)
	if len(keys) > n {
		keys = keys[:n]
	}
	out := make([]DepartmentCount, len(keys))
	for i := range keys {
		out[i] = DepartmentCount{Department: keys[i], Count: sums[i]}
	}
	return out
}

// ByProvince sums counts per province, largest first.
func ByProvince(t *dataset.Table) []ProvinceCount {
	keys, sums := countsBy(t, dataset.ColProvince)
	out := make([]ProvinceCount, len(keys))
	for i := range keys {
		out[i] = ProvinceCount{Province: keys[i], Count: sums[i]}
	}
	return out
}

// ModalityByMonth is the heatmap base: counts per (modality, month), ordered
// by modality then month.
func ModalityByMonth(t *dataset.Table) []ModalityMonthCount {
	out := []ModalityMonthCount{}
	if !t.Has(dataset.ColModality, dataset.ColMonth, dataset.ColCount) {
		return out
	}
	type key struct {
		modality string
		month    int
	}
	g := groupBy(t, func(r dataset.Record) (key, bool) {
		return key{r.Modality, r.Month}, r.Modality != ""
	})
	for _, k := range g.order {
		out = append(out, ModalityMonthCount{Modality: k.modality, Month: k.month, Count: g.sums[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Modality != out[j].Modality {
			return out[i].Modality < out[j].Modality
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// TopModalitiesByDepartment keeps, for every department, the n modalities
// with the largest counts (default 5). Departments are listed alphabetically;
// within a department rows are in descending count order with ties kept in
// first-seen order.
func TopModalitiesByDepartment(t *dataset.Table, n int) []DepartmentModalityCount {
	out := []DepartmentModalityCount{}
	if n <= 0 {
		n = config.DefaultTopModalitiesPerDept
	}
	if !t.Has(dataset.ColDepartment, dataset.ColModality, dataset.ColCount) {
		return out
	}
	type key struct {
		department string
		modality   string
	}
	g := groupBy(t, func(r dataset.Record) (key, bool) {
		return key{r.Department, r.Modality}, r.Department != "" && r.Modality != ""
	})

	perDept := map[string][]key{}
	var depts []string
	for _, k := range g.order {
		if _, ok := perDept[k.department]; !ok {
			depts = append(depts, k.department)
		}
		perDept[k.department] = append(perDept[k.department], k)
	}
	sort.Strings(depts)

	for _, d := range depts {
		keys := perDept[d]
		sort.SliceStable(keys, func(i, j int) bool { return g.sums[keys[i]] > g.sums[keys[j]] })
		if len(keys) > n {
			keys = keys[:n]
		}
		for _, k := range keys {
			out = append(out, DepartmentModalityCount{Department: d, Modality: k.modality, Count: g.sums[k]})
		}
	}
	return out
}
