package insights

import (
	"math"
	"sort"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// KPIs are the headline figures of a (filtered) table.
type KPIs struct {
	Total         int64   `json:"total"`
	VarPct        float64 `json:"var_pct"`
	TopModality   string  `json:"top_modality"`
	TopDepartment string  `json:"top_department"`
}

// ComputeKPIs derives the headline figures. It never fails: missing columns
// and empty tables degrade to zero values and the "N/A" sentinel.
func ComputeKPIs(t *dataset.Table) KPIs {
	k := KPIs{
		Total:         t.Total(),
		VarPct:        periodVariation(t),
		TopModality:   config.NotAvailable,
		TopDepartment: config.NotAvailable,
	}
	if mods := ByModality(t); len(mods) > 0 {
		k.TopModality = mods[0].Modality
	}
	if deps := TopDepartments(t, 1); len(deps) > 0 {
		k.TopDepartment = deps[0].Department
	}
	return k
}

type period struct{ year, month int }

// periodVariation compares the two most recent (year, month) periods. A
// previous total of zero divides by one instead.
func periodVariation(t *dataset.Table) float64 {
	if !t.Has(dataset.ColYear, dataset.ColMonth, dataset.ColCount) {
		return 0
	}
	g := groupBy(t, func(r dataset.Record) (period, bool) { return period{r.Year, r.Month}, true })
	if len(g.order) < 2 {
		return 0
	}
	ps := append([]period(nil), g.order...)
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].year != ps[j].year {
			return ps[i].year < ps[j].year
		}
		return ps[i].month < ps[j].month
	})
	latest := float64(g.sums[ps[len(ps)-1]])
	prev := float64(g.sums[ps[len(ps)-2]])
	denom := prev
	if denom == 0 {
		denom = 1
	}
	return round2((latest - prev) / denom * 100)
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
