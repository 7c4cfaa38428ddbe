package insights

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vinodismyname/sidpol/internal/dataset"
)

// GrowthAxis names the grouping a growth rate is computed along.
type GrowthAxis string

const (
	GrowthByYear     GrowthAxis = "year"
	GrowthByMonth    GrowthAxis = "month"
	GrowthByModality GrowthAxis = "modality"
)

// GrowthAxes lists the accepted axes (Spanish aliases excluded).
var GrowthAxes = []GrowthAxis{GrowthByYear, GrowthByMonth, GrowthByModality}

// ParseGrowthAxis accepts the English axis names and the Spanish aliases
// anio, año, mes and modalidad.
func ParseGrowthAxis(s string) (GrowthAxis, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "year", "anio", "año":
		return GrowthByYear, true
	case "month", "mes":
		return GrowthByMonth, true
	case "modality", "modalidad":
		return GrowthByModality, true
	}
	return "", false
}

// GrowthRow is one group along the growth axis. GrowthRate is the percentage
// change from the previous row; it is nil for the first row and when the
// previous count is zero.
type GrowthRow struct {
	Key        string   `json:"key"`
	Count      int64    `json:"count"`
	GrowthRate *float64 `json:"growth_rate"`
}

// GrowthRate sums counts along axis and computes row-to-row percentage change.
// Years and months are in ascending order, modalities in first-seen order.
// ok is false for an unknown axis, an empty table or a missing column.
func GrowthRate(t *dataset.Table, axis string) (rows []GrowthRow, ok bool) {
	a, ok := ParseGrowthAxis(axis)
	if !ok || t.Empty() {
		return nil, false
	}

	switch a {
	case GrowthByYear, GrowthByMonth:
		col := dataset.ColYear
		if a == GrowthByMonth {
			col = dataset.ColMonth
		}
		if !t.Has(col, dataset.ColCount) {
			return nil, false
		}
		g := groupBy(t, func(r dataset.Record) (int, bool) {
			if col == dataset.ColMonth {
				return r.Month, true
			}
			return r.Year, true
		})
		keys := append([]int(nil), g.order...)
		sort.Ints(keys)
		for _, k := range keys {
			rows = append(rows, GrowthRow{Key: strconv.Itoa(k), Count: g.sums[k]})
		}
	case GrowthByModality:
		if !t.Has(dataset.ColModality, dataset.ColCount) {
			return nil, false
		}
		g := groupBy(t, textKey(dataset.ColModality))
		keys := append([]string(nil), g.order...)
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, GrowthRow{Key: k, Count: g.sums[k]})
		}
	}
	if len(rows) == 0 {
		return nil, false
	}

	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Count
		if prev == 0 {
			continue
		}
		rate := round2(float64(rows[i].Count-prev) / float64(prev) * 100)
		rows[i].GrowthRate = &rate
	}
	return rows, true
}
