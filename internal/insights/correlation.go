package insights

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/vinodismyname/sidpol/internal/dataset"
)

// CorrelationMatrix holds the Pearson correlation between the modality
// profiles of every pair of departments. Pivot rows follow Labels and its
// columns follow Modalities; Values is square over Labels.
type CorrelationMatrix struct {
	Labels     []string
	Modalities []string
	Pivot      *mat.Dense
	Values     [][]float64
}

// At returns the correlation between departments i and j.
func (c CorrelationMatrix) At(i, j int) float64 { return c.Values[i][j] }

// MarshalJSON reports undefined correlations (NaN) as null.
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(c.Values))
	for i, row := range c.Values {
		values[i] = make([]*float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			r := round3(v)
			values[i][j] = &r
		}
	}
	return json.Marshal(struct {
		Labels     []string     `json:"labels"`
		Modalities []string     `json:"modalities"`
		Values     [][]*float64 `json:"values"`
	}{c.Labels, c.Modalities, values})
}

// DepartmentCorrelation pivots t into departments x modalities (missing
// combinations are zero) and correlates the department rows. A department is
// always perfectly correlated with itself; pairs involving a constant profile
// are NaN. ok is false when department or modality is missing or t is empty.
func DepartmentCorrelation(t *dataset.Table) (CorrelationMatrix, bool) {
	var out CorrelationMatrix
	if t.Empty() || !t.Has(dataset.ColDepartment, dataset.ColModality, dataset.ColCount) {
		return out, false
	}

	depIdx := map[string]int{}
	modIdx := map[string]int{}
	for _, r := range t.Records {
		if r.Department == "" || r.Modality == "" {
			continue
		}
		depIdx[r.Department] = 0
		modIdx[r.Modality] = 0
	}
	if len(depIdx) == 0 {
		return out, false
	}
	out.Labels = sortedKeys(depIdx)
	out.Modalities = sortedKeys(modIdx)

	pivot := mat.NewDense(len(out.Labels), len(out.Modalities), nil)
	for _, r := range t.Records {
		if r.Department == "" || r.Modality == "" {
			continue
		}
		i, j := depIdx[r.Department], modIdx[r.Modality]
		pivot.Set(i, j, pivot.At(i, j)+float64(r.Count))
	}
	out.Pivot = pivot

	n := len(out.Labels)
	out.Values = make([][]float64, n)
	for i := range out.Values {
		out.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		out.Values[i][i] = 1
		for j := i + 1; j < n; j++ {
			v := stat.Correlation(pivot.RawRowView(i), pivot.RawRowView(j), nil)
			out.Values[i][j] = v
			out.Values[j][i] = v
		}
	}
	return out, true
}

// sortedKeys sorts the keys of m and stores each key's position back into m.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		m[k] = i
	}
	return keys
}
