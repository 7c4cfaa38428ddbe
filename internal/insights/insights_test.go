package insights

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sidpol/internal/dataset"
)

func load(t *testing.T, header []string, rows ...[]string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.Load(&dataset.RawTable{Header: header, Rows: rows})
	require.NoError(t, err)
	return tbl
}

var fullHeader = []string{"ANIO", "MES", "DPTO_HECHO_NEW", "PROV_HECHO", "DIST_HECHO", "P_MODALIDADES", "cantidad"}

func sample(t *testing.T) *dataset.Table {
	return load(t, fullHeader,
		[]string{"2020", "1", "LIMA", "LIMA", "SURCO", "Robo", "10"},
		[]string{"2020", "1", "LIMA", "LIMA", "SURCO", "Hurto", "4"},
		[]string{"2020", "2", "CUSCO", "CUSCO", "WANCHAQ", "Robo", "6"},
		[]string{"2020", "2", "CUSCO", "CUSCO", "WANCHAQ", "Hurto", "6"},
		[]string{"2021", "1", "PIURA", "PIURA", "CASTILLA", "Estafa", "3"},
		[]string{"2021", "3", "LIMA", "HUAURA", "HUACHO", "Estafa", "1"},
		[]string{"2021", "3", "", "", "", "", "2"},
	)
}

func TestByModality_ConservesTotal(t *testing.T) {
	tbl := load(t, fullHeader,
		[]string{"2020", "1", "LIMA", "LIMA", "SURCO", "Robo", "10"},
		[]string{"2020", "2", "LIMA", "LIMA", "SURCO", "Hurto", "4"},
		[]string{"2020", "3", "LIMA", "LIMA", "SURCO", "Robo", "-3"},
	)
	rows := ByModality(tbl)
	var sum int64
	for _, r := range rows {
		sum += r.Count
	}
	require.Equal(t, tbl.Total(), sum)
	require.Equal(t, []ModalityCount{{"Robo", 10}, {"Hurto", 4}}, rows)
}

func TestByModality_SkipsNullAndStableTies(t *testing.T) {
	rows := ByModality(sample(t))
	require.Equal(t, []ModalityCount{{"Robo", 16}, {"Hurto", 10}, {"Estafa", 4}}, rows)

	tied := load(t, []string{"MODALIDADES", "cantidad"}, []string{"B", "1"}, []string{"A", "1"}, []string{"C", "2"})
	require.Equal(t, []ModalityCount{{"C", 2}, {"B", 1}, {"A", 1}}, ByModality(tied))
}

func TestAggregations_EmptyAndMissingColumns(t *testing.T) {
	empty := load(t, fullHeader)
	partial := load(t, []string{"cantidad"}, []string{"5"})

	for _, tbl := range []*dataset.Table{empty, partial, nil} {
		require.NotNil(t, ByModality(tbl))
		require.Empty(t, ByModality(tbl))
		require.Empty(t, ByMonth(tbl))
		require.NotNil(t, ByMonth(tbl))
		require.Empty(t, TopDepartments(tbl, 0))
		require.Empty(t, ByProvince(tbl))
		require.Empty(t, ModalityByMonth(tbl))
		require.NotNil(t, TopModalitiesByDepartment(tbl, 0))
		require.Empty(t, TopModalitiesByDepartment(tbl, 0))
	}
}

func TestByMonth_Ascending(t *testing.T) {
	require.Equal(t, []MonthCount{{1, 17}, {2, 12}, {3, 3}}, ByMonth(sample(t)))
}

func TestTopDepartments(t *testing.T) {
	tbl := sample(t)
	require.Equal(t, []DepartmentCount{{"LIMA", 15}, {"CUSCO", 12}, {"PIURA", 3}}, TopDepartments(tbl, 0))
	require.Equal(t, []DepartmentCount{{"LIMA", 15}}, TopDepartments(tbl, 1))

	var rows [][]string
	for _, d := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		rows = append(rows, []string{d, "1"})
	}
	many := load(t, []string{"DEPARTAMENTO", "cantidad"}, rows...)
	top := TopDepartments(many, 0)
	require.Len(t, top, 10)
	require.Equal(t, "A", top[0].Department)
	require.Equal(t, "J", top[9].Department)
}

func TestByProvince(t *testing.T) {
	require.Equal(t, []ProvinceCount{{"LIMA", 14}, {"CUSCO", 12}, {"PIURA", 3}, {"HUAURA", 1}}, ByProvince(sample(t)))
}

func TestModalityByMonth(t *testing.T) {
	require.Equal(t, []ModalityMonthCount{
		{"Estafa", 1, 3}, {"Estafa", 3, 1},
		{"Hurto", 1, 4}, {"Hurto", 2, 6},
		{"Robo", 1, 10}, {"Robo", 2, 6},
	}, ModalityByMonth(sample(t)))
}

func TestTopModalitiesByDepartment(t *testing.T) {
	tbl := load(t, []string{"DEPARTAMENTO", "MODALIDADES", "cantidad"},
		[]string{"LIMA", "Robo", "5"},
		[]string{"LIMA", "Hurto", "9"},
		[]string{"LIMA", "Estafa", "5"},
		[]string{"LIMA", "Robo", "1"},
		[]string{"CUSCO", "Robo", "2"},
	)
	require.Equal(t, []DepartmentModalityCount{
		{"CUSCO", "Robo", 2},
		{"LIMA", "Hurto", 9},
		{"LIMA", "Robo", 6},
		{"LIMA", "Estafa", 5},
	}, TopModalitiesByDepartment(tbl, 0))

	require.Equal(t, []DepartmentModalityCount{
		{"CUSCO", "Robo", 2},
		{"LIMA", "Hurto", 9},
	}, TopModalitiesByDepartment(tbl, 1))

	// Equal sums keep first-seen order.
	tied := load(t, []string{"DEPARTAMENTO", "MODALIDADES", "cantidad"},
		[]string{"LIMA", "Robo", "3"},
		[]string{"LIMA", "Hurto", "3"},
		[]string{"LIMA", "Estafa", "3"},
	)
	require.Equal(t, []DepartmentModalityCount{{"LIMA", "Robo", 3}, {"LIMA", "Hurto", 3}}, TopModalitiesByDepartment(tied, 2))
}

func TestComputeKPIs(t *testing.T) {
	k := ComputeKPIs(sample(t))
	require.Equal(t, int64(32), k.Total)
	// Latest period 2021-03 (3) against 2021-01 (3).
	require.Equal(t, 0.0, k.VarPct)
	require.Equal(t, "Robo", k.TopModality)
	require.Equal(t, "LIMA", k.TopDepartment)

	tbl := load(t, fullHeader,
		[]string{"2020", "11", "LIMA", "LIMA", "SURCO", "Robo", "40"},
		[]string{"2020", "12", "LIMA", "LIMA", "SURCO", "Robo", "30"},
	)
	require.Equal(t, -25.0, ComputeKPIs(tbl).VarPct)

	zeroPrev := load(t, fullHeader,
		[]string{"2020", "11", "LIMA", "LIMA", "SURCO", "Robo", "0"},
		[]string{"2020", "12", "LIMA", "LIMA", "SURCO", "Robo", "7"},
	)
	require.Equal(t, 700.0, ComputeKPIs(zeroPrev).VarPct)
}

func TestComputeKPIs_Empty(t *testing.T) {
	for _, tbl := range []*dataset.Table{load(t, fullHeader), load(t, []string{"cantidad"}, []string{"4"}), nil} {
		k := ComputeKPIs(tbl)
		require.Equal(t, 0.0, k.VarPct)
		require.Equal(t, "N/A", k.TopModality)
		require.Equal(t, "N/A", k.TopDepartment)
	}
	require.Equal(t, int64(0), ComputeKPIs(load(t, fullHeader)).Total)
}

func TestPredictTrend_ExactFitThroughTwoPoints(t *testing.T) {
	tbl := load(t, []string{"MES", "cantidad"}, []string{"1", "100"}, []string{"2", "200"})
	rows, ok := PredictTrend(tbl, 1)
	require.True(t, ok)
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].Month)
	require.True(t, rows[0].IsPrediction)
	require.InDelta(t, 300.0, rows[0].PredictedCount, 1e-9)
}

func TestPredictTrend_HorizonAndUnclamped(t *testing.T) {
	tbl := load(t, []string{"MES", "cantidad"}, []string{"1", "50"}, []string{"2", "30"}, []string{"3", "10"})
	rows, ok := PredictTrend(tbl, 0)
	require.True(t, ok)
	require.Len(t, rows, 3)
	require.Equal(t, []int{4, 5, 6}, []int{rows[0].Month, rows[1].Month, rows[2].Month})
	require.InDelta(t, -10.0, rows[0].PredictedCount, 1e-9)
	require.InDelta(t, -50.0, rows[2].PredictedCount, 1e-9)
}

func TestPredictTrend_InsufficientData(t *testing.T) {
	_, ok := PredictTrend(load(t, []string{"MES", "cantidad"}), 3)
	require.False(t, ok)
	_, ok = PredictTrend(load(t, []string{"MES", "cantidad"}, []string{"4", "1"}, []string{"4", "9"}), 3)
	require.False(t, ok)
	_, ok = PredictTrend(load(t, []string{"cantidad"}, []string{"1"}), 3)
	require.False(t, ok)
}

func TestTrendSeries(t *testing.T) {
	tbl := load(t, []string{"MES", "cantidad"}, []string{"1", "100"}, []string{"2", "200"})
	series, ok := TrendSeries(tbl, 2)
	require.True(t, ok)
	require.Len(t, series, 4)
	require.False(t, series[1].IsPrediction)
	require.True(t, series[2].IsPrediction)
	require.Equal(t, 4, series[3].Month)

	series, ok = TrendSeries(load(t, []string{"MES", "cantidad"}, []string{"1", "1"}), -1)
	require.False(t, ok)
	require.Len(t, series, 1)
}

func TestGrowthRate_Years(t *testing.T) {
	tbl := load(t, []string{"ANIO", "cantidad"},
		[]string{"2022", "120"},
		[]string{"2020", "100"},
		[]string{"2021", "150"},
	)
	rows, ok := GrowthRate(tbl, "anio")
	require.True(t, ok)
	require.Len(t, rows, 3)
	require.Equal(t, "2020", rows[0].Key)
	require.Nil(t, rows[0].GrowthRate)
	require.Equal(t, 50.0, *rows[1].GrowthRate)
	require.Equal(t, -20.0, *rows[2].GrowthRate)
}

func TestGrowthRate_ModalityAndZeroPredecessor(t *testing.T) {
	tbl := load(t, []string{"MODALIDADES", "cantidad"},
		[]string{"Robo", "10"},
		[]string{"Hurto", "0"},
		[]string{"Estafa", "5"},
		[]string{"Hurto", "0"},
	)
	rows, ok := GrowthRate(tbl, "modalidad")
	require.True(t, ok)
	require.Equal(t, []string{"Estafa", "Hurto", "Robo"}, []string{rows[0].Key, rows[1].Key, rows[2].Key})
	require.Nil(t, rows[0].GrowthRate)
	require.Equal(t, -100.0, *rows[1].GrowthRate)
	require.Nil(t, rows[2].GrowthRate, "zero predecessor has no rate")
}

func TestGrowthRate_NoResult(t *testing.T) {
	tbl := sample(t)
	_, ok := GrowthRate(tbl, "weekday")
	require.False(t, ok)
	_, ok = GrowthRate(load(t, fullHeader), "year")
	require.False(t, ok)
	_, ok = GrowthRate(load(t, []string{"MODALIDADES", "cantidad"}, []string{"Robo", "1"}), "month")
	require.False(t, ok)

	rows, ok := GrowthRate(tbl, "mes")
	require.True(t, ok)
	require.Equal(t, "1", rows[0].Key)
}

func TestDepartmentCorrelation(t *testing.T) {
	tbl := load(t, []string{"DEPARTAMENTO", "MODALIDADES", "cantidad"},
		[]string{"LIMA", "Robo", "10"},
		[]string{"LIMA", "Hurto", "20"},
		[]string{"LIMA", "Estafa", "30"},
		[]string{"CUSCO", "Robo", "1"},
		[]string{"CUSCO", "Hurto", "2"},
		[]string{"CUSCO", "Estafa", "3"},
		[]string{"PIURA", "Robo", "3"},
		[]string{"PIURA", "Hurto", "2"},
		[]string{"PIURA", "Estafa", "1"},
		[]string{"TACNA", "Robo", "4"},
	)
	m, ok := DepartmentCorrelation(tbl)
	require.True(t, ok)
	require.Equal(t, []string{"CUSCO", "LIMA", "PIURA", "TACNA"}, m.Labels)
	require.Equal(t, []string{"Estafa", "Hurto", "Robo"}, m.Modalities)
	require.Equal(t, 0.0, m.Pivot.At(3, 0))

	for i := range m.Labels {
		require.Equal(t, 1.0, m.At(i, i))
		for j := range m.Labels {
			a, b := m.At(i, j), m.At(j, i)
			if math.IsNaN(a) {
				require.True(t, math.IsNaN(b))
				continue
			}
			require.Equal(t, a, b)
		}
	}
	require.InDelta(t, 1.0, m.At(0, 1), 1e-9)
	require.InDelta(t, -1.0, m.At(0, 2), 1e-9)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"labels":["CUSCO","LIMA","PIURA","TACNA"]`)
}

func TestDepartmentCorrelation_ConstantProfileIsNull(t *testing.T) {
	tbl := load(t, []string{"DEPARTAMENTO", "MODALIDADES", "cantidad"},
		[]string{"LIMA", "Robo", "5"},
		[]string{"LIMA", "Hurto", "5"},
		[]string{"CUSCO", "Robo", "1"},
		[]string{"CUSCO", "Hurto", "2"},
	)
	m, ok := DepartmentCorrelation(tbl)
	require.True(t, ok)
	require.True(t, math.IsNaN(m.At(0, 1)))
	require.Equal(t, 1.0, m.At(1, 1))

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"values":[[1,null],[null,1]]`)
}

func TestDepartmentCorrelation_NoResult(t *testing.T) {
	_, ok := DepartmentCorrelation(load(t, fullHeader))
	require.False(t, ok)
	_, ok = DepartmentCorrelation(load(t, []string{"DEPARTAMENTO", "cantidad"}, []string{"LIMA", "1"}))
	require.False(t, ok)
}
