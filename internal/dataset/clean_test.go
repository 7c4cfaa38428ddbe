package dataset

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func sidpolRaw() *RawTable {
	return &RawTable{
		Header: []string{"ANIO", "MES", "DPTO_HECHO_NEW", "PROV_HECHO", "DIST_HECHO", "P_MODALIDADES", "cantidad", "UBIGEO_HECHO"},
		Rows: [][]string{
			{"2020", "1", "LIMA", "LIMA", "MIRAFLORES", "Robo", "10", "150122"},
			{"2020", "0", "LIMA", "LIMA", "MIRAFLORES", "Robo", "10", "150122"},
			{"2020", "13", "LIMA", "LIMA", "MIRAFLORES", "Robo", "10", "150122"},
			{"2020", "2", " CUSCO ", "CUSCO", "WANCHAQ", "Hurto", "-5", "080108"},
			{"x", "3", "LIMA", "LIMA", "SURCO", "Hurto", "7", "150140"},
			{"2020", "", "LIMA", "LIMA", "SURCO", "Hurto", "7", "150140"},
			{"2021.0", "4", "PIURA", "PIURA", "CASTILLA", "Estafa", "abc", "200104"},
			{"2021", "5", "PIURA", "PIURA", "CASTILLA", "Estafa", "1,200", "200104"},
			{"2021", "6.5", "PIURA", "PIURA", "CASTILLA", "Estafa", "3", "200104"},
			{"2021", "7"},
		},
	}
}

func TestClean_CoercesAndValidates(t *testing.T) {
	tbl, err := Load(sidpolRaw())
	require.NoError(t, err)
	require.Equal(t, CanonicalColumns, tbl.Columns)
	require.Equal(t, []string{"UBIGEO_HECHO"}, tbl.Extra)

	// month 0, 13, unparsable year, empty month and fractional month are dropped.
	require.Len(t, tbl.Records, 5)

	require.Equal(t, Record{Year: 2020, Month: 1, Department: "LIMA", Province: "LIMA", District: "MIRAFLORES", Modality: "Robo", Count: 10, Extra: []string{"150122"}}, tbl.Records[0])

	// Negative counts clamp to zero; text is trimmed.
	require.Equal(t, int64(0), tbl.Records[1].Count)
	require.Equal(t, "CUSCO", tbl.Records[1].Department)

	// Integral float year is accepted; bad count defaults to zero.
	require.Equal(t, 2021, tbl.Records[2].Year)
	require.Equal(t, int64(0), tbl.Records[2].Count)

	// Thousands separators are stripped.
	require.Equal(t, int64(1200), tbl.Records[3].Count)

	// Short rows are padded: missing text is null, missing count is zero.
	short := tbl.Records[4]
	require.Equal(t, 7, short.Month)
	require.Equal(t, "", short.Modality)
	require.Equal(t, int64(0), short.Count)
}

func TestClean_Idempotent(t *testing.T) {
	once, err := Load(sidpolRaw())
	require.NoError(t, err)
	twice, err := Clean(once.Raw())
	require.NoError(t, err)
	require.Equal(t, once, twice)
}

func TestClean_NeverKeepsOutOfRangeMonths(t *testing.T) {
	raw := &RawTable{Header: []string{"month", "count"}}
	for m := -2; m <= 15; m++ {
		raw.Rows = append(raw.Rows, []string{strconv.Itoa(m), "1"})
	}
	tbl, err := Clean(raw)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 12)
	for _, r := range tbl.Records {
		require.GreaterOrEqual(t, r.Month, 1)
		require.LessOrEqual(t, r.Month, 12)
	}
}

func TestClean_RejectsNumbersBeyondInt64(t *testing.T) {
	raw := &RawTable{
		Header: []string{"ANIO", "MES", "cantidad"},
		Rows: [][]string{
			{"1e30", "1", "5"},
			{"9.3e18", "1", "5"},
			{"2022", "2", "1e30"},
			{"2022", "3", "-1e30"},
			{"2022", "4", "9.3e18"},
		},
	}
	tbl, err := Load(raw)
	require.NoError(t, err)
	require.Len(t, tbl.Records, 3)
	for _, r := range tbl.Records {
		require.Equal(t, 2022, r.Year)
		require.Zero(t, r.Count, "month %d", r.Month)
	}
}

func TestClean_PartialSchema(t *testing.T) {
	raw := &RawTable{
		Header: []string{"MODALIDADES", "CANTIDAD"},
		Rows:   [][]string{{"Robo", "3"}, {"Hurto", "-1"}},
	}
	tbl, err := Load(raw)
	require.NoError(t, err)
	require.Equal(t, []Column{ColModality, ColCount}, tbl.Columns)
	require.False(t, tbl.Has(ColYear))
	require.Len(t, tbl.Records, 2)
	require.Equal(t, int64(3), tbl.Total())
}

func TestClean_NotTabular(t *testing.T) {
	_, err := Clean(nil)
	require.ErrorIs(t, err, ErrNotTabular)

	_, err = Clean(&RawTable{})
	require.ErrorIs(t, err, ErrNotTabular)
}
