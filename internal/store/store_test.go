package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinodismyname/sidpol/internal/dataset"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTable() *dataset.Table {
	return &dataset.Table{
		Columns: dataset.CanonicalColumns,
		Records: []dataset.Record{
			{Year: 2024, Month: 1, Department: "LIMA", Province: "LIMA", District: "MIRAFLORES", Modality: "HURTO", Count: 100},
			{Year: 2024, Month: 1, Department: "LIMA", Province: "LIMA", District: "MIRAFLORES", Modality: "ROBO", Count: 40},
			{Year: 2024, Month: 2, Department: "CUSCO", Province: "CUSCO", District: "WANCHAQ", Modality: "HURTO", Count: 30},
			{Year: 2024, Month: 2, Department: "LIMA", Province: "CALLAO", District: "BELLAVISTA", Modality: "ESTAFA", Count: 20},
			{Year: 2023, Month: 12, Modality: "", Count: 5},
		},
	}
}

func sampleSource() dataset.SourceInfo {
	return dataset.SourceInfo{Path: "data/DATASET_Denuncias_Policiales.csv", Size: 1234, ModTime: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	require.Error(t, err)
}

func TestReplaceAndFetch(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	stats, err := s.Replace(ctx, sampleSource(), sampleTable())
	require.NoError(t, err)
	require.Equal(t, LoadStats{Facts: 5, Locations: 3, Modalities: 3}, stats)

	got, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, got.Len())
	require.Equal(t, sampleTable().Total(), got.Total())
	// Ordered by period; the null-category row comes back with empty text.
	require.Equal(t, 2023, got.Records[0].Year)
	require.Equal(t, "", got.Records[0].Department)
	require.Equal(t, "", got.Records[0].Modality)

	src, err := s.Source(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleSource().Path, src.Path)
	require.Equal(t, int64(1234), src.Size)
	require.True(t, src.ModTime.Equal(sampleSource().ModTime))
}

func TestReplace_ReplacesPreviousContents(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	_, err := s.Replace(ctx, sampleSource(), sampleTable())
	require.NoError(t, err)

	small := &dataset.Table{Columns: dataset.CanonicalColumns, Records: []dataset.Record{
		{Year: 2025, Month: 1, Department: "PIURA", Province: "PIURA", District: "PIURA", Modality: "HURTO", Count: 7},
	}}
	_, err = s.Replace(ctx, sampleSource(), small)
	require.NoError(t, err)

	got, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	require.Equal(t, int64(7), got.Total())

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), st.Departments)
	require.Equal(t, int64(1), st.Modalities)
}

func TestSource_Empty(t *testing.T) {
	s := openMemory(t)
	_, err := s.Source(context.Background())
	require.ErrorIs(t, err, dataset.ErrSourceNotFound)
}

func TestCannedQueries(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	_, err := s.Replace(ctx, sampleSource(), sampleTable())
	require.NoError(t, err)

	mods, err := s.ByModality(ctx)
	require.NoError(t, err)
	require.Equal(t, "HURTO", mods[0].Modality)
	require.Equal(t, int64(130), mods[0].Count)
	require.Len(t, mods, 3)

	deps, err := s.TopDepartments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	require.Equal(t, "LIMA", deps[0].Department)
	require.Equal(t, int64(160), deps[0].Count)

	months, err := s.MonthlyTrend(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, months, 2)
	require.Equal(t, int64(140), months[0].Count)
	require.Equal(t, int64(50), months[1].Count)

	all, err := s.MonthlyTrend(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	provs, err := s.ProvincesOf(ctx, "LIMA")
	require.NoError(t, err)
	require.Len(t, provs, 2)
	require.Equal(t, "LIMA", provs[0].Province)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Facts: 5, Total: 195, Departments: 2, Modalities: 3, FirstYear: 2023, LastYear: 2024}, st)

	head, err := s.Head(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 2, head.Len())
}

func TestCheckReadOnly(t *testing.T) {
	ok := []string{
		"SELECT * FROM denuncias",
		"  select modality, sum(count) from denuncias group by modality;",
		"WITH t AS (SELECT 1 AS x) SELECT x FROM t",
		"SELECT created_at FROM sources",
	}
	for _, q := range ok {
		require.NoError(t, CheckReadOnly(q), q)
	}
	bad := []string{
		"",
		"DELETE FROM facts",
		"SELECT 1; DROP TABLE facts",
		"WITH x AS (DELETE FROM facts RETURNING *) SELECT * FROM x",
		"PRAGMA table_info(facts)",
		"UPDATE facts SET count = 0",
	}
	for _, q := range bad {
		require.ErrorIs(t, CheckReadOnly(q), ErrReadOnlyQuery, q)
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	_, err := s.Replace(ctx, sampleSource(), sampleTable())
	require.NoError(t, err)

	res, err := s.Query(ctx, "SELECT modality, SUM(count) AS total FROM denuncias WHERE modality <> '' GROUP BY modality ORDER BY total DESC", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"modality", "total"}, res.Columns)
	require.Len(t, res.Rows, 3)
	require.Equal(t, "HURTO", res.Rows[0][0])
	require.False(t, res.Truncated)

	res, err = s.Query(ctx, "SELECT * FROM denuncias", 2)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.True(t, res.Truncated)

	res, err = s.Query(ctx, "SELECT COUNT(*) AS n FROM facts;  ", 0)
	require.NoError(t, err)
	require.Equal(t, []string{"n"}, res.Columns)
	require.Len(t, res.Rows, 1)

	_, err = s.Query(ctx, "DELETE FROM facts", 0)
	require.ErrorIs(t, err, ErrReadOnlyQuery)
}
