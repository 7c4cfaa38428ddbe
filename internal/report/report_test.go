package report

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/insights"
)

func sampleContents() Contents {
	rate := 50.0
	return Contents{
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Snapshot: &dashboard.Snapshot{
			Source:         dataset.SourceInfo{Path: "data/DATASET_Denuncias_Policiales.csv"},
			Rows:           2,
			KPIs:           insights.KPIs{Total: 150, VarPct: 50, TopModality: "HURTO", TopDepartment: "LIMA"},
			ByModality:     []insights.ModalityCount{{Modality: "HURTO", Count: 150}},
			ByMonth:        []insights.MonthCount{{Month: 1, Count: 100}, {Month: 2, Count: 50}},
			TopDepartments: []insights.DepartmentCount{{Department: "LIMA", Count: 150}},
			Trend:          []insights.TrendPoint{{Month: 1, Count: 100}, {Month: 2, Count: 50}, {Month: 3, Count: 0, IsPrediction: true}},
			Growth:         []insights.GrowthRow{{Key: "1", Count: 100}, {Key: "2", Count: 150, GrowthRate: &rate}},
			Correlation: &insights.CorrelationMatrix{
				Labels: []string{"CUSCO", "LIMA"},
				Values: [][]float64{{1, math.NaN()}, {math.NaN(), 1}},
			},
		},
		Table: &dataset.Table{Columns: dataset.CanonicalColumns, Records: []dataset.Record{
			{Year: 2024, Month: 1, Department: "LIMA", Province: "LIMA", District: "LINCE", Modality: "HURTO", Count: 100},
			{Year: 2024, Month: 2, Department: "LIMA", Province: "LIMA", District: "LINCE", Modality: "HURTO", Count: 50},
		}},
	}
}

func TestBuild(t *testing.T) {
	f, err := Build(sampleContents())
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{SheetSummary, SheetModalities, SheetMonths, SheetDepartments, SheetProvinces, SheetTrend, SheetGrowth, SheetCorrelation, SheetData}, f.GetSheetList())

	v, err := f.GetCellValue(SheetSummary, "B5")
	require.NoError(t, err)
	require.Equal(t, "150", v)

	v, err = f.GetCellValue(SheetGrowth, "C3")
	require.NoError(t, err)
	require.Equal(t, "50", v)
	v, err = f.GetCellValue(SheetGrowth, "C2")
	require.NoError(t, err)
	require.Equal(t, "", v)

	v, err = f.GetCellValue(SheetCorrelation, "C2")
	require.NoError(t, err)
	require.Equal(t, "", v)

	rows, err := f.GetRows(SheetData)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"year", "month", "department", "province", "district", "modality", "count"}, rows[0])
	require.Equal(t, "LINCE", rows[1][4])
}

func TestWriteFile_WithCharts(t *testing.T) {
	c := sampleContents()
	c.Charts = true
	path := filepath.Join(t.TempDir(), "reporte.xlsx")
	require.NoError(t, WriteFile(path, c))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	pics, err := f.GetPictures(SheetSummary, "D2")
	require.NoError(t, err)
	require.Len(t, pics, 1)
}

func TestWrite_NilSnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, Write(&buf, Contents{}))
	require.Zero(t, buf.Len())
}

func TestWrite_Stream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleContents()))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(SheetModalities, "A2")
	require.NoError(t, err)
	require.Equal(t, "HURTO", v)
}
