package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/sidpol/internal/charts"
	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// Sheet names of the exported workbook.
const (
	SheetSummary     = "Resumen"
	SheetModalities  = "Modalidades"
	SheetMonths      = "Meses"
	SheetDepartments = "Departamentos"
	SheetProvinces   = "Provincias"
	SheetTrend       = "Tendencia"
	SheetGrowth      = "Crecimiento"
	SheetCorrelation = "Correlacion"
	SheetData        = "Datos"
)

// Contents is everything a report is built from.
type Contents struct {
	Snapshot    *dashboard.Snapshot
	Table       *dataset.Table
	GeneratedAt time.Time
	// Charts embeds PNG charts on the summary sheet when set.
	Charts bool
}

// Build assembles the workbook. The caller owns the returned file and must
// close it.
func Build(c Contents) (*excelize.File, error) {
	if c.Snapshot == nil {
		return nil, errors.New("report: nil snapshot")
	}
	if c.GeneratedAt.IsZero() {
		c.GeneratedAt = time.Now()
	}
	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("report: style: %w", err)
	}
	w := &writer{f: f, header: bold}

	s := c.Snapshot
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("report: rename sheet: %w", err)
	}
	w.table(SheetSummary, []string{"Indicador", "Valor"}, [][]any{
		{"Fuente", s.Source.Path},
		{"Generado", c.GeneratedAt.Format(time.RFC3339)},
		{"Filas", s.Rows},
		{"Total denuncias", s.KPIs.Total},
		{"Variación mensual (%)", s.KPIs.VarPct},
		{"Modalidad principal", s.KPIs.TopModality},
		{"Departamento principal", s.KPIs.TopDepartment},
	})

	var rows [][]any
	for _, r := range s.ByModality {
		rows = append(rows, []any{r.Modality, r.Count})
	}
	w.table(SheetModalities, []string{"Modalidad", "Denuncias"}, rows)

	rows = nil
	for _, r := range s.ByMonth {
		rows = append(rows, []any{r.Month, r.Count})
	}
	w.table(SheetMonths, []string{"Mes", "Denuncias"}, rows)

	rows = nil
	for _, r := range s.TopDepartments {
		rows = append(rows, []any{r.Department, r.Count})
	}
	w.table(SheetDepartments, []string{"Departamento", "Denuncias"}, rows)

	rows = nil
	for _, r := range s.ByProvince {
		rows = append(rows, []any{r.Province, r.Count})
	}
	w.table(SheetProvinces, []string{"Provincia", "Denuncias"}, rows)

	rows = nil
	for _, r := range s.Trend {
		rows = append(rows, []any{r.Month, r.Count, r.IsPrediction})
	}
	w.table(SheetTrend, []string{"Mes", "Denuncias", "Predicción"}, rows)

	rows = nil
	for _, r := range s.Growth {
		var rate any
		if r.GrowthRate != nil {
			rate = *r.GrowthRate
		}
		rows = append(rows, []any{r.Key, r.Count, rate})
	}
	w.table(SheetGrowth, []string{"Mes", "Denuncias", "Crecimiento (%)"}, rows)

	if m := s.Correlation; m != nil {
		header := append([]string{"Departamento"}, m.Labels...)
		rows = nil
		for i, label := range m.Labels {
			row := []any{label}
			for j := range m.Labels {
				if v := m.At(i, j); !math.IsNaN(v) {
					row = append(row, v)
				} else {
					row = append(row, nil)
				}
			}
			rows = append(rows, row)
		}
		w.table(SheetCorrelation, header, rows)
	}
	if w.err != nil {
		return nil, w.err
	}

	if c.Table != nil {
		if err := writeData(f, c.Table); err != nil {
			return nil, err
		}
	}

	if c.Charts {
		if err := embedCharts(f, s); err != nil {
			return nil, err
		}
	}
	ok = true
	return f, nil
}

// Write builds the workbook and streams it to out.
func Write(out io.Writer, c Contents) error {
	f, err := Build(c)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// WriteFile builds the workbook and saves it at path.
func WriteFile(path string, c Contents) error {
	f, err := Build(c)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

type writer struct {
	f      *excelize.File
	header int
	err    error
}

// table writes a bold header row and the rows below it, creating the sheet
// when needed. The first error sticks.
func (w *writer) table(sheet string, header []string, rows [][]any) {
	if w.err != nil {
		return
	}
	if idx, _ := w.f.GetSheetIndex(sheet); idx < 0 {
		if _, err := w.f.NewSheet(sheet); err != nil {
			w.err = fmt.Errorf("report: sheet %s: %w", sheet, err)
			return
		}
	}
	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		w.err = fmt.Errorf("report: %s header: %w", sheet, err)
		return
	}
	end, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := w.f.SetCellStyle(sheet, "A1", end, w.header); err != nil {
		w.err = fmt.Errorf("report: %s style: %w", sheet, err)
		return
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := w.f.SetSheetRow(sheet, cell, &r); err != nil {
			w.err = fmt.Errorf("report: %s row %d: %w", sheet, i+2, err)
			return
		}
	}
}

// writeData streams the filtered rows, which can be large.
func writeData(f *excelize.File, t *dataset.Table) error {
	if _, err := f.NewSheet(SheetData); err != nil {
		return fmt.Errorf("report: sheet %s: %w", SheetData, err)
	}
	sw, err := f.NewStreamWriter(SheetData)
	if err != nil {
		return fmt.Errorf("report: stream %s: %w", SheetData, err)
	}
	raw := t.Raw()
	header := make([]any, len(raw.Header))
	for i, h := range raw.Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("report: data header: %w", err)
	}
	for i, rec := range t.Records {
		row := make([]any, 0, len(raw.Header))
		for _, c := range t.Columns {
			switch c {
			case dataset.ColYear:
				row = append(row, rec.Year)
			case dataset.ColMonth:
				row = append(row, rec.Month)
			case dataset.ColCount:
				row = append(row, rec.Count)
			default:
				row = append(row, rec.Value(c))
			}
		}
		for _, x := range rec.Extra {
			row = append(row, x)
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("report: data row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("report: flush data: %w", err)
	}
	return nil
}

func embedCharts(f *excelize.File, s *dashboard.Snapshot) error {
	data := charts.Data{ByModality: s.ByModality, Trend: s.Trend, TopDepartments: s.TopDepartments}
	cells := map[string]string{charts.KindModality: "D2", charts.KindTrend: "D24", charts.KindDepartments: "D46"}
	for _, kind := range charts.Kinds {
		img, err := charts.Render(kind, data)
		if errors.Is(err, charts.ErrNoData) {
			continue
		}
		if err != nil {
			return fmt.Errorf("report: chart %s: %w", kind, err)
		}
		pic := &excelize.Picture{
			Extension: ".png",
			File:      img,
			Format:    &excelize.GraphicOptions{AltText: kind, ScaleX: 0.5, ScaleY: 0.5},
		}
		if err := f.AddPictureFromBytes(SheetSummary, cells[kind], pic); err != nil {
			return fmt.Errorf("report: embed %s: %w", kind, err)
		}
	}
	return nil
}
