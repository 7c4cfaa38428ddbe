package charts

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/vinodismyname/sidpol/internal/insights"
)

// Chart kinds served by Render.
const (
	KindModality    = "modality"
	KindTrend       = "trend"
	KindDepartments = "departments"
)

// Kinds lists every chart kind.
var Kinds = []string{KindModality, KindTrend, KindDepartments}

// ErrNoData means there is nothing to draw.
var ErrNoData = errors.New("charts: no data")

const (
	width  = 8 * vg.Inch
	height = 4 * vg.Inch
)

// Data carries the aggregates the charts are drawn from.
type Data struct {
	ByModality     []insights.ModalityCount
	Trend          []insights.TrendPoint
	TopDepartments []insights.DepartmentCount
}

// Render draws kind as a PNG image.
func Render(kind string, d Data) ([]byte, error) {
	var (
		p   *plot.Plot
		err error
	)
	switch kind {
	case KindModality:
		p, err = ModalityBar(d.ByModality)
	case KindTrend:
		p, err = TrendLine(d.Trend)
	case KindDepartments:
		p, err = DepartmentsBar(d.TopDepartments)
	default:
		return nil, fmt.Errorf("charts: unknown kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return PNG(p)
}

// PNG encodes p at the default size.
func PNG(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("charts: encode: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("charts: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Fixed modality palette, so a modality keeps its color across charts.
var palette = []struct {
	prefix string
	color  color.RGBA
}{
	{"HOMICIDIO", rgb(0xb3, 0x00, 0x00)},
	{"ROBO", rgb(0x1f, 0x77, 0xb4)},
	{"HURTO", rgb(0x2c, 0xa0, 0x2c)},
	{"ESTAFA", rgb(0xff, 0x7f, 0x0e)},
	{"EXTORSION", rgb(0x94, 0x67, 0xbd)},
	{"VIOLENCIA CONTRA LA MUJER", rgb(0xd6, 0x27, 0x28)},
}

var otherColor = rgb(0x7f, 0x7f, 0x7f)

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

// ModalityColor returns the palette color of a modality. Matching ignores
// case and accents; unknown modalities are gray.
func ModalityColor(modality string) color.RGBA {
	key := fold(modality)
	for _, p := range palette {
		if strings.HasPrefix(key, p.prefix) {
			return p.color
		}
	}
	return otherColor
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// ModalityBar draws one bar per modality in the given order.
func ModalityBar(rows []insights.ModalityCount) (*plot.Plot, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "Denuncias por modalidad"
	p.Y.Label.Text = "Denuncias"
	p.Y.Min = 0

	labels := make([]string, len(rows))
	for i, r := range rows {
		bars, err := plotter.NewBarChart(plotter.Values{float64(r.Count)}, vg.Points(20))
		if err != nil {
			return nil, err
		}
		bars.XMin = float64(i)
		bars.Color = ModalityColor(r.Modality)
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		labels[i] = r.Modality
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return p, nil
}

// TrendLine draws the monthly history as a solid line and its predictions as
// a dashed continuation.
func TrendLine(points []insights.TrendPoint) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "Tendencia mensual"
	p.X.Label.Text = "Mes"
	p.Y.Label.Text = "Denuncias"
	p.Add(plotter.NewGrid())

	var hist, pred plotter.XYs
	for _, pt := range points {
		xy := plotter.XY{X: float64(pt.Month), Y: pt.Count}
		if pt.IsPrediction {
			if len(pred) == 0 && len(hist) > 0 {
				pred = append(pred, hist[len(hist)-1])
			}
			pred = append(pred, xy)
			continue
		}
		hist = append(hist, xy)
	}

	if len(hist) > 0 {
		line, scatter, err := plotter.NewLinePoints(hist)
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(2)
		line.Color = rgb(0x1f, 0x77, 0xb4)
		scatter.Color = line.Color
		p.Add(line, scatter)
		p.Legend.Add("Histórico", line)
	}
	if len(pred) > 0 {
		line, err := plotter.NewLine(pred)
		if err != nil {
			return nil, err
		}
		line.Width = vg.Points(2)
		line.Color = rgb(0xff, 0x7f, 0x0e)
		line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		p.Add(line)
		p.Legend.Add("Predicción", line)
	}
	p.Legend.Top = true
	return p, nil
}

// DepartmentsBar draws horizontal bars, largest department on top.
func DepartmentsBar(rows []insights.DepartmentCount) (*plot.Plot, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	p := plot.New()
	p.Title.Text = "Top departamentos"
	p.X.Label.Text = "Denuncias"
	p.X.Min = 0

	n := len(rows)
	values := make(plotter.Values, n)
	labels := make([]string, n)
	for i, r := range rows {
		// The y axis grows upward, so reverse to put the largest on top.
		values[n-1-i] = float64(r.Count)
		labels[n-1-i] = r.Department
	}
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	bars.Color = rgb(0x46, 0x82, 0xb4)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)
	return p, nil
}
