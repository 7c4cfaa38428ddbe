package insights

import (
	"gonum.org/v1/gonum/stat"

	"github.com/vinodismyname/sidpol/config"
	"github.com/vinodismyname/sidpol/internal/dataset"
)

// PredictionRow is one extrapolated month.
type PredictionRow struct {
	Month          int     `json:"month"`
	PredictedCount float64 `json:"predicted_count"`
	IsPrediction   bool    `json:"is_prediction"`
}

// TrendPoint is one month of the combined historical and predicted series.
type TrendPoint struct {
	Month        int     `json:"month"`
	Count        float64 `json:"count"`
	IsPrediction bool    `json:"is_prediction"`
}

// PredictTrend fits an ordinary least squares line to the monthly totals of t
// and extrapolates horizon months past the last observed month (default 3
// when horizon <= 0). Predictions are not clamped and may be negative.
// ok is false when fewer than two distinct months are available.
func PredictTrend(t *dataset.Table, horizon int) (rows []PredictionRow, ok bool) {
	if horizon <= 0 {
		horizon = config.DefaultTrendHorizon
	}
	months := ByMonth(t)
	if len(months) < 2 {
		return nil, false
	}

	xs := make([]float64, len(months))
	ys := make([]float64, len(months))
	for i, m := range months {
		xs[i] = float64(m.Month)
		ys[i] = float64(m.Count)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	last := months[len(months)-1].Month
	rows = make([]PredictionRow, horizon)
	for i := range rows {
		m := last + i + 1
		rows[i] = PredictionRow{Month: m, PredictedCount: alpha + beta*float64(m), IsPrediction: true}
	}
	return rows, true
}

// TrendSeries concatenates the monthly history with its predictions. When no
// prediction is possible the history is returned alone with ok false.
func TrendSeries(t *dataset.Table, horizon int) (series []TrendPoint, ok bool) {
	months := ByMonth(t)
	preds, ok := PredictTrend(t, horizon)
	series = make([]TrendPoint, 0, len(months)+len(preds))
	for _, m := range months {
		series = append(series, TrendPoint{Month: m.Month, Count: float64(m.Count)})
	}
	for _, p := range preds {
		series = append(series, TrendPoint{Month: p.Month, Count: p.PredictedCount, IsPrediction: true})
	}
	return series, ok
}
