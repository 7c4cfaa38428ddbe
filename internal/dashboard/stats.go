package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/insights"
	"github.com/vinodismyname/sidpol/internal/telemetry"
)

// Aggregate kinds accepted by Aggregate.
const (
	AggModality           = "modality"
	AggMonth              = "month"
	AggDepartment         = "department"
	AggProvince           = "province"
	AggModalityMonth      = "modality_month"
	AggDepartmentModality = "department_modality"
)

// Aggregate runs one grouping over the filtered dataset. n bounds the top-N
// kinds and is ignored by the others.
func (s *Service) Aggregate(ctx context.Context, id string, sel dataset.Selection, kind string, n int) (any, error) {
	t, _, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return nil, err
	}
	return s.aggregate(ctx, t, kind, n)
}

func (s *Service) aggregate(ctx context.Context, t *dataset.Table, kind string, n int) (any, error) {
	done := telemetry.Track(ctx, s.obs, "insights.aggregate."+kind, t.Len())
	var out any
	rows := 0
	switch kind {
	case AggModality:
		r := insights.ByModality(t)
		out, rows = r, len(r)
	case AggMonth:
		r := insights.ByMonth(t)
		out, rows = r, len(r)
	case AggDepartment:
		r := insights.TopDepartments(t, n)
		out, rows = r, len(r)
	case AggProvince:
		r := insights.ByProvince(t)
		out, rows = r, len(r)
	case AggModalityMonth:
		r := insights.ModalityByMonth(t)
		out, rows = r, len(r)
	case AggDepartmentModality:
		r := insights.TopModalitiesByDepartment(t, n)
		out, rows = r, len(r)
	default:
		err := fmt.Errorf("dashboard: unknown aggregate %q", kind)
		done(false, err)
		return nil, err
	}
	done(rows > 0, nil)
	return out, nil
}

// KPIs computes the headline figures of the filtered dataset.
func (s *Service) KPIs(ctx context.Context, id string, sel dataset.Selection) (insights.KPIs, error) {
	t, _, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return insights.KPIs{}, err
	}
	return s.kpis(ctx, t), nil
}

func (s *Service) kpis(ctx context.Context, t *dataset.Table) insights.KPIs {
	done := telemetry.Track(ctx, s.obs, "insights.kpis", t.Len())
	k := insights.ComputeKPIs(t)
	done(!t.Empty(), nil)
	return k
}

// Trend returns monthly history followed by horizon predicted months.
func (s *Service) Trend(ctx context.Context, id string, sel dataset.Selection, horizon int) ([]insights.TrendPoint, bool, error) {
	t, _, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return nil, false, err
	}
	series, ok := s.trend(ctx, t, horizon)
	return series, ok, nil
}

func (s *Service) trend(ctx context.Context, t *dataset.Table, horizon int) ([]insights.TrendPoint, bool) {
	done := telemetry.Track(ctx, s.obs, "insights.trend", t.Len())
	series, ok := insights.TrendSeries(t, horizon)
	done(ok, nil)
	return series, ok
}

// Growth computes row-to-row growth along axis.
func (s *Service) Growth(ctx context.Context, id string, sel dataset.Selection, axis string) ([]insights.GrowthRow, bool, error) {
	t, _, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return nil, false, err
	}
	rows, ok := s.growth(ctx, t, axis)
	return rows, ok, nil
}

func (s *Service) growth(ctx context.Context, t *dataset.Table, axis string) ([]insights.GrowthRow, bool) {
	done := telemetry.Track(ctx, s.obs, "insights.growth", t.Len())
	rows, ok := insights.GrowthRate(t, axis)
	done(ok, nil)
	return rows, ok
}

// Correlation correlates department modality profiles.
func (s *Service) Correlation(ctx context.Context, id string, sel dataset.Selection) (insights.CorrelationMatrix, bool, error) {
	t, _, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return insights.CorrelationMatrix{}, false, err
	}
	m, ok := s.correlation(ctx, t)
	return m, ok, nil
}

func (s *Service) correlation(ctx context.Context, t *dataset.Table) (insights.CorrelationMatrix, bool) {
	done := telemetry.Track(ctx, s.obs, "insights.correlation", t.Len())
	m, ok := insights.DepartmentCorrelation(t)
	done(ok, nil)
	return m, ok
}

// Snapshot is every dashboard figure for one selection.
type Snapshot struct {
	HandleID       string                             `json:"handle_id"`
	Source         dataset.SourceInfo                 `json:"source"`
	Rows           int                                `json:"rows"`
	KPIs           insights.KPIs                      `json:"kpis"`
	ByModality     []insights.ModalityCount           `json:"by_modality"`
	ByMonth        []insights.MonthCount              `json:"by_month"`
	TopDepartments []insights.DepartmentCount         `json:"top_departments"`
	ByProvince     []insights.ProvinceCount           `json:"by_province"`
	Heatmap        []insights.ModalityMonthCount      `json:"heatmap"`
	TopModalities  []insights.DepartmentModalityCount `json:"top_modalities_by_department"`
	Trend          []insights.TrendPoint              `json:"trend"`
	TrendOK        bool                               `json:"trend_ok"`
	Growth         []insights.GrowthRow               `json:"growth_by_month"`
	GrowthOK       bool                               `json:"growth_ok"`
	Correlation    *insights.CorrelationMatrix        `json:"correlation,omitempty"`
}

// Snapshot computes all figures concurrently over one filtered table. The
// core functions only read the table, so sharing it is safe.
func (s *Service) Snapshot(ctx context.Context, id string, sel dataset.Selection) (*Snapshot, error) {
	t, h, err := s.Filtered(ctx, id, sel)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{HandleID: h.ID, Source: h.Source, Rows: t.Len()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { snap.KPIs = s.kpis(gctx, t); return nil })
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggModality, 0)
		if err == nil {
			snap.ByModality = v.([]insights.ModalityCount)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggMonth, 0)
		if err == nil {
			snap.ByMonth = v.([]insights.MonthCount)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggDepartment, 0)
		if err == nil {
			snap.TopDepartments = v.([]insights.DepartmentCount)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggProvince, 0)
		if err == nil {
			snap.ByProvince = v.([]insights.ProvinceCount)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggModalityMonth, 0)
		if err == nil {
			snap.Heatmap = v.([]insights.ModalityMonthCount)
		}
		return err
	})
	g.Go(func() error {
		v, err := s.aggregate(gctx, t, AggDepartmentModality, 0)
		if err == nil {
			snap.TopModalities = v.([]insights.DepartmentModalityCount)
		}
		return err
	})
	g.Go(func() error { snap.Trend, snap.TrendOK = s.trend(gctx, t, 0); return nil })
	g.Go(func() error { snap.Growth, snap.GrowthOK = s.growth(gctx, t, string(insights.GrowthByMonth)); return nil })
	g.Go(func() error {
		if m, ok := s.correlation(gctx, t); ok {
			snap.Correlation = &m
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}
