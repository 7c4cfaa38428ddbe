package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/insights"
	"github.com/vinodismyname/sidpol/internal/store"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
	"github.com/vinodismyname/sidpol/pkg/validation"
)

// SelectionOnlyInput is the input of tools that take nothing but a selection.
type SelectionOnlyInput struct {
	SelectionInput
}

// AggregateInput defines parameters for aggregate.
type AggregateInput struct {
	SelectionInput
	Kind string `json:"kind" jsonschema_description:"One of modality, month, department, province, modality_month, department_modality" validate:"required,agg_kind"`
	TopN int    `json:"top_n,omitempty" jsonschema_description:"Rows kept by the department (default 10) and department_modality (default 5) kinds" validate:"omitempty,min=1"`
}

// AggregateOutput wraps the rows of one aggregate kind.
type AggregateOutput struct {
	Kind string `json:"kind"`
	Rows any    `json:"rows"`
}

// PredictTrendInput defines parameters for predict_trend.
type PredictTrendInput struct {
	SelectionInput
	Horizon int `json:"horizon,omitempty" jsonschema_description:"Months to extrapolate (default 3)" validate:"omitempty,min=1,max=24"`
}

// PredictTrendOutput holds the fitted predictions and the combined series.
type PredictTrendOutput struct {
	OK          bool                     `json:"ok" jsonschema_description:"False when fewer than two months are available"`
	Predictions []insights.PredictionRow `json:"predictions"`
	Series      []insights.TrendPoint    `json:"series"`
}

// GrowthRateInput defines parameters for growth_rate.
type GrowthRateInput struct {
	SelectionInput
	Axis string `json:"axis" jsonschema_description:"year, month or modality (anio, mes, modalidad also accepted)" validate:"required,growth_axis"`
}

// GrowthRateOutput holds growth rows along one axis.
type GrowthRateOutput struct {
	Axis string               `json:"axis"`
	OK   bool                 `json:"ok"`
	Rows []insights.GrowthRow `json:"rows"`
}

// CorrelationOutput holds the department correlation matrix.
type CorrelationOutput struct {
	OK     bool                        `json:"ok" jsonschema_description:"False when department or modality data is missing"`
	Matrix *insights.CorrelationMatrix `json:"matrix,omitempty"`
}

// QuerySQLInput defines parameters for query_sql.
type QuerySQLInput struct {
	SQL     string `json:"sql" jsonschema_description:"One read-only SELECT over sources, locations, modalities, facts or the denuncias view" validate:"required"`
	MaxRows int    `json:"max_rows,omitempty" jsonschema_description:"Row cap (bounded by the server)" validate:"omitempty,min=1"`
}

func (t *tools) registerStats(add func(mcp.Tool, server.ToolHandlerFunc)) {
	add(mcp.NewTool(
		ToolAggregate,
		mcp.WithDescription("Sum complaint counts over a selection grouped by modality, month, department, province, modality and month, or department and modality"),
		mcp.WithInputSchema[AggregateInput](),
		mcp.WithOutputSchema[AggregateOutput](),
	), mcp.NewTypedToolHandler(t.aggregate))

	add(mcp.NewTool(
		ToolComputeKPIs,
		mcp.WithDescription("Total complaints, variation between the last two periods, top modality and top department"),
		mcp.WithInputSchema[SelectionOnlyInput](),
		mcp.WithOutputSchema[insights.KPIs](),
	), mcp.NewTypedToolHandler(t.computeKPIs))

	add(mcp.NewTool(
		ToolPredictTrend,
		mcp.WithDescription("Fit a linear trend to monthly totals and extrapolate the next months"),
		mcp.WithInputSchema[PredictTrendInput](),
		mcp.WithOutputSchema[PredictTrendOutput](),
	), mcp.NewTypedToolHandler(t.predictTrend))

	add(mcp.NewTool(
		ToolGrowthRate,
		mcp.WithDescription("Percentage change of complaint totals between consecutive years, months or modalities"),
		mcp.WithInputSchema[GrowthRateInput](),
		mcp.WithOutputSchema[GrowthRateOutput](),
	), mcp.NewTypedToolHandler(t.growthRate))

	add(mcp.NewTool(
		ToolCorrelation,
		mcp.WithDescription("Pearson correlation between the modality profiles of departments"),
		mcp.WithInputSchema[SelectionOnlyInput](),
		mcp.WithOutputSchema[CorrelationOutput](),
	), mcp.NewTypedToolHandler(t.correlation))

	add(mcp.NewTool(
		ToolSnapshot,
		mcp.WithDescription("Every dashboard figure for a selection in one call"),
		mcp.WithInputSchema[SelectionOnlyInput](),
		mcp.WithOutputSchema[dashboard.Snapshot](),
	), mcp.NewTypedToolHandler(t.snapshot))

	add(mcp.NewTool(
		ToolQuerySQL,
		mcp.WithDescription("Run one read-only SELECT against the relational store (enabled by store.enable_sql)"),
		mcp.WithInputSchema[QuerySQLInput](),
		mcp.WithOutputSchema[store.QueryResult](),
	), mcp.NewTypedToolHandler(t.querySQL))
}

func (t *tools) aggregate(ctx context.Context, req mcp.CallToolRequest, in AggregateInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	rows, err := t.deps.Service.Aggregate(ctx, in.DatasetID, sel, kind, in.TopN)
	if err != nil {
		return t.fail(ctx, ToolAggregate, err), nil
	}
	return result(AggregateOutput{Kind: kind, Rows: rows}, "aggregate %s: %d rows", kind, rowCount(rows)), nil
}

func rowCount(rows any) int {
	switch r := rows.(type) {
	case []insights.ModalityCount:
		return len(r)
	case []insights.MonthCount:
		return len(r)
	case []insights.DepartmentCount:
		return len(r)
	case []insights.ProvinceCount:
		return len(r)
	case []insights.ModalityMonthCount:
		return len(r)
	case []insights.DepartmentModalityCount:
		return len(r)
	}
	return 0
}

func (t *tools) computeKPIs(ctx context.Context, req mcp.CallToolRequest, in SelectionOnlyInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	k, err := t.deps.Service.KPIs(ctx, in.DatasetID, sel)
	if err != nil {
		return t.fail(ctx, ToolComputeKPIs, err), nil
	}
	return result(k, "total=%d var_pct=%.2f top_modality=%s top_department=%s", k.Total, k.VarPct, k.TopModality, k.TopDepartment), nil
}

func (t *tools) predictTrend(ctx context.Context, req mcp.CallToolRequest, in PredictTrendInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	series, ok, err := t.deps.Service.Trend(ctx, in.DatasetID, sel, in.Horizon)
	if err != nil {
		return t.fail(ctx, ToolPredictTrend, err), nil
	}
	out := PredictTrendOutput{OK: ok, Series: series, Predictions: []insights.PredictionRow{}}
	for _, p := range series {
		if p.IsPrediction {
			out.Predictions = append(out.Predictions, insights.PredictionRow{Month: p.Month, PredictedCount: p.Count, IsPrediction: true})
		}
	}
	if !ok {
		return result(out, "not enough months for a trend (%d observed)", len(series)), nil
	}
	return result(out, "%d months observed, %d predicted", len(series)-len(out.Predictions), len(out.Predictions)), nil
}

func (t *tools) growthRate(ctx context.Context, req mcp.CallToolRequest, in GrowthRateInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	axis, _ := insights.ParseGrowthAxis(in.Axis)
	rows, ok, err := t.deps.Service.Growth(ctx, in.DatasetID, sel, string(axis))
	if err != nil {
		return t.fail(ctx, ToolGrowthRate, err), nil
	}
	if rows == nil {
		rows = []insights.GrowthRow{}
	}
	out := GrowthRateOutput{Axis: string(axis), OK: ok, Rows: rows}
	return result(out, "growth by %s: %d rows ok=%t", axis, len(rows), ok), nil
}

func (t *tools) correlation(ctx context.Context, req mcp.CallToolRequest, in SelectionOnlyInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	m, ok, err := t.deps.Service.Correlation(ctx, in.DatasetID, sel)
	if err != nil {
		return t.fail(ctx, ToolCorrelation, err), nil
	}
	out := CorrelationOutput{OK: ok}
	if !ok {
		return result(out, "correlation unavailable for this selection"), nil
	}
	out.Matrix = &m
	return result(out, "correlation over %d departments and %d modalities", len(m.Labels), len(m.Modalities)), nil
}

func (t *tools) snapshot(ctx context.Context, req mcp.CallToolRequest, in SelectionOnlyInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	snap, err := t.deps.Service.Snapshot(ctx, in.DatasetID, sel)
	if err != nil {
		return t.fail(ctx, ToolSnapshot, err), nil
	}
	return result(snap, "dataset_id=%s rows=%d total=%d trend_ok=%t", snap.HandleID, snap.Rows, snap.KPIs.Total, snap.TrendOK), nil
}

func (t *tools) querySQL(ctx context.Context, req mcp.CallToolRequest, in QuerySQLInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	limit := t.deps.Limits.MaxQueryRows
	if in.MaxRows > 0 && (limit <= 0 || in.MaxRows < limit) {
		limit = in.MaxRows
	}
	res, err := t.deps.Service.Query(ctx, in.SQL, limit)
	if err != nil {
		return t.failAs(ctx, ToolQuerySQL, err, mcperr.QueryFailed), nil
	}
	return result(res, "%d columns, %d rows, truncated=%t", len(res.Columns), len(res.Rows), res.Truncated), nil
}
