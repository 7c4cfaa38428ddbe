package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/runtime"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
	"github.com/vinodismyname/sidpol/pkg/validation"
)

// Tool names.
const (
	ToolLoadDataset  = "load_dataset"
	ToolListOptions  = "list_options"
	ToolFilterRows   = "filter_rows"
	ToolRefreshData  = "refresh_data"
	ToolExportReport = "export_report"
	ToolAggregate    = "aggregate"
	ToolComputeKPIs  = "compute_kpis"
	ToolPredictTrend = "predict_trend"
	ToolGrowthRate   = "growth_rate"
	ToolCorrelation  = "correlation_matrix"
	ToolSnapshot     = "dashboard_snapshot"
	ToolQuerySQL     = "query_sql"
)

// WritePathValidator resolves report destinations inside the allow-list.
type WritePathValidator interface {
	ValidateWritePath(path string) (string, error)
}

// Deps carries what the tool handlers need.
type Deps struct {
	Service  *dashboard.Service
	Limits   runtime.Limits
	Security WritePathValidator
	Logger   zerolog.Logger
}

// RegisterTools adds every SIDPOL tool to s and records it in reg.
func RegisterTools(s *server.MCPServer, reg *Registry, deps Deps) {
	t := &tools{deps: deps, reg: reg, logger: deps.Logger.With().Str("component", "tools").Logger()}
	add := func(tool mcp.Tool, h server.ToolHandlerFunc) {
		if s != nil {
			s.AddTool(tool, h)
		}
		reg.Register(tool, h)
	}
	t.registerDataset(add)
	t.registerStats(add)
}

type tools struct {
	deps   Deps
	reg    *Registry
	logger zerolog.Logger
}

// SelectionInput holds the dashboard filters shared by most tools.
type SelectionInput struct {
	DatasetID  string   `json:"dataset_id,omitempty" jsonschema_description:"Dataset handle from load_dataset; empty uses the latest dataset"`
	Year       *int     `json:"year,omitempty" jsonschema_description:"Calendar year (ANIO)"`
	Modalities []string `json:"modalities,omitempty" jsonschema_description:"Crime modalities to keep; empty keeps all"`
	Department string   `json:"department,omitempty" jsonschema_description:"Department name, or Todos for all"`
	Province   string   `json:"province,omitempty" jsonschema_description:"Province name, or Todas for all"`
	District   string   `json:"district,omitempty" jsonschema_description:"District name"`
	MonthFrom  int      `json:"month_from,omitempty" jsonschema_description:"First month of the range (1-12)" validate:"omitempty,month"`
	MonthTo    int      `json:"month_to,omitempty" jsonschema_description:"Last month of the range (1-12)" validate:"omitempty,month"`
}

// Selection converts the input to a dataset.Selection and validates it.
// The returned string is a "CODE: message" error when not empty.
func (in SelectionInput) Selection() (dataset.Selection, string) {
	sel := dataset.Selection{
		Year:       in.Year,
		Modalities: in.Modalities,
		Department: in.Department,
		Province:   in.Province,
		District:   in.District,
	}
	if in.MonthFrom != 0 || in.MonthTo != 0 {
		r := dataset.MonthRange{From: in.MonthFrom, To: in.MonthTo}
		if r.From == 0 {
			r.From = 1
		}
		if r.To == 0 {
			r.To = 12
		}
		sel.Months = &r
	}
	if msg := validation.ValidateStruct(sel); msg != "" {
		return sel, msg
	}
	return sel, ""
}

// fail converts a service error into a tool error result.
func (t *tools) fail(ctx context.Context, tool string, err error) *mcp.CallToolResult {
	code := dashboard.Classify(err)
	if errors.Is(err, context.Canceled) {
		code = mcperr.Timeout
	}
	t.logger.Debug().Ctx(ctx).Str("tool", tool).Str("code", string(code)).Err(err).Msg("tool failed")
	return mcperr.New(code, err.Error())
}

// result builds a structured result with a text summary for clients that do
// not read structured content.
func result(out any, format string, args ...any) *mcp.CallToolResult {
	summary := fmt.Sprintf(format, args...)
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res
}

// validateInput runs struct validation and the shared selection checks.
func validateInput(in any, sel SelectionInput) (dataset.Selection, *mcp.CallToolResult) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return dataset.Selection{}, mcperr.FromText(msg)
	}
	s, msg := sel.Selection()
	if msg != "" {
		return s, mcperr.FromText(msg)
	}
	return s, nil
}
