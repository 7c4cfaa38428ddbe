package registry

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/report"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
	"github.com/vinodismyname/sidpol/pkg/pagination"
	"github.com/vinodismyname/sidpol/pkg/validation"
)

// LoadDatasetInput defines parameters for load_dataset.
type LoadDatasetInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"CSV or XLSX file inside an allowed directory; empty loads the newest file in the data directory" validate:"omitempty,source_ext"`
}

// LoadDatasetOutput describes the cached dataset.
type LoadDatasetOutput struct {
	DatasetID       string             `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	Source          dataset.SourceInfo `json:"source"`
	Rows            int                `json:"rows"`
	Columns         []string           `json:"columns" jsonschema_description:"Canonical columns present in the file"`
	Extra           []string           `json:"extra,omitempty" jsonschema_description:"Pass-through columns kept as text"`
	MaxPayloadBytes int                `json:"max_payload_bytes" jsonschema_description:"Effective payload size limit in bytes"`
	PageSize        int                `json:"page_size" jsonschema_description:"Default filter_rows page size"`
}

// ListOptionsInput defines parameters for list_options.
type ListOptionsInput struct {
	DatasetID  string `json:"dataset_id,omitempty" jsonschema_description:"Dataset handle; empty uses the latest dataset"`
	Department string `json:"department,omitempty" jsonschema_description:"List the provinces of this department"`
}

// FilterRowsInput defines parameters for filter_rows. A cursor replaces every
// other parameter.
type FilterRowsInput struct {
	SelectionInput
	PageSize int    `json:"page_size,omitempty" jsonschema_description:"Rows per page (bounded by the server)" validate:"omitempty,min=1"`
	Cursor   string `json:"cursor,omitempty" jsonschema_description:"nextCursor from a previous page" validate:"omitempty,cursor"`
}

// PageMeta captures paging and truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// FilterRowsOutput is one page of the filtered rows, sorted by month and
// descending count.
type FilterRowsOutput struct {
	DatasetID string     `json:"dataset_id"`
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Meta      PageMeta   `json:"meta"`
}

// RefreshDataOutput reports a download and the dataset loaded from it.
type RefreshDataOutput struct {
	URL       string   `json:"url"`
	Path      string   `json:"path"`
	Bytes     int64    `json:"bytes"`
	Removed   []string `json:"removed,omitempty"`
	DatasetID string   `json:"dataset_id"`
	Rows      int      `json:"rows"`
}

// ExportReportInput defines parameters for export_report.
type ExportReportInput struct {
	SelectionInput
	Path   string `json:"path" jsonschema_description:"Destination .xlsx file inside an allowed directory" validate:"required"`
	Charts bool   `json:"charts,omitempty" jsonschema_description:"Embed PNG charts on the summary sheet"`
}

// ExportReportOutput describes the written workbook.
type ExportReportOutput struct {
	Path      string `json:"path"`
	DatasetID string `json:"dataset_id"`
	Rows      int    `json:"rows"`
	Total     int64  `json:"total"`
}

func (t *tools) registerDataset(add func(mcp.Tool, server.ToolHandlerFunc)) {
	add(mcp.NewTool(
		ToolLoadDataset,
		mcp.WithDescription("Load and clean a complaints file (newest file in the data directory by default) and return a dataset handle"),
		mcp.WithInputSchema[LoadDatasetInput](),
		mcp.WithOutputSchema[LoadDatasetOutput](),
	), mcp.NewTypedToolHandler(t.loadDataset))

	add(mcp.NewTool(
		ToolListOptions,
		mcp.WithDescription("List selectable years, modalities and departments; provinces when a department is given"),
		mcp.WithInputSchema[ListOptionsInput](),
		mcp.WithOutputSchema[dataset.Options](),
	), mcp.NewTypedToolHandler(t.listOptions))

	add(mcp.NewTool(
		ToolFilterRows,
		mcp.WithDescription("Page through the rows matching a selection, sorted by month then descending count"),
		mcp.WithInputSchema[FilterRowsInput](),
		mcp.WithOutputSchema[FilterRowsOutput](),
	), mcp.NewTypedToolHandler(t.filterRows))

	add(mcp.NewTool(
		ToolRefreshData,
		mcp.WithDescription("Download the newest complaints CSV from the open data portal, replace older files and load it"),
		mcp.WithOutputSchema[RefreshDataOutput](),
	), t.refreshData)

	add(mcp.NewTool(
		ToolExportReport,
		mcp.WithDescription("Write an Excel report (summary, aggregates, trend, growth, correlation and data sheets) for a selection"),
		mcp.WithInputSchema[ExportReportInput](),
		mcp.WithOutputSchema[ExportReportOutput](),
	), mcp.NewTypedToolHandler(t.exportReport))
}

func (t *tools) loadDataset(ctx context.Context, req mcp.CallToolRequest, in LoadDatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	h, err := t.deps.Service.Load(ctx, strings.TrimSpace(in.Path))
	if err != nil {
		return t.failAs(ctx, ToolLoadDataset, err, mcperr.LoadFailed), nil
	}
	cols := make([]string, 0, len(h.Table.Columns))
	for _, c := range h.Table.Columns {
		cols = append(cols, string(c))
	}
	out := LoadDatasetOutput{
		DatasetID:       h.ID,
		Source:          h.Source,
		Rows:            h.Table.Len(),
		Columns:         cols,
		Extra:           h.Table.Extra,
		MaxPayloadBytes: t.reg.PayloadBudget(t.deps.Limits.MaxPayloadBytes),
		PageSize:        t.deps.Limits.DefaultPageSize,
	}
	return result(out, "dataset_id=%s rows=%d source=%s", out.DatasetID, out.Rows, filepath.Base(h.Source.Path)), nil
}

func (t *tools) listOptions(ctx context.Context, req mcp.CallToolRequest, in ListOptionsInput) (*mcp.CallToolResult, error) {
	opts, err := t.deps.Service.Options(ctx, in.DatasetID, in.Department)
	if err != nil {
		return t.fail(ctx, ToolListOptions, err), nil
	}
	return result(opts, "years=%d modalities=%d departments=%d provinces=%d",
		len(opts.Years), len(opts.Modalities), len(opts.Departments), len(opts.Provinces)), nil
}

func (t *tools) filterRows(ctx context.Context, req mcp.CallToolRequest, in FilterRowsInput) (*mcp.CallToolResult, error) {
	var (
		sel      dataset.Selection
		id       = in.DatasetID
		offset   int
		pageSize int
	)
	if strings.TrimSpace(in.Cursor) != "" {
		c, err := pagination.Resume(in.Cursor, &sel)
		if err != nil {
			return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
		}
		id, offset, pageSize = c.Did, c.Off, t.deps.Limits.ClampPageSize(c.Ps)
	} else {
		var bad *mcp.CallToolResult
		if sel, bad = validateInput(in, in.SelectionInput); bad != nil {
			return bad, nil
		}
		pageSize = t.deps.Limits.ClampPageSize(in.PageSize)
	}

	filtered, h, err := t.deps.Service.Filtered(ctx, id, sel)
	if err != nil {
		return t.fail(ctx, ToolFilterRows, err), nil
	}
	raw := dataset.SortedView(filtered).Raw()
	total := len(raw.Rows)
	if offset > total {
		return mcperr.New(mcperr.CursorInvalid, "cursor offset is past the end of the selection"), nil
	}
	end := min(offset+pageSize, total)
	budget := t.reg.PayloadBudget(t.deps.Limits.MaxPayloadBytes)
	rows := fitRows(raw.Header, raw.Rows[offset:end], budget)

	out := FilterRowsOutput{
		DatasetID: h.ID,
		Columns:   raw.Header,
		Rows:      rows,
		Meta: PageMeta{
			Total:    total,
			Offset:   offset,
			Returned: len(rows),
		},
	}
	next := pagination.NextOffset(offset, len(rows))
	if next < total {
		token, err := pagination.Next(h.ID, next, pageSize, sel)
		if err != nil {
			return mcperr.New(mcperr.CursorBuildFailed, err.Error()), nil
		}
		out.Meta.Truncated = true
		out.Meta.NextCursor = token
	}
	return result(out, "rows %d-%d of %d truncated=%t", offset+1, offset+len(rows), total, out.Meta.Truncated), nil
}

// fitRows keeps the leading rows whose JSON encoding fits in budget bytes,
// always returning at least one row when any is available.
func fitRows(header []string, rows [][]string, budget int) [][]string {
	if budget <= 0 || len(rows) == 0 {
		return rows
	}
	used := jsonSize(header)
	for i, r := range rows {
		used += jsonSize(r) + 1
		if used > budget && i > 0 {
			return rows[:i]
		}
	}
	return rows
}

func jsonSize(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

func (t *tools) refreshData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, h, err := t.deps.Service.Refresh(ctx)
	if err != nil {
		return t.failAs(ctx, ToolRefreshData, err, mcperr.FetchFailed), nil
	}
	out := RefreshDataOutput{
		URL:       res.URL,
		Path:      res.Path,
		Bytes:     res.Bytes,
		Removed:   res.Removed,
		DatasetID: h.ID,
		Rows:      h.Table.Len(),
	}
	return result(out, "downloaded %s (%d bytes) dataset_id=%s rows=%d", filepath.Base(out.Path), out.Bytes, out.DatasetID, out.Rows), nil
}

func (t *tools) exportReport(ctx context.Context, req mcp.CallToolRequest, in ExportReportInput) (*mcp.CallToolResult, error) {
	sel, bad := validateInput(in, in.SelectionInput)
	if bad != nil {
		return bad, nil
	}
	if !strings.EqualFold(filepath.Ext(in.Path), ".xlsx") {
		return mcperr.New(mcperr.Validation, "path must end in .xlsx"), nil
	}
	target := in.Path
	if t.deps.Security != nil {
		safe, err := t.deps.Security.ValidateWritePath(in.Path)
		if err != nil {
			return t.fail(ctx, ToolExportReport, err), nil
		}
		target = safe
	}

	snap, err := t.deps.Service.Snapshot(ctx, in.DatasetID, sel)
	if err != nil {
		return t.fail(ctx, ToolExportReport, err), nil
	}
	filtered, _, err := t.deps.Service.Filtered(ctx, snap.HandleID, sel)
	if err != nil {
		return t.fail(ctx, ToolExportReport, err), nil
	}
	err = report.WriteFile(target, report.Contents{
		Snapshot:    snap,
		Table:       dataset.SortedView(filtered),
		GeneratedAt: time.Now(),
		Charts:      in.Charts,
	})
	if err != nil {
		return t.failAs(ctx, ToolExportReport, err, mcperr.ExportFailed), nil
	}
	out := ExportReportOutput{Path: target, DatasetID: snap.HandleID, Rows: snap.Rows, Total: snap.KPIs.Total}
	return result(out, "report written to %s rows=%d total=%d", out.Path, out.Rows, out.Total), nil
}

// failAs is fail with fallback replacing the generic analysis code.
func (t *tools) failAs(ctx context.Context, tool string, err error, fallback mcperr.Code) *mcp.CallToolResult {
	if dashboard.Classify(err) == mcperr.AnalysisFailed {
		t.logger.Debug().Ctx(ctx).Str("tool", tool).Str("code", string(fallback)).Err(err).Msg("tool failed")
		return mcperr.New(fallback, err.Error())
	}
	return t.fail(ctx, tool, err)
}
