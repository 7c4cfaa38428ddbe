package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vinodismyname/sidpol/internal/charts"
	"github.com/vinodismyname/sidpol/internal/dashboard"
	"github.com/vinodismyname/sidpol/internal/dataset"
	"github.com/vinodismyname/sidpol/internal/report"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
	"github.com/vinodismyname/sidpol/pkg/validation"
	"github.com/vinodismyname/sidpol/pkg/version"
)

type Handler struct {
	Svc          *dashboard.Service
	MaxQueryRows int
	Logger       zerolog.Logger
}

func NewHandler(svc *dashboard.Service, maxQueryRows int, logger zerolog.Logger) *Handler {
	return &Handler{Svc: svc, MaxQueryRows: maxQueryRows, Logger: logger}
}

// NewRouter builds a gin engine with the API mounted.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.logRequests())
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})
	r.GET("/health", h.health)
	h.RegisterRoutes(r.Group("/api"))
	return r
}

// RegisterRoutes mounts the dashboard endpoints. Every GET accepts the
// selection query parameters and an optional handle id.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/load", h.load)
	rg.GET("/options", h.options)
	rg.GET("/kpis", h.kpis)
	rg.GET("/aggregates/:kind", h.aggregate)
	rg.GET("/trend", h.trend)
	rg.GET("/growth/:axis", h.growth)
	rg.GET("/correlation", h.correlation)
	rg.GET("/snapshot", h.snapshot)
	rg.GET("/charts/:file", h.chart) // <kind>.png
	rg.GET("/report.xlsx", h.report)
	rg.POST("/query", h.query)
}

func (h *Handler) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.Logger.Debug().Ctx(c.Request.Context()).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Build(), "sql": h.Svc.SQLEnabled()})
}

type loadRequest struct {
	Path string `json:"path" validate:"omitempty,source_ext"`
}

func (h *Handler) load(c *gin.Context) {
	var req loadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
			return
		}
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	hd, err := h.Svc.Load(c.Request.Context(), req.Path)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"handle_id": hd.ID,
		"source":    hd.Source,
		"rows":      hd.Table.Len(),
		"columns":   hd.Table.Columns,
	})
}

func (h *Handler) options(c *gin.Context) {
	opts, err := h.Svc.Options(c.Request.Context(), c.Query("handle"), c.Query("department"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (h *Handler) kpis(c *gin.Context) {
	sel, ok := selection(c)
	if !ok {
		return
	}
	k, err := h.Svc.KPIs(c.Request.Context(), c.Query("handle"), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, k)
}

func (h *Handler) aggregate(c *gin.Context) {
	kind := c.Param("kind")
	req := struct {
		Kind string `validate:"agg_kind"`
		N    int    `validate:"min=0,max=1000"`
	}{Kind: kind, N: parseInt(c.Query("n"), 0)}
	if msg := validation.ValidateStruct(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	sel, ok := selection(c)
	if !ok {
		return
	}
	rows, err := h.Svc.Aggregate(c.Request.Context(), c.Query("handle"), sel, kind, req.N)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "rows": rows})
}

func (h *Handler) trend(c *gin.Context) {
	sel, ok := selection(c)
	if !ok {
		return
	}
	series, ok, err := h.Svc.Trend(c.Request.Context(), c.Query("handle"), sel, parseInt(c.Query("horizon"), 0))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"series": series, "ok": ok})
}

func (h *Handler) growth(c *gin.Context) {
	axis := c.Param("axis")
	req := struct {
		Axis string `validate:"growth_axis"`
	}{axis}
	if msg := validation.ValidateStruct(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	sel, ok := selection(c)
	if !ok {
		return
	}
	rows, ok, err := h.Svc.Growth(c.Request.Context(), c.Query("handle"), sel, axis)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"axis": axis, "rows": rows, "ok": ok})
}

func (h *Handler) correlation(c *gin.Context) {
	sel, ok := selection(c)
	if !ok {
		return
	}
	m, ok, err := h.Svc.Correlation(c.Request.Context(), c.Query("handle"), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"ok": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "matrix": m})
}

func (h *Handler) snapshot(c *gin.Context) {
	sel, ok := selection(c)
	if !ok {
		return
	}
	snap, err := h.Svc.Snapshot(c.Request.Context(), c.Query("handle"), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) chart(c *gin.Context) {
	kind, isPNG := strings.CutSuffix(c.Param("file"), ".png")
	if !isPNG {
		c.JSON(http.StatusNotFound, gin.H{"error": "charts are served as <kind>.png"})
		return
	}
	sel, ok := selection(c)
	if !ok {
		return
	}
	snap, err := h.Svc.Snapshot(c.Request.Context(), c.Query("handle"), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	img, err := charts.Render(kind, charts.Data{ByModality: snap.ByModality, Trend: snap.Trend, TopDepartments: snap.TopDepartments})
	switch {
	case errors.Is(err, charts.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": string(mcperr.NoResult)})
		return
	case err != nil:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func (h *Handler) report(c *gin.Context) {
	sel, ok := selection(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	snap, err := h.Svc.Snapshot(ctx, c.Query("handle"), sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	t, _, err := h.Svc.Filtered(ctx, snap.HandleID, sel)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="reporte_denuncias.xlsx"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := report.Write(c.Writer, report.Contents{Snapshot: snap, Table: dataset.SortedView(t), Charts: c.Query("charts") == "1"}); err != nil {
		h.Logger.Error().Ctx(ctx).Err(err).Msg("report export failed")
	}
}

type queryRequest struct {
	SQL string `json:"sql" validate:"required"`
}

func (h *Handler) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	if msg := validation.ValidateStruct(req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	res, err := h.Svc.Query(c.Request.Context(), req.SQL, h.MaxQueryRows)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// fail answers with the catalog status and code for err.
func (h *Handler) fail(c *gin.Context, err error) {
	code := dashboard.Classify(err)
	status := mcperr.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Ctx(c.Request.Context()).Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
