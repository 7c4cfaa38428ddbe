package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vinodismyname/sidpol/internal/telemetry"
	"github.com/vinodismyname/sidpol/pkg/mcperr"
)

var errToolResult = errors.New("tool returned an error result")

// Middleware wraps every tool call: it takes a request slot from the
// Controller, bounds the call with a deadline and reports the outcome to an
// Observer. Tools such as refresh_data that download from the portal can be
// given a longer deadline than the default operation timeout.
type Middleware struct {
	ctrl      *Controller
	obs       telemetry.Observer
	deadlines map[string]time.Duration
}

// NewMiddleware binds a Middleware to ctrl. obs may be nil.
func NewMiddleware(ctrl *Controller, obs telemetry.Observer) *Middleware {
	if obs == nil {
		obs = telemetry.Nop
	}
	return &Middleware{ctrl: ctrl, obs: obs, deadlines: map[string]time.Duration{}}
}

// WithToolTimeout overrides the operation timeout for one tool. A zero or
// negative d removes the deadline for that tool. Not safe to call once the
// server is serving.
func (m *Middleware) WithToolTimeout(tool string, d time.Duration) *Middleware {
	m.deadlines[tool] = d
	return m
}

// Timeout is the deadline applied to calls of tool.
func (m *Middleware) Timeout(tool string) time.Duration {
	if d, ok := m.deadlines[tool]; ok {
		return d
	}
	return m.ctrl.limits.OperationTimeout
}

// ToolMiddleware implements server.ToolHandlerMiddleware.
func (m *Middleware) ToolMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tool := req.Params.Name
		done := telemetry.Track(ctx, m.obs, "tool."+tool, 0)

		if err := m.acquire(ctx); err != nil {
			done(false, err)
			return mcperr.Wrapf(mcperr.BusyResource, "%d requests already running", m.ctrl.limits.MaxConcurrentRequests), nil
		}
		defer m.ctrl.ReleaseRequest()

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if d := m.Timeout(tool); d > 0 {
			callCtx, cancel = context.WithTimeout(ctx, d)
		}
		defer cancel()

		res, err := next(callCtx, req)
		switch {
		case errors.Is(err, context.DeadlineExceeded),
			err == nil && res == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded):
			done(false, context.DeadlineExceeded)
			return mcperr.Wrapf(mcperr.Timeout, "%s exceeded %s", tool, m.Timeout(tool)), nil
		case err == nil && res != nil && res.IsError:
			done(false, errToolResult)
		default:
			done(err == nil, err)
		}
		return res, err
	}
}

func (m *Middleware) acquire(ctx context.Context) error {
	if d := m.ctrl.limits.AcquireRequestTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return m.ctrl.AcquireRequest(ctx)
}
