package registry

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinodismyname/sidpol/internal/dashboard"
)

// Features are the optional capabilities a running server may lack.
type Features struct {
	SQL     bool // store attached and store.enable_sql set
	Refresh bool // portal fetcher configured
}

// FeaturesOf reads the capabilities of svc.
func FeaturesOf(svc *dashboard.Service) Features {
	return Features{SQL: svc.SQLEnabled(), Refresh: svc.CanRefresh()}
}

// requires lists the feature gating each optional tool.
var requires = map[string]func(Features) bool{
	ToolQuerySQL:    func(f Features) bool { return f.SQL },
	ToolRefreshData: func(f Features) bool { return f.Refresh },
}

// ToolFilter drops tools whose feature is off from tools/list, so clients
// never see a tool that can only fail.
type ToolFilter struct {
	features Features
}

func NewToolFilter(f Features) *ToolFilter {
	return &ToolFilter{features: f}
}

// Visible reports whether name is listed.
func (f *ToolFilter) Visible(name string) bool {
	gate, ok := requires[name]
	return !ok || gate(f.features)
}

// FilterTools matches server.ToolFilterFunc.
func (f *ToolFilter) FilterTools(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	out := tools[:0:0]
	for _, t := range tools {
		if f.Visible(t.Name) {
			out = append(out, t)
		}
	}
	return out
}
