package mcperr

import (
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNew_AppendsGuidance(t *testing.T) {
	msg := text(t, New(InvalidHandle, ""))
	require.Equal(t, "INVALID_HANDLE: dataset handle not found or expired | nextSteps: Call load_dataset again and retry with the new dataset_id", msg)
	require.Equal(t, InvalidHandle, CodeOf(msg))
}

func TestFromText(t *testing.T) {
	msg := text(t, FromText("VALIDATION: year must satisfy min=0"))
	require.Contains(t, msg, "VALIDATION: year must satisfy min=0 | nextSteps:")

	require.Equal(t, "CUSTOM: kept as is", text(t, FromText("CUSTOM: kept as is")))
	require.Equal(t, Validation, CodeOf(text(t, FromText("no prefix here"))))
	require.Contains(t, text(t, FromText("")), "invalid inputs")

	msg = text(t, Wrapf(QueryFailed, "no such table: %s", "foo"))
	require.Contains(t, msg, "no such table: foo")
}

func TestCatalogEntries(t *testing.T) {
	e, ok := Lookup(SQLDisabled)
	require.True(t, ok)
	require.False(t, e.Retryable)
	for code, e := range catalog {
		require.Equal(t, code, e.Code)
		require.NotEmpty(t, e.Message, code)
		require.NotEmpty(t, e.NextSteps, code)
		require.NotZero(t, e.Status, code)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		InvalidHandle:     http.StatusNotFound,
		SourceAbsent:      http.StatusNotFound,
		PermissionDenied:  http.StatusForbidden,
		SQLDisabled:       http.StatusForbidden,
		ReadOnlySQL:       http.StatusBadRequest,
		UnsupportedFormat: http.StatusBadRequest,
		Timeout:           http.StatusGatewayTimeout,
		FetchFailed:       http.StatusBadGateway,
		BusyResource:      http.StatusTooManyRequests,
		AnalysisFailed:    http.StatusInternalServerError,
		Code("UNKNOWN"):   http.StatusInternalServerError,
	}
	for code, want := range cases {
		require.Equal(t, want, HTTPStatus(code), code)
	}
}
