// Package mcperr holds the error codes shared by the MCP tools and the HTTP
// API, with the guidance text returned to clients.
//
// Tool errors are rendered as "CODE: message | nextSteps: a; b" so clients
// that only surface the message string still see what to do next.
package mcperr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code is a canonical error code.
type Code string

const (
	// input
	Validation        Code = "VALIDATION"
	InvalidHandle     Code = "INVALID_HANDLE"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// limits
	BusyResource    Code = "BUSY_RESOURCE"
	Timeout         Code = "TIMEOUT"
	LimitExceeded   Code = "LIMIT_EXCEEDED"
	PayloadTooLarge Code = "PAYLOAD_TOO_LARGE"

	// sources, store and exports
	LoadFailed   Code = "LOAD_FAILED"
	SourceAbsent Code = "SOURCE_NOT_FOUND"
	FetchFailed  Code = "FETCH_FAILED"
	ExportFailed Code = "EXPORT_FAILED"
	QueryFailed  Code = "QUERY_FAILED"
	SQLDisabled  Code = "SQL_DISABLED"
	ReadOnlySQL  Code = "READ_ONLY_SQL"

	// analysis
	AnalysisFailed Code = "ANALYSIS_FAILED"
	NoResult       Code = "NO_RESULT"

	// files
	NotTabular        Code = "NOT_TABULAR"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry is the guidance attached to a code.
type Entry struct {
	Code      Code
	Message   string
	Status    int // HTTP status used by the JSON API
	Retryable bool
	NextSteps []string
}

func retry(c Code, status int, msg string, steps ...string) Entry {
	return Entry{Code: c, Message: msg, Status: status, Retryable: true, NextSteps: steps}
}

func final(c Code, status int, msg string, steps ...string) Entry {
	return Entry{Code: c, Message: msg, Status: status, NextSteps: steps}
}

var catalog = index(
	retry(Validation, http.StatusBadRequest, "invalid inputs",
		"Correct the inputs per schema and retry", "Call list_options for valid years, modalities and departments"),
	retry(InvalidHandle, http.StatusNotFound, "dataset handle not found or expired",
		"Call load_dataset again and retry with the new dataset_id"),
	retry(CursorInvalid, http.StatusBadRequest, "cursor is invalid for current context",
		"Restart pagination from the first page", "Do not change the selection between pages"),
	retry(CursorBuildFailed, http.StatusInternalServerError, "failed to encode next page cursor",
		"Retry or use a smaller page_size"),

	retry(BusyResource, http.StatusTooManyRequests, "concurrent request limit reached",
		"Retry after a short delay"),
	retry(Timeout, http.StatusGatewayTimeout, "operation exceeded configured time limit",
		"Narrow the selection or increase the timeout"),
	retry(LimitExceeded, http.StatusRequestEntityTooLarge, "operation exceeded configured limits",
		"Narrow the selection or lower page_size"),
	retry(PayloadTooLarge, http.StatusRequestEntityTooLarge, "payload exceeds configured size",
		"Use filter_rows with a smaller page_size"),

	retry(LoadFailed, http.StatusInternalServerError, "failed to load dataset",
		"Verify path, permissions, and format"),
	retry(SourceAbsent, http.StatusNotFound, "no dataset file found",
		"Call refresh_data to download the latest dataset", "Pass an explicit path inside an allowed directory"),
	retry(FetchFailed, http.StatusBadGateway, "failed to download dataset",
		"Check network access to the open data portal and retry"),
	retry(ExportFailed, http.StatusInternalServerError, "failed to export report",
		"Choose a writable .xlsx path inside an allowed directory"),
	retry(QueryFailed, http.StatusBadRequest, "query failed",
		"Check table and column names (sources, locations, modalities, facts, denuncias)"),
	final(SQLDisabled, http.StatusForbidden, "free-text SQL is disabled",
		"Set store.enable_sql (SIDPOL_STORE_ENABLE_SQL=true) to enable query_sql"),
	retry(ReadOnlySQL, http.StatusBadRequest, "only a single SELECT statement is allowed",
		"Rewrite the query as one SELECT or WITH ... SELECT statement"),

	retry(AnalysisFailed, http.StatusInternalServerError, "analysis failed",
		"Verify the selection and retry"),
	retry(NoResult, http.StatusNotFound, "not enough data for this analysis",
		"Widen the selection (fewer filters, more months)"),

	final(NotTabular, http.StatusBadRequest, "file is not a table",
		"Provide a CSV or XLSX file with a header row"),
	final(UnsupportedFormat, http.StatusBadRequest, "unsupported file format",
		"Convert to .csv or .xlsx and retry"),
	final(PermissionDenied, http.StatusForbidden, "insufficient permissions to access path",
		"Adjust permissions or choose an allowed directory"),
)

func index(entries ...Entry) map[Code]Entry {
	m := make(map[Code]Entry, len(entries))
	for _, e := range entries {
		m[e.Code] = e
	}
	return m
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// HTTPStatus is the status the JSON API answers with for code; unknown codes
// are server errors.
func HTTPStatus(code Code) int {
	if e, ok := catalog[code]; ok {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Text renders code and msg with the catalog guidance. An empty msg falls
// back to the standard message; unknown codes are passed through.
func Text(code Code, msg string) string {
	msg = strings.TrimSpace(msg)
	e, ok := catalog[code]
	switch {
	case !ok && msg == "":
		return string(code)
	case !ok:
		return string(code) + ": " + msg
	case msg == "":
		msg = e.Message
	}
	if len(e.NextSteps) == 0 {
		return fmt.Sprintf("%s: %s", code, msg)
	}
	return fmt.Sprintf("%s: %s | nextSteps: %s", code, msg, strings.Join(e.NextSteps, "; "))
}

// CodeOf returns the code prefix of a rendered message, or "" when absent.
func CodeOf(text string) Code {
	head, _, ok := strings.Cut(text, ":")
	if !ok {
		return ""
	}
	return Code(strings.TrimSpace(head))
}

// New returns a tool error result for code. An empty message uses the
// catalog default.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(Text(code, message))
}

// Wrapf is New with a formatted message.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return New(code, fmt.Sprintf(format, args...))
}

// FromText turns a "CODE: message" string, such as the output of the
// validation package, into a tool error result. Text without a code prefix
// is reported as a validation error.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	head, msg, ok := strings.Cut(t, ":")
	if !ok {
		return New(Validation, t)
	}
	return New(Code(strings.TrimSpace(head)), msg)
}
