package supabase

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ============================================================
// PostgREST helpers
// ============================================================

// statusError is a non-2xx PostgREST response.
type statusError struct {
	Method string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase %s returned %d: %s", e.Method, e.Status, e.Body)
}

// retryable reports whether another attempt may succeed.
func (e *statusError) retryable() bool {
	switch e.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.Status >= 500
}

// eq builds a PostgREST equality filter with an escaped value.
func eq(column, value string) string {
	return column + "=eq." + url.QueryEscape(value)
}

// query joins PostgREST filters and modifiers into a table path.
func query(table string, params ...string) string {
	if len(params) == 0 {
		return table
	}
	return table + "?" + strings.Join(params, "&")
}

// isEmpty reports whether a PostgREST body carries no rows.
func isEmpty(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	return trimmed == "" || trimmed == "[]"
}
