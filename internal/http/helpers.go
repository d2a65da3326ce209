package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

// requestIDKey is the context key for the per-request trace ID.
const requestIDKey contextKey = "request_id"

// parseYearBudget extracts year and budget from query or form parameters.
// Year defaults to the current year; budget defaults to 0 (no explicit
// selection).
func parseYearBudget(r *http.Request) (year int, budgetID int64) {
	year = time.Now().Year()

	get := func(key string) string {
		if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
			return v
		}
		return strings.TrimSpace(r.FormValue(key))
	}

	if v := get("year"); v != "" {
		if y, err := strconv.Atoi(v); err == nil && y > 0 {
			year = y
		}
	}
	if v := get("budget"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			budgetID = id
		}
	}

	return year, budgetID
}

// formatDollars formats cents as a currency string (e.g., "$12.34").
func formatDollars(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	dollars := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(dollars, 10) + "." + fmt.Sprintf("%02d", rem)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// snapshotKey builds the cache key for a year and budget selection.
func snapshotKey(year int, budgetID int64) string {
	return strconv.Itoa(year) + "-" + strconv.FormatInt(budgetID, 10)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formatID renders a row id for response fragments.
func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
