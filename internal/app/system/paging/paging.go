// internal/app/system/paging/paging.go
// Package paging parses the list-size parameters of JSON list endpoints.
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by a list endpoint.
const PageSize = 50

// MaxPageSize bounds any caller-supplied limit.
const MaxPageSize = 200

// ParseLimit reads the "limit" query parameter. Missing or invalid values
// yield def; values above MaxPageSize are clamped.
func ParseLimit(r *http.Request, def int) int64 {
	if def <= 0 {
		def = PageSize
	}
	n, err := strconv.Atoi(query.Get(r, "limit"))
	if err != nil || n < 1 {
		n = def
	}
	return int64(Clamp(n))
}

// Clamp bounds n to [1, MaxPageSize].
func Clamp(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}
