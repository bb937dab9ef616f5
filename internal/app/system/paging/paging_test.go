package paging_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/coderoom/internal/app/system/paging"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		def   int
		want  int64
	}{
		{"missing uses default", "", 100, 100},
		{"zero default uses page size", "", 0, paging.PageSize},
		{"explicit", "?limit=7", 100, 7},
		{"negative", "?limit=-3", 100, 100},
		{"garbage", "?limit=abc", 100, 100},
		{"clamped", "?limit=100000", 100, paging.MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/x"+tt.query, nil)
			if got := paging.ParseLimit(r, tt.def); got != tt.want {
				t.Errorf("ParseLimit(%q, %d) = %d, want %d", tt.query, tt.def, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := paging.Clamp(0); got != 1 {
		t.Errorf("Clamp(0) = %d", got)
	}
	if got := paging.Clamp(paging.MaxPageSize + 1); got != paging.MaxPageSize {
		t.Errorf("Clamp(max+1) = %d", got)
	}
	if got := paging.Clamp(42); got != 42 {
		t.Errorf("Clamp(42) = %d", got)
	}
}
