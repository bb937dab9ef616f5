package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/coderoom/internal/app/features/health"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/dalemusser/coderoom/internal/testutil"
	"go.uber.org/zap"
)

type response struct {
	Status   string          `json:"status"`
	Database string          `json:"database"`
	Realtime *realtime.Stats `json:"realtime"`
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	reg := realtime.NewRegistry(realtime.Options{})
	defer reg.Close()
	reg.Register(realtime.NewConn("c1", 0))
	reg.Identify("c1", "u1")
	reg.Join("c1", "room")

	handler := health.NewHandler(db.Client(), reg, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var got response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Status != "ok" || got.Database != "connected" {
		t.Errorf("status=%q database=%q", got.Status, got.Database)
	}
	if got.Realtime == nil || *got.Realtime != (realtime.Stats{Connections: 1, Rooms: 1, Users: 1}) {
		t.Errorf("realtime: %+v", got.Realtime)
	}
}

func TestServe_NoClient(t *testing.T) {
	handler := health.NewHandler(nil, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	var got response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Status != "error" || got.Realtime != nil {
		t.Errorf("response: %+v", got)
	}
}
