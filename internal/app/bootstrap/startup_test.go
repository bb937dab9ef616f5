package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/coderoom/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:           testutil.MongoURI(),
		MongoDatabase:      "coderoom",
		SessionKey:         "0123456789abcdef0123456789abcdef",
		SessionName:        "coderoom-session",
		SessionMaxAge:      time.Hour,
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		JWTExpiry:          time.Hour,
		WSEventsPerSecond:  20,
		VideoReapInterval:  time.Minute,
		ExecTimeout:        10 * time.Second,
		AuditLogAuth:       "all",
		AuditLogCollab:     "all",
		LoginRateLimit:     100,
		LoginUserRateLimit: 100,
	}
}

func TestValidateApp(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", "prod", func(*AppConfig) {}, false},
		{"short jwt secret in prod", "prod", func(c *AppConfig) { c.JWTSecret = "short" }, true},
		{"short jwt secret in dev", "dev", func(c *AppConfig) { c.JWTSecret = "short" }, false},
		{"missing database", "dev", func(c *AppConfig) { c.MongoDatabase = " " }, true},
		{"zero jwt expiry", "dev", func(c *AppConfig) { c.JWTExpiry = 0 }, true},
		{"negative event rate", "dev", func(c *AppConfig) { c.WSEventsPerSecond = -1 }, true},
		{"zero event rate", "dev", func(c *AppConfig) { c.WSEventsPerSecond = 0 }, false},
		{"zero reap interval", "dev", func(c *AppConfig) { c.VideoReapInterval = 0 }, true},
		{"zero login limit", "dev", func(c *AppConfig) { c.LoginRateLimit = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateApp(tt.env, cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateApp() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.example , ,http://b.example,")
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "http://b.example" {
		t.Errorf("splitList: %q", got)
	}
	if splitList("") != nil {
		t.Error("empty input should give nil")
	}
}

// TestLifecycle runs every hook against a scratch database and drives the
// handler through registration, project creation, health and metrics.
func TestLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	coreCfg := &config.CoreConfig{Env: "dev"}
	appCfg := validConfig()
	appCfg.MongoDatabase = db.Name()
	logger := testLogger()

	if err := ValidateConfig(coreCfg, appCfg, logger); err != nil {
		t.Fatalf("ValidateConfig failed: %v", err)
	}
	deps, err := ConnectDB(ctx, coreCfg, appCfg, logger)
	if err != nil {
		t.Fatalf("ConnectDB failed: %v", err)
	}
	if err := EnsureSchema(ctx, coreCfg, appCfg, deps, logger); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if err := Startup(ctx, coreCfg, appCfg, deps, logger); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	handler, err := BuildHandler(coreCfg, appCfg, deps, logger)
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}
	srv := httptest.NewServer(handler)
	defer func() {
		srv.Close()
		if err := Shutdown(context.Background(), coreCfg, appCfg, deps, logger); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
	}()

	resp := post(t, srv.URL+"/api/auth/register", "", `{"username":"ada","password":"correct-horse"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	var reg struct {
		Token string `json:"token"`
	}
	decode(t, resp, &reg)
	if reg.Token == "" {
		t.Fatal("register returned no token")
	}

	resp = post(t, srv.URL+"/api/code", reg.Token, `{"title":"hello","content":"print(1)","language":"python"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post(t, srv.URL+"/api/code/run", reg.Token, `{"content":"print(1)","language":"python"}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("run with exec disabled: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = post(t, srv.URL+"/api/code", "", `{"title":"x"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous create: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	for path, want := range map[string]string{
		"/health":  `"database":"connected"`,
		"/metrics": "coderoom_realtime_connections",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), want) {
			t.Errorf("GET %s: status %d body %q", path, resp.StatusCode, body)
		}
	}
}

func post(t *testing.T, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
