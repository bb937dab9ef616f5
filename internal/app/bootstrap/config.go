// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// minJWTSecret is the shortest signing secret accepted in production.
const minJWTSecret = 32

// appConfigKeys defines the configuration keys for coderoom.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CODEROOM_MONGO_URI, CODEROOM_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "coderoom", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "coderoom-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "168h", Desc: "Session cookie lifetime (e.g., 24h, 168h)"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "dev-only-jwt-secret-change-me-0123456789", Desc: "HMAC secret for API tokens (32+ chars in production)"},
	{Name: "jwt_expiry", Default: "24h", Desc: "API token lifetime"},

	// Browser clients
	{Name: "cors_allowed_origins", Default: "http://localhost:3000", Desc: "Comma-separated origins allowed to call the API"},

	// Realtime
	{Name: "ws_allow_anonymous", Default: false, Desc: "Accept websocket connections without a signed-in user"},
	{Name: "ws_events_per_second", Default: 20, Desc: "Inbound realtime events per connection per second (0 disables)"},
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated websocket origins; blank means same-origin, * allows any"},
	{Name: "video_reap_interval", Default: "1m", Desc: "How often abandoned video sessions are reconciled"},

	// Code execution
	{Name: "exec_enabled", Default: false, Desc: "Enable server-side code execution (runs untrusted code)"},
	{Name: "exec_timeout", Default: "10s", Desc: "Wall-clock limit for one code run"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_collab", Default: "all", Desc: "Collaboration event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Login throttling
	{Name: "login_rate_limit", Default: 10, Desc: "Login attempts per minute per client IP"},
	{Name: "login_user_rate_limit", Default: 5, Desc: "Login attempts per five minutes per username"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CODEROOM_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CODEROOM", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 7*24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTExpiry: appValues.Duration("jwt_expiry", 24*time.Hour),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),

		WSAllowAnonymous:  appValues.Bool("ws_allow_anonymous"),
		WSEventsPerSecond: appValues.Int("ws_events_per_second"),
		WSAllowedOrigins:  splitList(appValues.String("ws_allowed_origins")),
		VideoReapInterval: appValues.Duration("video_reap_interval", time.Minute),

		ExecEnabled: appValues.Bool("exec_enabled"),
		ExecTimeout: appValues.Duration("exec_timeout", 10*time.Second),

		AuditLogAuth:   appValues.String("audit_log_auth"),
		AuditLogCollab: appValues.String("audit_log_collab"),

		LoginRateLimit:     appValues.Int("login_rate_limit"),
		LoginUserRateLimit: appValues.Int("login_user_rate_limit"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here so a typo fails before connecting.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	return validateApp(coreCfg.Env, appCfg)
}

func validateApp(env string, appCfg AppConfig) error {
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		return errors.New("mongo_database is required")
	}
	if env == "prod" && len(appCfg.JWTSecret) < minJWTSecret {
		return fmt.Errorf("jwt_secret must be at least %d characters in production", minJWTSecret)
	}
	if appCfg.JWTExpiry <= 0 || appCfg.SessionMaxAge <= 0 {
		return errors.New("jwt_expiry and session_max_age must be positive")
	}
	if appCfg.WSEventsPerSecond < 0 {
		return errors.New("ws_events_per_second must not be negative")
	}
	if appCfg.VideoReapInterval <= 0 || appCfg.ExecTimeout <= 0 {
		return errors.New("video_reap_interval and exec_timeout must be positive")
	}
	if appCfg.LoginRateLimit <= 0 || appCfg.LoginUserRateLimit <= 0 {
		return errors.New("login_rate_limit and login_user_rate_limit must be positive")
	}
	return nil
}

// splitList parses a comma-separated config value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
