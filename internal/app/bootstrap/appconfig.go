// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (CODEROOM_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers the framework-level settings: ports, TLS, logging level and
// request limits.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: coderoom-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bearer tokens for API and websocket clients
	JWTSecret string
	JWTExpiry time.Duration

	// Browser origins allowed to call the API with credentials
	CORSAllowedOrigins []string

	// Realtime transport
	WSAllowAnonymous  bool     // accept websocket connections without a signed-in user
	WSEventsPerSecond int      // inbound frames per connection per second (0 disables limiting)
	WSAllowedOrigins  []string // websocket Origin allow-list; empty means same-origin only
	VideoReapInterval time.Duration

	// Code execution
	ExecEnabled bool
	ExecTimeout time.Duration

	// Audit logging: "all" (db+log), "db", "log", or "off"
	AuditLogAuth   string
	AuditLogCollab string

	// Login throttling
	LoginRateLimit     int // attempts per minute per client IP
	LoginUserRateLimit int // attempts per five minutes per username
}
