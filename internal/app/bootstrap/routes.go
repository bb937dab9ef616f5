// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/dalemusser/coderoom/internal/app/features/health"
	loginfeature "github.com/dalemusser/coderoom/internal/app/features/login"
	logoutfeature "github.com/dalemusser/coderoom/internal/app/features/logout"
	metricsfeature "github.com/dalemusser/coderoom/internal/app/features/metrics"
	projectsfeature "github.com/dalemusser/coderoom/internal/app/features/projects"
	registerfeature "github.com/dalemusser/coderoom/internal/app/features/register"
	runfeature "github.com/dalemusser/coderoom/internal/app/features/run"
	userinfofeature "github.com/dalemusser/coderoom/internal/app/features/userinfo"
	videofeature "github.com/dalemusser/coderoom/internal/app/features/video"
	wsfeature "github.com/dalemusser/coderoom/internal/app/features/ws"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/auth"
	"github.com/dalemusser/coderoom/internal/app/system/executor"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. Everything is JSON; the browser editor
// is served separately and reaches the API through CORS.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	sessionMgr.SetTokens(auth.NewTokens(appCfg.JWTSecret, appCfg.JWTExpiry))

	// Re-read the user on each request so deleted accounts lose access at once.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase))

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global auth middleware: loads SessionUser into context from a bearer
	// token or the session cookie.
	r.Use(sessionMgr.LoadSessionUser)

	// Operations
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, svc.Registry, logger)))
	r.Mount("/metrics", metricsfeature.Routes(svc.Prometheus))

	// Realtime
	wsHandler := wsfeature.NewHandler(wsfeature.Config{
		Registry:        svc.Registry,
		Router:          svc.Router,
		Sessions:        sessionMgr,
		AllowAnonymous:  appCfg.WSAllowAnonymous,
		EventsPerSecond: float64(appCfg.WSEventsPerSecond),
		AllowedOrigins:  appCfg.WSAllowedOrigins,
		Metrics:         svc.Metrics,
		Log:             logger.Named("ws"),
	})
	r.Mount("/ws", wsfeature.Routes(wsHandler))

	// Authentication
	registerHandler := registerfeature.NewHandler(svc.Users, sessionMgr, svc.Audit, logger)
	r.Mount("/api/auth/register", registerfeature.Routes(registerHandler))

	loginHandler := loginfeature.NewHandler(svc.Users, sessionMgr, svc.LoginLimiter, svc.Audit, logger)
	r.Mount("/api/auth/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.Audit, logger)
	r.Mount("/api/auth/logout", logoutfeature.Routes(logoutHandler))

	userinfoHandler := userinfofeature.NewHandler(svc.Users, logger)
	r.Mount("/api/users", userinfofeature.Routes(userinfoHandler, sessionMgr))

	// Projects and code execution. /run is matched before the {id} routes.
	runner := &executor.Runner{Log: logger.Named("executor"), Metrics: svc.Metrics}
	runHandler := runfeature.NewHandler(runner, svc.Projects, appCfg.ExecEnabled, logger)
	projectsHandler := projectsfeature.NewHandler(svc.Projects, svc.Workflow, svc.Registry, svc.Events, logger)
	r.Route("/api/code", func(r chi.Router) {
		r.Mount("/run", runfeature.Routes(runHandler, sessionMgr))
		r.Mount("/", projectsfeature.Routes(projectsHandler, sessionMgr))
	})

	videoHandler := videofeature.NewHandler(svc.Video, logger)
	r.Mount("/api/video", videofeature.Routes(videoHandler, sessionMgr))

	return r, nil
}
