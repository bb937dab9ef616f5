// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/coderoom/internal/app/collab"
	auditstore "github.com/dalemusser/coderoom/internal/app/store/audit"
	projectstore "github.com/dalemusser/coderoom/internal/app/store/projects"
	userstore "github.com/dalemusser/coderoom/internal/app/store/users"
	"github.com/dalemusser/coderoom/internal/app/system/auditlog"
	"github.com/dalemusser/coderoom/internal/app/system/metrics"
	"github.com/dalemusser/coderoom/internal/app/system/ratelimit"
	"github.com/dalemusser/coderoom/internal/app/system/realtime"
	"github.com/dalemusser/coderoom/internal/app/system/workers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook, so the long-lived services
// live behind the Services pointer and are shared by Startup, BuildHandler
// and Shutdown.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Services *Services
}

// Services are the process-wide collaboration components.
type Services struct {
	Users    *userstore.Store
	Projects *projectstore.Store
	Events   *auditstore.Store
	Audit    *auditlog.Logger

	Prometheus *prometheus.Registry
	Metrics    *metrics.Metrics

	Registry *realtime.Registry
	Workflow *collab.Workflow
	Video    *collab.VideoCoordinator
	Router   *collab.Router

	LoginLimiter *ratelimit.LoginLimiter
	VideoReaper  *workers.VideoReaper
}

// newServices wires the stores, the realtime registry and the
// collaboration core over db. Nothing is started here.
func newServices(appCfg AppConfig, db *mongo.Database, logger *zap.Logger) *Services {
	s := &Services{
		Users:      userstore.New(db),
		Projects:   projectstore.New(db),
		Events:     auditstore.New(db),
		Prometheus: prometheus.NewRegistry(),
	}
	s.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.Metrics = metrics.New(s.Prometheus)
	s.Audit = auditlog.New(s.Events, logger, auditlog.Config{
		Auth:   appCfg.AuditLogAuth,
		Collab: appCfg.AuditLogCollab,
	})

	s.Registry = realtime.NewRegistry(realtime.Options{
		Log:    logger.Named("realtime"),
		OnDrop: s.Metrics.Dropped,
	})
	metrics.ObserveRegistry(s.Prometheus, s.Registry)

	deps := collab.Deps{
		Docs:    s.Projects,
		People:  userstore.Directory{Store: s.Users},
		Notify:  s.Registry,
		Audit:   s.Audit,
		Metrics: s.Metrics,
		Log:     logger.Named("collab"),
	}
	s.Workflow = collab.NewWorkflow(deps)
	s.Video = collab.NewVideoCoordinator(deps)
	s.Router = collab.NewRouter(collab.RouterConfig{
		Registry:       s.Registry,
		Workflow:       s.Workflow,
		Video:          s.Video,
		AllowAnonymous: appCfg.WSAllowAnonymous,
		Metrics:        s.Metrics,
		Log:            logger.Named("router"),
	})

	s.LoginLimiter = ratelimit.NewLoginLimiter(appCfg.LoginRateLimit, appCfg.LoginUserRateLimit)
	s.VideoReaper = workers.NewVideoReaper(s.Projects, s.Video, s.Registry.Online, logger, appCfg.VideoReapInterval)
	return s
}
