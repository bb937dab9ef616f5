// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/coderoom/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	configureTimeouts(appCfg, logger)
	deps.Services.VideoReaper.Start()
	return nil
}

// configureTimeouts applies exec_timeout, then any CODEROOM_TIMEOUT_*
// overrides from the environment.
func configureTimeouts(appCfg AppConfig, logger *zap.Logger) {
	timeouts.Configure(timeouts.Config{Exec: appCfg.ExecTimeout})
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}
	cur := timeouts.Current()
	logger.Debug("timeouts",
		zap.Duration("ping", cur.Ping),
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long),
		zap.Duration("exec", cur.Exec))
}
