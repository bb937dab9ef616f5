// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Shutdown stops background work, closes every realtime connection and
// disconnects MongoDB. All failures are reported together.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if s := deps.Services; s != nil {
		s.VideoReaper.Stop()
		s.Registry.Close()
		s.LoginLimiter.Stop()
	}

	var err error
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if e := deps.MongoClient.Disconnect(ctx); e != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(e))
			err = multierr.Append(err, e)
		}
	}
	return err
}
