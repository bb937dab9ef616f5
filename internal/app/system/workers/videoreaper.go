// internal/app/system/workers/videoreaper.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/coderoom/internal/app/collab"
	"github.com/dalemusser/coderoom/internal/domain/models"
	"go.uber.org/zap"
)

// VideoLister returns the projects that currently have a video session.
type VideoLister interface {
	ListVideoActive(ctx context.Context) ([]models.Project, error)
}

// Reconciler drops offline participants from one project's video session.
type Reconciler interface {
	Reconcile(ctx context.Context, projectID string, online func(userID string) bool) ([]string, error)
}

// VideoReaper is a background worker that removes video participants whose
// connections are gone. Disconnects do not touch video state, so without it
// a session whose members all closed their tabs would stay active.
type VideoReaper struct {
	projects VideoLister
	video    Reconciler
	online   func(userID string) bool
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewVideoReaper creates the worker. interval is how often a pass runs
// (e.g., 1 minute); online is usually Registry.Online.
func NewVideoReaper(projects VideoLister, video Reconciler, online func(string) bool, logger *zap.Logger, interval time.Duration) *VideoReaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoReaper{
		projects: projects,
		video:    video,
		online:   online,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *VideoReaper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("video reaper started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *VideoReaper) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("video reaper stopped")
}

func (w *VideoReaper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep runs one reconciliation pass and returns how many participants
// were removed.
func (w *VideoReaper) Sweep() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	active, err := w.projects.ListVideoActive(ctx)
	if err != nil {
		w.log.Error("failed to list video sessions", zap.Error(err))
		return 0
	}

	total := 0
	for _, p := range active {
		removed, err := w.video.Reconcile(ctx, p.ID.Hex(), w.online)
		if err != nil {
			w.log.Warn("video reconcile failed",
				zap.String("project_id", p.ID.Hex()),
				zap.Error(err))
			continue
		}
		total += len(removed)
	}

	if total > 0 {
		w.log.Info("removed stale video participants", zap.Int("count", total))
	}
	return total
}

var _ Reconciler = (*collab.VideoCoordinator)(nil)
