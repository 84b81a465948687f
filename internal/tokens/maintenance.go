package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/franciscosanchezn/signflow-api/internal/provider"
)

// Maintainer refreshes the active token ahead of expiry and purges old
// deactivated records on a fixed interval
type Maintainer struct {
	manager   *Manager
	interval  time.Duration
	retention time.Duration
}

func NewMaintainer(manager *Manager, interval, retention time.Duration) *Maintainer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Maintainer{manager: manager, interval: interval, retention: retention}
}

// Run blocks until ctx is cancelled
func (w *Maintainer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.manager.logger().WithField("interval", w.interval.String()).Info("Token maintenance started")
	for {
		select {
		case <-ctx.Done():
			w.manager.logger().Info("Token maintenance stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs one maintenance pass
func (w *Maintainer) Tick(ctx context.Context) {
	if err := w.manager.RefreshIfDue(ctx); err != nil && !errors.Is(err, provider.ErrNotAuthorized) {
		w.manager.logger().WithError(err).Warn("Background token refresh failed")
	}
	if w.retention > 0 {
		if _, err := w.manager.Sweep(ctx, w.retention); err != nil {
			w.manager.logger().WithError(err).Warn("Token retention sweep failed")
		}
	}
}
