package workers

import (
	"context"
	"log/slog"
	"time"

	application "ballotbooth/contexts/election/voting-booth/application"
	"ballotbooth/contexts/election/voting-booth/ports"
)

// SessionSweeper drops verification sessions past their deadline. Expired
// sessions are already refused on access; the sweep only reclaims memory.
type SessionSweeper struct {
	Sessions ports.SessionStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (j SessionSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	purged, err := j.Sessions.PurgeExpired(ctx, now)
	if err != nil {
		logger.Error("session sweep failed",
			"event", "booth_session_sweep_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if purged > 0 {
		logger.Info("session sweep completed",
			"event", "booth_session_sweep_completed",
			"module", application.ModuleName,
			"layer", "worker",
			"purged_count", purged,
		)
	}
	return nil
}
