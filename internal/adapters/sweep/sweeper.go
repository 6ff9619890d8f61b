package sweep

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/chattyhq/export-service/internal/ports"
)

// Sweeper proactively evicts expired export sessions and removes their
// artifact files. Gates already reject expired tokens lazily; the sweep exists
// so abandoned artifacts do not accumulate on disk.
type Sweeper struct {
	logger   *slog.Logger
	sessions ports.SessionRepository
	interval time.Duration
}

// NewSweeper constructs the eviction loop with sane defaults.
func NewSweeper(logger *slog.Logger, sessions ports.SessionRepository, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		logger:   logger,
		sessions: sessions,
		interval: interval,
	}
}

// Run executes the periodic eviction loop until context cancellation.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.sweepOnce(ctx); err != nil {
			s.logger.ErrorContext(ctx, "session sweep failed",
				"module", "sweep",
				"layer", "adapter",
				"operation", "sweep_expired_sessions",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	purged, err := s.sessions.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if len(purged) == 0 {
		return nil
	}

	removed := 0
	for _, session := range purged {
		if session.ArtifactPath == "" {
			continue
		}
		if err := os.Remove(session.ArtifactPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			s.logger.WarnContext(ctx, "expired artifact removal failed",
				"module", "sweep",
				"layer", "adapter",
				"operation", "remove_expired_artifact",
				"outcome", "failure",
				"artifact_path", session.ArtifactPath,
				"error", err,
			)
			continue
		}
		removed++
	}

	s.logger.InfoContext(ctx, "expired sessions evicted",
		"module", "sweep",
		"layer", "adapter",
		"operation", "sweep_expired_sessions",
		"outcome", "success",
		"purged", len(purged),
		"artifacts_removed", removed,
	)
	return nil
}
