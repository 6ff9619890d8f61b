package sweep

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chattyhq/export-service/internal/adapters/memory"
	"github.com/chattyhq/export-service/internal/domain"
)

func TestSweepOnceRemovesExpiredSessionsAndArtifacts(t *testing.T) {
	store := memory.NewSessionStore()
	dir := t.TempDir()
	now := time.Now().UTC()

	expiredPath := filepath.Join(dir, "export-expired.zip")
	if err := os.WriteFile(expiredPath, []byte("stale"), 0o600); err != nil {
		t.Fatalf("write expired artifact: %v", err)
	}
	livePath := filepath.Join(dir, "export-live.zip")
	if err := os.WriteFile(livePath, []byte("fresh"), 0o600); err != nil {
		t.Fatalf("write live artifact: %v", err)
	}

	_ = store.Put(context.Background(), domain.ExportSession{
		Token:        "tok-expired",
		OwnerID:      "owner-1",
		ArtifactPath: expiredPath,
		ExpiresAt:    now.Add(-time.Hour),
	}, time.Hour)
	_ = store.Put(context.Background(), domain.ExportSession{
		Token:        "tok-live",
		OwnerID:      "owner-2",
		ArtifactPath: livePath,
		ExpiresAt:    now.Add(time.Hour),
	}, time.Hour)
	// Session whose artifact is already gone; the sweep must not trip on it.
	_ = store.Put(context.Background(), domain.ExportSession{
		Token:        "tok-orphan",
		OwnerID:      "owner-3",
		ArtifactPath: filepath.Join(dir, "already-deleted.zip"),
		ExpiresAt:    now.Add(-time.Hour),
	}, time.Hour)

	sweeper := NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), store, time.Minute)
	if err := sweeper.sweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := os.Stat(expiredPath); !os.IsNotExist(err) {
		t.Fatalf("expired artifact should be removed, stat=%v", err)
	}
	if _, err := os.Stat(livePath); err != nil {
		t.Fatalf("live artifact should survive: %v", err)
	}
	if session, _ := store.Get(context.Background(), "tok-expired"); session != nil {
		t.Fatalf("expired session should be purged")
	}
	if session, _ := store.Get(context.Background(), "tok-orphan"); session != nil {
		t.Fatalf("orphan session should be purged")
	}
	if session, _ := store.Get(context.Background(), "tok-live"); session == nil {
		t.Fatalf("live session should survive")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	sweeper := NewSweeper(slog.New(slog.NewTextHandler(io.Discard, nil)), memory.NewSessionStore(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sweeper.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
