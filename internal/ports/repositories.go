package ports

import (
	"context"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
)

// SessionRepository is the keyed registry mapping an export token to session
// state. It exclusively owns ExportSession records for their lifetime.
type SessionRepository interface {
	// Put registers a new session. The TTL must match the token lifetime so the
	// backing store can expire the record on its own.
	Put(ctx context.Context, session domain.ExportSession, ttl time.Duration) error
	// Get returns nil without error when no session exists for the token.
	Get(ctx context.Context, token string) (*domain.ExportSession, error)
	// MarkVerified flips verified to true and stamps verified_at.
	// The transition is one-way; marking an already-verified session is a no-op.
	MarkVerified(ctx context.Context, token string, at time.Time) error
	// ConsumeOnce atomically reserves the single download. It returns the
	// session on success, domain.ErrNotFound when no session exists,
	// domain.ErrNotVerified before verification and domain.ErrAlreadyConsumed
	// when the download was already taken. The verified/consumed check and the
	// increment happen as one atomic operation, never as separate read and
	// write steps.
	ConsumeOnce(ctx context.Context, token string) (domain.ExportSession, error)
	Delete(ctx context.Context, token string) error
	// PurgeExpired evicts sessions whose expiry passed and returns them so the
	// caller can remove orphaned artifact files.
	PurgeExpired(ctx context.Context, now time.Time) ([]domain.ExportSession, error)
}

// ThrottleState is the current fixed-window envelope for a throttle key.
type ThrottleState struct {
	AttemptCount int
	BlockedUntil *time.Time
}

// ThrottleStore handles short-lived OTP request rate limiting.
// It is cache-backed to avoid hot writes on every resend.
type ThrottleStore interface {
	Get(ctx context.Context, key string) (ThrottleState, error)
	RecordAttempt(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (ThrottleState, error)
	Clear(ctx context.Context, key string) error
}
