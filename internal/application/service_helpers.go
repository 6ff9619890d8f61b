package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/chattyhq/export-service/internal/domain"
)

var (
	// phonePattern: optional leading + followed by 8-15 digits.
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{4,10}$`)
)

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", "Chatty-Export-Service",
		"module", "application",
		"layer", "application",
	)
}

// hashToken keys throttle state without persisting the raw token in Redis.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func buildVerificationURL(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "/export/verify?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// enforceOTPRateLimit applies a fixed-window bound keyed by token and phone.
// Throttle store outages degrade open: losing the limiter must not take the
// verification flow down with it.
func (s *Service) enforceOTPRateLimit(ctx context.Context, token, phone string) error {
	if s.throttle == nil || s.cfg.OTPRateLimitThreshold <= 0 || s.cfg.OTPRateLimitWindow <= 0 {
		return nil
	}
	key := "otp:" + hashToken(token) + ":" + phone

	state, err := s.throttle.Get(ctx, key)
	if err == nil && state.BlockedUntil != nil && state.BlockedUntil.After(s.nowFn()) {
		return domain.ErrRateLimited
	}

	now := s.nowFn()
	updated, err := s.throttle.RecordAttempt(ctx, key, now, s.cfg.OTPRateLimitThreshold, s.cfg.OTPRateLimitWindow)
	if err != nil {
		appLogger().WarnContext(ctx, "rate-limit state unavailable",
			"operation", "rate_limit",
			"outcome", "warning",
			"key", key,
			"error", err,
		)
		return nil
	}
	if updated.BlockedUntil != nil && updated.BlockedUntil.After(now) {
		return domain.ErrRateLimited
	}
	return nil
}
