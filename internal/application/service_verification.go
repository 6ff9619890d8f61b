package application

import (
	"context"
	"fmt"

	"github.com/chattyhq/export-service/internal/domain"
)

// RequestCode forwards a second-factor challenge to the SMS provider.
// It is idempotent at the protocol level: repeated calls resend the code and
// have no other side effect, bounded only by the resend throttle.
func (s *Service) RequestCode(ctx context.Context, token, phone string) error {
	if _, err := s.checkChallengePreconditions(ctx, token, phone); err != nil {
		return err
	}

	if err := s.enforceOTPRateLimit(ctx, token, phone); err != nil {
		return err
	}

	if err := s.otp.SendCode(ctx, phone); err != nil {
		return err
	}
	return nil
}

// VerifyCode submits the code to the provider and flips the session to
// verified on an explicit approval. Any other response, or a provider error,
// yields ErrInvalidCode and leaves session state unchanged; verification can
// be retried until the token itself expires.
func (s *Service) VerifyCode(ctx context.Context, token, phone, code string) error {
	if _, err := s.checkChallengePreconditions(ctx, token, phone); err != nil {
		return err
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: code must be 4-10 digits", domain.ErrInvalidInput)
	}

	approved, err := s.otp.CheckCode(ctx, phone, code)
	if err != nil {
		appLogger().WarnContext(ctx, "otp check failed",
			"operation", "verify_code",
			"outcome", "failure",
			"error", err,
		)
		// A provider error never mutates session state; both kinds stay
		// visible so tests can tell a timeout from a rejected code.
		return fmt.Errorf("%w: %w", domain.ErrInvalidCode, err)
	}
	if !approved {
		return domain.ErrInvalidCode
	}

	if err := s.sessions.MarkVerified(ctx, token, s.nowFn()); err != nil {
		return fmt.Errorf("mark session verified: %w", err)
	}
	return nil
}

// checkChallengePreconditions runs the shared ordered gate checks: phone
// shape, claim validity and purpose, session existence, provider presence.
// First failure wins.
func (s *Service) checkChallengePreconditions(ctx context.Context, token, phone string) (*domain.ExportSession, error) {
	if !phonePattern.MatchString(phone) {
		return nil, fmt.Errorf("%w: phone must be 8-15 digits with optional leading +", domain.ErrInvalidInput)
	}
	if _, err := s.tokens.Validate(token); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("load export session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: export session", domain.ErrNotFound)
	}
	if s.otp == nil {
		return nil, fmt.Errorf("%w: sms provider", domain.ErrProviderUnavailable)
	}
	return session, nil
}
