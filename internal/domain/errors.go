package domain

import "errors"

var (
	// ErrNotFound is returned when the requested session or artifact does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput covers malformed phone numbers, codes and request bodies.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidToken signals a signature mismatch or malformed export token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned once a claim is past its signed lifetime,
	// regardless of whether a session still lingers behind it.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongPurpose rejects claims minted for anything other than the export flow.
	ErrWrongPurpose = errors.New("token purpose is not export")
	// ErrNotVerified blocks delivery before the second factor succeeded.
	ErrNotVerified = errors.New("session not verified")
	// ErrAlreadyConsumed enforces single-use delivery.
	// Exactly one of N concurrent downloads wins; the rest see this error.
	ErrAlreadyConsumed = errors.New("export already downloaded")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrRateLimited     = errors.New("rate limited")
	ErrArchiveFailed   = errors.New("archive build failed")
	ErrDataUnavailable = errors.New("chat data source unavailable")
	// ErrProviderUnavailable means the OTP or mail provider is not configured at all.
	// It is a 503-class condition, distinct from a rejected code or a failed call.
	ErrProviderUnavailable = errors.New("provider not configured")
	ErrProviderFailure     = errors.New("provider call failed")
	// ErrProviderTimeout is kept separate from ErrProviderFailure so callers can
	// tell "provider is down" apart from "provider rejected the input".
	ErrProviderTimeout    = errors.New("provider call timed out")
	ErrNotificationFailed = errors.New("export notification failed")
)
