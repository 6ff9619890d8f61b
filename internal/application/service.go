package application

import (
	"time"

	"github.com/chattyhq/export-service/internal/ports"
)

// Config carries the tunables the export use-cases need.
type Config struct {
	TokenTTL              time.Duration
	VerificationBaseURL   string
	OTPRateLimitThreshold int
	OTPRateLimitWindow    time.Duration
}

// Service implements the export session lifecycle. All collaborators are
// fixed interfaces injected once at construction; nothing is re-resolved per
// call.
type Service struct {
	cfg      Config
	sessions ports.SessionRepository
	tokens   ports.TokenIssuer
	archiver ports.ArchiveBuilder
	otp      ports.OTPProvider
	notifier ports.ExportNotifier
	throttle ports.ThrottleStore
	nowFn    func() time.Time
}

type Dependencies struct {
	Config   Config
	Sessions ports.SessionRepository
	Tokens   ports.TokenIssuer
	Archiver ports.ArchiveBuilder
	// OTP may be nil when no SMS provider is configured; verification
	// endpoints then answer with ErrProviderUnavailable.
	OTP      ports.OTPProvider
	Notifier ports.ExportNotifier
	Throttle ports.ThrottleStore
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{
		cfg:      cfg,
		sessions: deps.Sessions,
		tokens:   deps.Tokens,
		archiver: deps.Archiver,
		otp:      deps.OTP,
		notifier: deps.Notifier,
		throttle: deps.Throttle,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}
