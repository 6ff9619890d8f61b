package ports

import (
	"context"

	"github.com/chattyhq/export-service/internal/domain"
)

// OTPProvider is the external SMS one-time-code collaborator.
// Calls run under a bounded timeout; a timeout surfaces as
// domain.ErrProviderTimeout, never as a generic failure.
type OTPProvider interface {
	// SendCode asks the provider to deliver a code to the phone number.
	// Resending is idempotent at the protocol level.
	SendCode(ctx context.Context, phone string) error
	// CheckCode returns true only for an explicitly approved code.
	CheckCode(ctx context.Context, phone, code string) (bool, error)
}

// ExportReadyNotice is the payload handed to the mail provider when an export
// artifact has been built and is awaiting verification.
type ExportReadyNotice struct {
	OwnerID            string
	Email              string
	VerificationURL    string
	ExpiresAt          string
	TotalConversations int
	TotalMessages      int
}

// ExportNotifier delivers the verification link to the owner's email channel.
type ExportNotifier interface {
	SendExportReady(ctx context.Context, notice ExportReadyNotice) error
}

// ChatDataSource supplies the owner's exportable records. An unreachable
// backing store must surface domain.ErrDataUnavailable rather than synthetic
// data.
type ChatDataSource interface {
	OwnerSnapshot(ctx context.Context, ownerID string) (domain.OwnerSnapshot, error)
	Conversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	Messages(ctx context.Context, ownerID string) ([]domain.Message, error)
}
