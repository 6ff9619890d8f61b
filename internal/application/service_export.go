package application

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chattyhq/export-service/internal/domain"
	"github.com/chattyhq/export-service/internal/ports"
)

// RequestExport builds the owner's artifact, mints a scoped token, notifies
// the owner on their email channel and only then registers the session.
// If notification fails the just-built artifact is deleted and no session is
// ever registered, so a failed request leaves no residue.
func (s *Service) RequestExport(ctx context.Context, ownerID string) (ExportRequestResponse, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return ExportRequestResponse{}, fmt.Errorf("%w: owner id is required", domain.ErrInvalidInput)
	}

	built, err := s.archiver.Build(ctx, ownerID)
	if err != nil {
		return ExportRequestResponse{}, err
	}

	token, err := s.tokens.Issue(ownerID)
	if err != nil {
		s.removeArtifact(ctx, built.Path, "issue_token")
		return ExportRequestResponse{}, fmt.Errorf("issue export token: %w", err)
	}

	now := s.nowFn()
	expiresAt := now.Add(s.cfg.TokenTTL)
	verificationURL := buildVerificationURL(s.cfg.VerificationBaseURL, token)

	if s.notifier == nil {
		s.removeArtifact(ctx, built.Path, "notify_owner")
		return ExportRequestResponse{}, fmt.Errorf("%w: mail relay not configured", domain.ErrNotificationFailed)
	}
	err = s.notifier.SendExportReady(ctx, ports.ExportReadyNotice{
		OwnerID:            ownerID,
		Email:              built.Owner.Email,
		VerificationURL:    verificationURL,
		ExpiresAt:          expiresAt.Format("2006-01-02 15:04 MST"),
		TotalConversations: built.Counts.Conversations,
		TotalMessages:      built.Counts.Messages,
	})
	if err != nil {
		s.removeArtifact(ctx, built.Path, "notify_owner")
		return ExportRequestResponse{}, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}

	session := domain.ExportSession{
		Token:        token,
		OwnerID:      ownerID,
		ArtifactPath: built.Path,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}
	if err := s.sessions.Put(ctx, session, s.cfg.TokenTTL); err != nil {
		s.removeArtifact(ctx, built.Path, "register_session")
		return ExportRequestResponse{}, fmt.Errorf("register export session: %w", err)
	}

	return ExportRequestResponse{
		VerificationURL: verificationURL,
		ExportDetails: ExportDetails{
			TotalConversations: built.Counts.Conversations,
			TotalMessages:      built.Counts.Messages,
			ExpiresAt:          expiresAt,
		},
	}, nil
}

// removeArtifact is the compensation step for a failed export request.
func (s *Service) removeArtifact(ctx context.Context, path, failedStep string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		appLogger().WarnContext(ctx, "artifact compensation failed",
			"operation", "remove_artifact",
			"outcome", "failure",
			"failed_step", failedStep,
			"artifact_path", path,
			"error", err,
		)
	}
}
