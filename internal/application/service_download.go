package application

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chattyhq/export-service/internal/domain"
)

// Deliver enforces the single-use, verified-only delivery rule. Ordered
// preconditions, first failure short-circuits: token valid with purpose
// export, session exists, verified, not yet consumed, artifact present.
// Consumption is reserved atomically before the stream starts so exactly one
// of N concurrent calls wins; an interrupted transfer burns the download.
func (s *Service) Deliver(ctx context.Context, token string) (DownloadResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return DownloadResult{}, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if _, err := s.tokens.Validate(token); err != nil {
		return DownloadResult{}, err
	}

	session, err := s.sessions.ConsumeOnce(ctx, token)
	if err != nil {
		return DownloadResult{}, err
	}

	f, err := os.Open(session.ArtifactPath)
	if err != nil {
		if os.IsNotExist(err) {
			// The session is useless without its artifact; drop it so later
			// calls get a clean 404 instead of already-consumed.
			if delErr := s.sessions.Delete(ctx, token); delErr != nil {
				appLogger().WarnContext(ctx, "orphan session cleanup failed",
					"operation", "deliver",
					"outcome", "failure",
					"error", delErr,
				)
			}
			return DownloadResult{}, fmt.Errorf("%w: export artifact", domain.ErrNotFound)
		}
		return DownloadResult{}, fmt.Errorf("open artifact: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return DownloadResult{}, fmt.Errorf("stat artifact: %w", err)
	}

	return DownloadResult{
		File:         f,
		Filename:     filepath.Base(session.ArtifactPath),
		Size:         info.Size(),
		token:        token,
		artifactPath: session.ArtifactPath,
	}, nil
}

// FinishDownload releases the artifact handle and performs best-effort
// cleanup of the backing file and session record. Failures are logged and
// never affect the response already sent.
func (s *Service) FinishDownload(ctx context.Context, res DownloadResult) {
	if res.File != nil {
		_ = res.File.Close()
	}
	if res.artifactPath != "" {
		if err := os.Remove(res.artifactPath); err != nil && !os.IsNotExist(err) {
			appLogger().WarnContext(ctx, "artifact cleanup failed",
				"operation", "finish_download",
				"outcome", "failure",
				"artifact_path", res.artifactPath,
				"error", err,
			)
		}
	}
	if res.token != "" {
		if err := s.sessions.Delete(ctx, res.token); err != nil {
			appLogger().WarnContext(ctx, "session cleanup failed",
				"operation", "finish_download",
				"outcome", "failure",
				"error", err,
			)
		}
	}
}

// Status reports the current session state for a token.
func (s *Service) Status(ctx context.Context, token string) (StatusResponse, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return StatusResponse{}, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if _, err := s.tokens.Validate(token); err != nil {
		return StatusResponse{}, err
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("load export session: %w", err)
	}
	if session == nil {
		return StatusResponse{}, fmt.Errorf("%w: export session", domain.ErrNotFound)
	}

	return StatusResponse{
		Verified:      session.Verified,
		DownloadCount: session.DownloadCount,
		CreatedAt:     session.CreatedAt,
	}, nil
}
