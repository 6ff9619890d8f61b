package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
	"github.com/chattyhq/export-service/internal/ports"
)

// HTTPMailer posts export-ready notices to the platform mail relay.
// The relay owns templating and actual SMTP delivery; this adapter only hands
// over the verification link and the export summary.
type HTTPMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

type MailerConfig struct {
	Endpoint string
	APIKey   string
	From     string
	Timeout  time.Duration
}

func (c MailerConfig) IsConfigured() bool { return c.Endpoint != "" }

func NewHTTPMailer(cfg MailerConfig) *HTTPMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	from := cfg.From
	if from == "" {
		from = "no-reply@chatty.app"
	}
	return &HTTPMailer{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		from:     from,
		client:   &http.Client{Timeout: timeout},
	}
}

func (m *HTTPMailer) SendExportReady(ctx context.Context, notice ports.ExportReadyNotice) error {
	payload, err := json.Marshal(map[string]any{
		"from":     m.from,
		"to":       notice.Email,
		"template": "export_ready",
		"subject":  "Your Chatty data export is ready",
		"variables": map[string]any{
			"owner_id":            notice.OwnerID,
			"verification_url":    notice.VerificationURL,
			"expires_at":          notice.ExpiresAt,
			"total_conversations": notice.TotalConversations,
			"total_messages":      notice.TotalMessages,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: encode mail payload: %v", domain.ErrNotificationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build mail request: %v", domain.ErrNotificationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("%w: mail relay status %d: %s", domain.ErrNotificationFailed, resp.StatusCode, truncate(body, 200))
	}
	return nil
}
