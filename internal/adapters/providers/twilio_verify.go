package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
)

// TwilioVerifyProvider drives SMS one-time-code challenges through the Twilio
// Verify v2 API. Every call runs under the client's bounded timeout; timeouts
// surface as domain.ErrProviderTimeout so callers can tell "provider is down"
// apart from "provider rejected the input".
type TwilioVerifyProvider struct {
	baseURL    string
	accountSID string
	authToken  string
	serviceSID string
	client     *http.Client
}

type TwilioConfig struct {
	BaseURL    string
	AccountSID string
	AuthToken  string
	ServiceSID string
	Timeout    time.Duration
}

// IsConfigured reports whether enough credentials exist to reach Twilio.
func (c TwilioConfig) IsConfigured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.ServiceSID != ""
}

func NewTwilioVerifyProvider(cfg TwilioConfig) *TwilioVerifyProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://verify.twilio.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &TwilioVerifyProvider{
		baseURL:    baseURL,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		serviceSID: cfg.ServiceSID,
		client:     &http.Client{Timeout: timeout},
	}
}

func (p *TwilioVerifyProvider) SendCode(ctx context.Context, phone string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")

	endpoint := fmt.Sprintf("%s/v2/Services/%s/Verifications", p.baseURL, p.serviceSID)
	body, err := p.post(ctx, endpoint, form)
	if err != nil {
		return err
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("%w: decode verification response: %v", domain.ErrProviderFailure, err)
	}
	if out.Status != "pending" && out.Status != "approved" {
		return fmt.Errorf("%w: verification status %q", domain.ErrProviderFailure, out.Status)
	}
	return nil
}

func (p *TwilioVerifyProvider) CheckCode(ctx context.Context, phone, code string) (bool, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)

	endpoint := fmt.Sprintf("%s/v2/Services/%s/VerificationCheck", p.baseURL, p.serviceSID)
	body, err := p.post(ctx, endpoint, form)
	if err != nil {
		return false, err
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("%w: decode verification check: %v", domain.ErrProviderFailure, err)
	}
	// Only an explicit approval counts; "pending", "canceled" and anything
	// unexpected are treated as a rejected code by the caller.
	return out.Status == "approved", nil
}

func (p *TwilioVerifyProvider) post(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrProviderFailure, err)
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: twilio status %d: %s", domain.ErrProviderFailure, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", domain.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
