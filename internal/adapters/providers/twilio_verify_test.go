package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chattyhq/export-service/internal/domain"
)

func newTwilioServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *TwilioVerifyProvider) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider := NewTwilioVerifyProvider(TwilioConfig{
		BaseURL:    server.URL,
		AccountSID: "AC-test",
		AuthToken:  "secret",
		ServiceSID: "VA-test",
		Timeout:    2 * time.Second,
	})
	return server, provider
}

func TestSendCodePostsVerification(t *testing.T) {
	var gotPath, gotTo, gotChannel string
	_, provider := newTwilioServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if user, pass, ok := r.BasicAuth(); !ok || user != "AC-test" || pass != "secret" {
			t.Errorf("missing basic auth: %s/%s", user, pass)
		}
		_ = r.ParseForm()
		gotTo = r.PostFormValue("To")
		gotChannel = r.PostFormValue("Channel")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	})

	if err := provider.SendCode(context.Background(), "+15550001111"); err != nil {
		t.Fatalf("send code: %v", err)
	}
	if gotPath != "/v2/Services/VA-test/Verifications" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotTo != "+15550001111" || gotChannel != "sms" {
		t.Fatalf("unexpected form: to=%s channel=%s", gotTo, gotChannel)
	}
}

func TestCheckCodeOnlyApprovedCounts(t *testing.T) {
	status := "pending"
	_, provider := newTwilioServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/Services/VA-test/VerificationCheck" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})

	ok, err := provider.CheckCode(context.Background(), "+15550001111", "424242")
	if err != nil || ok {
		t.Fatalf("pending must not approve: ok=%v err=%v", ok, err)
	}

	status = "approved"
	ok, err = provider.CheckCode(context.Background(), "+15550001111", "424242")
	if err != nil || !ok {
		t.Fatalf("approved should approve: ok=%v err=%v", ok, err)
	}
}

func TestProviderErrorClassification(t *testing.T) {
	_, failing := newTwilioServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":20429}`))
	})
	if err := failing.SendCode(context.Background(), "+15550001111"); !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("http 429: expected ErrProviderFailure, got %v", err)
	}

	_, slow := newTwilioServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := slow.SendCode(ctx, "+15550001111"); !errors.Is(err, domain.ErrProviderTimeout) {
		t.Fatalf("timeout: expected ErrProviderTimeout, got %v", err)
	}
}
