package avesclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newResetServer(t *testing.T, liveToken string, registered map[string]bool) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64
	consumed := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/authentication/password-reset" && r.Method == http.MethodPost:
			requests.Add(1)
			var body struct {
				Email string `json:"email"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if registered[body.Email] {
				w.WriteHeader(http.StatusOK)
				return
			}
			writeError(w, http.StatusNotFound, 0, "no such account")
		case r.URL.Path == "/authentication/password-reset/"+liveToken:
			if consumed {
				writeError(w, http.StatusNotFound, 0, "consumed")
				return
			}
			consumed = true
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/authentication/password-reset/expired-token":
			writeError(w, http.StatusGone, 0, "expired")
		default:
			writeError(w, http.StatusNotFound, 0, "unknown token")
		}
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func TestRequestPasswordResetEmailIdenticalOutcomes(t *testing.T) {
	server, requests := newResetServer(t, "reset-1", map[string]bool{"alice@example.com": true})
	client := newTestClient(t, server.URL, nil)

	// A registered and an unregistered address must produce byte-identical
	// observable behavior.
	if err := client.RequestPasswordResetEmail(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("registered address: %v", err)
	}
	if err := client.RequestPasswordResetEmail(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unregistered address: %v", err)
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	if got := client.Metrics().Value(MetricPasswordResetRequest); got != 2 {
		t.Fatalf("expected 2 reset requests recorded, got %d", got)
	}
}

func TestPasswordResetFlowSuccessConsumes(t *testing.T) {
	server, _ := newResetServer(t, "reset-1", nil)
	client := newTestClient(t, server.URL, nil)

	flow := client.NewPasswordResetFlow("reset-1")
	if got := flow.State(); got != FlowReady {
		t.Fatalf("expected ready, got %v", got)
	}

	if err := flow.Submit(context.Background(), "next-password"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if got := flow.State(); got != FlowSucceeded {
		t.Fatalf("expected succeeded, got %v", got)
	}

	if err := flow.Submit(context.Background(), "another-password"); !errors.Is(err, ErrFlowConsumed) {
		t.Fatalf("expected ErrFlowConsumed, got %v", err)
	}
}

func TestPasswordResetFlowGenericInvalidLink(t *testing.T) {
	server, _ := newResetServer(t, "reset-1", nil)
	client := newTestClient(t, server.URL, nil)

	// Expired and unknown tokens must be indistinguishable: the same bare
	// sentinel, no wrapped detail for a caller to branch on.
	for _, token := range []string{"expired-token", "unknown-token"} {
		flow := client.NewPasswordResetFlow(token)
		err := flow.Submit(context.Background(), "next-password")
		if err != ErrResetLinkInvalid {
			t.Fatalf("token %q: expected bare ErrResetLinkInvalid, got %v", token, err)
		}
		if got := flow.State(); got != FlowInvalid {
			t.Fatalf("token %q: expected invalid, got %v", token, got)
		}
	}
	if got := client.Metrics().Value(MetricPasswordResetConsumeFailure); got != 2 {
		t.Fatalf("expected 2 consume failures, got %d", got)
	}
}

func TestPasswordResetFlowRejectsEmptyPassword(t *testing.T) {
	server, _ := newResetServer(t, "reset-1", nil)
	client := newTestClient(t, server.URL, nil)

	flow := client.NewPasswordResetFlow("reset-1")
	if err := flow.Submit(context.Background(), ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := flow.State(); got != FlowReady {
		t.Fatalf("expected ready, got %v", got)
	}
}
