package birding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aveslog/avesclient"
)

// fakeTokenSource hands out a fixed token and records invalidations.
type fakeTokenSource struct {
	token           string
	err             error
	unauthenticated int
}

func (f *fakeTokenSource) GetAccessToken(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func (f *fakeTokenSource) Unauthenticate(context.Context) error {
	f.unauthenticated++
	return nil
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/birds":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]string{
					{"id": "pica-pica", "binomialName": "Pica pica"},
				},
			})
		case "/sightings":
			if r.Header.Get("accessToken") != "token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"sightingId": 1, "birderId": 12, "birdId": "pica-pica", "date": "2026-08-20"},
					{"sightingId": 2, "birderId": 12, "birdId": "parus-major", "date": "2026-08-21"},
				},
			})
		case "/birders/12":
			if r.Header.Get("accessToken") != "token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 12, "name": "alice"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSearchBirdsIsPublic(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, nil)

	birds, err := client.SearchBirds(context.Background(), "magpie")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(birds) != 1 || birds[0].ID != "pica-pica" || birds[0].BinomialName != "Pica pica" {
		t.Fatalf("unexpected birds %+v", birds)
	}
}

func TestFetchSightingFeed(t *testing.T) {
	server := newAPIServer(t)
	tokens := &fakeTokenSource{token: "token-1"}
	client := NewClient(server.URL, nil, tokens)

	sightings, err := client.FetchSightingFeed(context.Background())
	if err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	if len(sightings) != 2 || sightings[0].BirdID != "pica-pica" || sightings[1].ID != 2 {
		t.Fatalf("unexpected sightings %+v", sightings)
	}
	if tokens.unauthenticated != 0 {
		t.Fatalf("unexpected invalidation count %d", tokens.unauthenticated)
	}
}

func TestFetchBirder(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, &fakeTokenSource{token: "token-1"})

	birder, err := client.FetchBirder(context.Background(), 12)
	if err != nil {
		t.Fatalf("fetch birder failed: %v", err)
	}
	if birder.ID != 12 || birder.Name != "alice" {
		t.Fatalf("unexpected birder %+v", birder)
	}
}

func TestDownstream401ReportsBackToSessionManager(t *testing.T) {
	server := newAPIServer(t)
	tokens := &fakeTokenSource{token: "stale-token"}
	client := NewClient(server.URL, nil, tokens)

	_, err := client.FetchSightingFeed(context.Background())
	if !errors.Is(err, avesclient.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if tokens.unauthenticated != 1 {
		t.Fatalf("expected 1 invalidation, got %d", tokens.unauthenticated)
	}
}

func TestProtectedFetchWithoutTokenSource(t *testing.T) {
	server := newAPIServer(t)
	client := NewClient(server.URL, nil, nil)

	if _, err := client.FetchSightingFeed(context.Background()); !errors.Is(err, avesclient.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestTokenSourceErrorShortCircuits(t *testing.T) {
	server := newAPIServer(t)
	tokens := &fakeTokenSource{err: avesclient.ErrUnauthenticated}
	client := NewClient(server.URL, nil, tokens)

	if _, err := client.FetchSightingFeed(context.Background()); !errors.Is(err, avesclient.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if tokens.unauthenticated != 0 {
		t.Fatalf("token source failure must not re-invalidate, got %d", tokens.unauthenticated)
	}
}
