// Package birding holds thin read clients for the sighting-logging
// endpoints of the aveslog API. They are the canonical session consumers:
// each protected fetch asks the session manager for a token first and
// reports a downstream 401 back to it, forcing the whole process
// anonymous at once.
package birding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aveslog/avesclient"
)

// TokenSource supplies access tokens and accepts invalidation reports.
// *avesclient.Client satisfies it.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
	Unauthenticate(ctx context.Context) error
}

// Bird is a species as the search endpoint returns it.
type Bird struct {
	ID           string `json:"id"`
	BinomialName string `json:"binomialName"`
}

// Sighting is one logged observation.
type Sighting struct {
	ID       int    `json:"sightingId"`
	BirderID int    `json:"birderId"`
	BirdID   string `json:"birdId"`
	Date     string `json:"date"`
	Time     string `json:"time,omitempty"`
}

// Birder is a public birder profile.
type Birder struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Client reads birds, sightings and birder profiles. Construct with
// [NewClient]; the zero value is not usable.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// NewClient creates a read client against baseURL. httpClient may be nil
// for http.DefaultClient. tokens may be nil for a client that only calls
// the public endpoints.
func NewClient(baseURL string, httpClient *http.Client, tokens TokenSource) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
	}
}

// SearchBirds queries species by name. Public: no session needed.
func (c *Client) SearchBirds(ctx context.Context, query string) ([]Bird, error) {
	values := url.Values{}
	values.Set("q", query)

	var page struct {
		Items []Bird `json:"items"`
	}
	if err := c.get(ctx, "/birds?"+values.Encode(), false, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// FetchSightingFeed returns the sightings visible to the signed-in birder,
// newest first.
func (c *Client) FetchSightingFeed(ctx context.Context) ([]Sighting, error) {
	var page struct {
		Items []Sighting `json:"items"`
	}
	if err := c.get(ctx, "/sightings", true, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// FetchBirder returns one birder's profile.
func (c *Client) FetchBirder(ctx context.Context, id int) (Birder, error) {
	var birder Birder
	if err := c.get(ctx, "/birders/"+strconv.Itoa(id), true, &birder); err != nil {
		return Birder{}, err
	}
	return birder, nil
}

func (c *Client) get(ctx context.Context, path string, authenticated bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	if authenticated {
		if c.tokens == nil {
			return avesclient.ErrUnauthenticated
		}
		token, err := c.tokens.GetAccessToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("accessToken", token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", avesclient.ErrNetworkFailure, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusOK:
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", avesclient.ErrNetworkFailure, err)
		}
		return nil
	case res.StatusCode == http.StatusUnauthorized && authenticated:
		// The token the session manager handed out is dead serverside.
		// Report it so every other consumer sees Anonymous too.
		_ = c.tokens.Unauthenticate(ctx)
		return avesclient.ErrUnauthenticated
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("unexpected response: status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
}
