package avesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Gateway performs the authentication HTTP operations against the aveslog
// API. It is a stateless boundary adapter: no retained state, no retries,
// no side effects beyond the network call. Expected server-signaled
// conditions come back as the package's sentinel errors; transport
// failures come back wrapped in [ErrNetworkFailure]; anything unmapped
// comes back as [*UnexpectedResponseError].
type Gateway struct {
	baseURL string
	http    *http.Client
}

// NewGateway creates a gateway against cfg.BaseURL. httpClient may be nil,
// in which case a client bounded by cfg.Timeout is used.
func NewGateway(cfg APIConfig, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
	}
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	status int
	body   []byte
}

func (r response) errorBody() errorBody {
	var eb errorBody
	_ = json.Unmarshal(r.body, &eb)
	return eb
}

func (r response) unexpected() error {
	eb := r.errorBody()
	return &UnexpectedResponseError{
		StatusCode: r.status,
		Code:       eb.Code,
		Message:    eb.Message,
	}
}

func (g *Gateway) do(ctx context.Context, method, path, accessToken string, payload any) (response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return response{}, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("accessToken", accessToken)
	}

	res, err := g.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return response{}, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	return response{status: res.StatusCode, body: data}, nil
}

// RequestToken exchanges credentials for an access token. Any non-200
// response means the credentials were rejected: the token endpoint has no
// other documented failure mode.
func (g *Gateway) RequestToken(ctx context.Context, username, password string) (*TokenGrant, error) {
	query := url.Values{}
	query.Set("username", username)
	query.Set("password", password)

	res, err := g.do(ctx, http.MethodGet, "/authentication/token?"+query.Encode(), "", nil)
	if err != nil {
		return nil, err
	}
	if res.status != http.StatusOK {
		return nil, ErrInvalidCredentials
	}

	var grant struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(res.body, &grant); err != nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: malformed token response", ErrNetworkFailure)
	}
	return &TokenGrant{AccessToken: grant.AccessToken}, nil
}

// FetchAuthenticatedAccount resolves the access token's own account
// summary.
func (g *Gateway) FetchAuthenticatedAccount(ctx context.Context, accessToken string) (Account, error) {
	res, err := g.do(ctx, http.MethodGet, "/account/me", accessToken, nil)
	if err != nil {
		return Account{}, err
	}
	switch res.status {
	case http.StatusOK:
		var summary struct {
			Username string `json:"username"`
			BirderID int    `json:"birderId"`
		}
		if err := json.Unmarshal(res.body, &summary); err != nil {
			return Account{}, fmt.Errorf("%w: malformed account response", ErrNetworkFailure)
		}
		return Account{Username: summary.Username, BirderID: summary.BirderID}, nil
	case http.StatusUnauthorized:
		return Account{}, ErrUnauthenticated
	default:
		// Some deployments signal a dead token by body code rather than
		// status. Either way the session is over.
		if eb := res.errorBody(); eb.Code == codeAccessTokenInvalid || eb.Code == codeAccessTokenExpired {
			return Account{}, ErrUnauthenticated
		}
		return Account{}, res.unexpected()
	}
}

// RequestPasswordResetEmail asks the server to mail a reset link. The
// server answers 200 for a registered address and 404 for an unknown one;
// both are success here so that nothing in this client can be used to
// probe which addresses hold accounts.
func (g *Gateway) RequestPasswordResetEmail(ctx context.Context, email string) error {
	res, err := g.do(ctx, http.MethodPost, "/authentication/password-reset", "", map[string]string{
		"email": email,
	})
	if err != nil {
		return err
	}
	if res.status >= 200 && res.status < 300 || res.status == http.StatusNotFound {
		return nil
	}
	return res.unexpected()
}

// SubmitPasswordReset consumes a reset token, setting a new password.
func (g *Gateway) SubmitPasswordReset(ctx context.Context, token, newPassword string) error {
	res, err := g.do(ctx, http.MethodPost, "/authentication/password-reset/"+url.PathEscape(token), "", map[string]string{
		"password": newPassword,
	})
	if err != nil {
		return err
	}
	switch res.status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrTokenNotFound
	case http.StatusGone:
		return ErrTokenExpired
	default:
		return res.unexpected()
	}
}

// UpdatePassword changes the password of a live session after re-verifying
// the old one. Distinct from the reset path: it trusts the session plus
// the old password, not a mailed token.
func (g *Gateway) UpdatePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	res, err := g.do(ctx, http.MethodPost, "/authentication/password", accessToken, map[string]string{
		"oldPassword": oldPassword,
		"newPassword": newPassword,
	})
	if err != nil {
		return err
	}
	if res.status == http.StatusNoContent {
		return nil
	}

	eb := res.errorBody()
	switch {
	case res.status == http.StatusUnauthorized,
		eb.Code == codeOldPasswordIncorrect,
		eb.Code == codeCredentialsIncorrect:
		return ErrInvalidCredentials
	default:
		return res.unexpected()
	}
}

// RequestRegistrationEmail asks the server to mail a registration link.
// Like the reset counterpart, every 4xx is success from the client's
// perspective; the caller shows the same confirmation either way.
func (g *Gateway) RequestRegistrationEmail(ctx context.Context, email string) error {
	res, err := g.do(ctx, http.MethodPost, "/authentication/registration", "", map[string]string{
		"email": email,
	})
	if err != nil {
		return err
	}
	if res.status >= 500 {
		return res.unexpected()
	}
	return nil
}

// FetchRegistrationRequest resolves an invitation token to its associated
// email without creating an account.
func (g *Gateway) FetchRegistrationRequest(ctx context.Context, token string) (*RegistrationRequest, error) {
	res, err := g.do(ctx, http.MethodGet, "/authentication/registration/"+url.PathEscape(token), "", nil)
	if err != nil {
		return nil, err
	}
	switch res.status {
	case http.StatusOK:
		var reg struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(res.body, &reg); err != nil || reg.Email == "" {
			return nil, fmt.Errorf("%w: malformed registration response", ErrNetworkFailure)
		}
		return &RegistrationRequest{Token: token, Email: reg.Email}, nil
	case http.StatusNotFound:
		return nil, ErrTokenNotFound
	default:
		return nil, res.unexpected()
	}
}

// SubmitRegistration consumes an invitation token, creating the account.
// On [ErrUsernameTaken] the token remains valid for a retry with a
// different username.
func (g *Gateway) SubmitRegistration(ctx context.Context, token, username, password string) (Account, error) {
	res, err := g.do(ctx, http.MethodPost, "/authentication/registration/"+url.PathEscape(token), "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return Account{}, err
	}

	switch res.status {
	case http.StatusCreated:
		var created struct {
			ID       int    `json:"id"`
			Username string `json:"username"`
			Birder   struct {
				ID int `json:"id"`
			} `json:"birder"`
		}
		if err := json.Unmarshal(res.body, &created); err != nil {
			return Account{}, fmt.Errorf("%w: malformed account response", ErrNetworkFailure)
		}
		return Account{
			ID:       created.ID,
			Username: created.Username,
			BirderID: created.Birder.ID,
		}, nil
	case http.StatusConflict:
		if res.errorBody().Code == codeUsernameTaken {
			return Account{}, ErrUsernameTaken
		}
		return Account{}, res.unexpected()
	case http.StatusGone:
		return Account{}, ErrTokenExpired
	case http.StatusNotFound:
		return Account{}, ErrTokenNotFound
	case http.StatusBadRequest:
		if res.errorBody().Code == codeRegistrationTokenInvalid {
			return Account{}, ErrTokenNotFound
		}
		return Account{}, res.unexpected()
	default:
		return Account{}, res.unexpected()
	}
}
