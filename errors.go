package avesclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the server rejects a
	// username/password pair, either at login or on a password update.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned when a one-shot token (registration or
	// password reset) has passed its server-side deadline.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotFound is returned when a one-shot token does not resolve
	// to any pending request, typically because it was already consumed.
	ErrTokenNotFound = errors.New("token not found")
	// ErrUsernameTaken is returned by registration submission when the
	// requested username already belongs to an account. The registration
	// token stays valid and may be retried with a different username.
	ErrUsernameTaken = errors.New("username taken")
	// ErrNetworkFailure wraps transport-level failures (connection refused,
	// timeout, malformed response body). The client never retries these on
	// its own.
	ErrNetworkFailure = errors.New("network failure")
	// ErrUnauthenticated is returned when an operation needs a live session
	// and there is none, or when a renewal attempt ended in forced logout.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrResetLinkInvalid is the single error the password-reset consume
	// flow surfaces for both an expired and an unknown reset token. The two
	// causes are deliberately not distinguished.
	ErrResetLinkInvalid = errors.New("password reset link invalid or expired")
	// ErrFlowConsumed is returned when a one-shot flow (registration or
	// password-reset consumption) is submitted again after it already
	// reached a terminal success.
	ErrFlowConsumed = errors.New("flow already consumed")
	// ErrFlowNotReady is returned when a registration flow is submitted
	// before its registration request has been loaded.
	ErrFlowNotReady = errors.New("flow not ready")
	// ErrClientNotReady is returned when a Client method is invoked on a
	// nil or incompletely built receiver.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrNoCredentialsProvider is returned when a token renewal is needed
	// but the client was built without a credentials provider.
	ErrNoCredentialsProvider = errors.New("no credentials provider configured")
)

// UnexpectedResponseError reports a server response that matched no known
// status/code combination. The mapping in the gateway is exhaustive for the
// documented API; anything else lands here rather than being silently
// coerced into a near-miss category.
type UnexpectedResponseError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *UnexpectedResponseError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("unexpected response: status %d, code %d: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("unexpected response: status %d: %s", e.StatusCode, e.Message)
}
