package avesclient

import (
	"context"
	"io"

	"github.com/aveslog/avesclient/internal/events"
)

// Account identifies the signed-in principal. ID is only populated by
// registration (the account summary returned to an authenticated fetch
// omits it).
type Account struct {
	ID       int
	Username string
	BirderID int
}

// RegistrationRequest is a server-issued, time-limited invitation to create
// an account. It is immutable once fetched and consumed by exactly one
// successful credential submission.
type RegistrationRequest struct {
	Token string
	Email string
}

// TokenGrant is the result of a successful token exchange.
type TokenGrant struct {
	AccessToken string
}

// CredentialsProvider supplies a username/password pair when the client
// needs to renew an expiring access token. The aveslog API has no refresh
// endpoint, so renewal re-executes the token exchange. Implementations that
// cannot produce credentials (interactive clients that never store the
// password) should not be registered at all; the client then escalates
// expiry to Unauthenticate.
type CredentialsProvider interface {
	Credentials(ctx context.Context) (username, password string, err error)
}

// CredentialsProviderFunc adapts a function to the CredentialsProvider
// interface.
type CredentialsProviderFunc func(ctx context.Context) (string, string, error)

// Credentials implements CredentialsProvider.
func (f CredentialsProviderFunc) Credentials(ctx context.Context) (string, string, error) {
	return f(ctx)
}

// SessionState is the client's position in the session lifecycle.
type SessionState uint8

const (
	// StateAnonymous means no session is held.
	StateAnonymous SessionState = iota
	// StateAuthenticating means a login exchange is in flight.
	StateAuthenticating
	// StateAuthenticated means a session with an unexpired token is held.
	StateAuthenticated
	// StateRefreshing means a session is held but its token is being
	// renewed; concurrent token requests wait on the renewal.
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Wire-level error codes used by the aveslog API in 4xx bodies.
const (
	codeUsernameTaken            = 3
	codeCredentialsIncorrect     = 4
	codeOldPasswordIncorrect     = 7
	codeAccessTokenInvalid       = 8
	codeAccessTokenExpired       = 9
	codeRegistrationTokenInvalid = 13
)

// Event is a structured lifecycle event emitted by the client.
type Event = events.Event

// EventSink receives [Event] values from the client's dispatcher.
type EventSink = events.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = events.ChannelSink

// JSONWriterSink is an [EventSink] that writes JSON-encoded events, one per
// line, to an [io.Writer].
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
