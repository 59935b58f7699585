package avesclient

import (
	"context"
	"errors"
	"sync"
)

// RequestPasswordResetEmail asks the server to mail a password-reset link
// to email. A nil return means only "the request was accepted": whether an
// account exists behind the address is not knowable through this client,
// and callers must show the same confirmation either way.
func (c *Client) RequestPasswordResetEmail(ctx context.Context, email string) error {
	if c == nil || !c.built {
		return ErrClientNotReady
	}
	if err := c.gateway.RequestPasswordResetEmail(ctx, email); err != nil {
		c.emit("password_reset_email", "", false, err, nil)
		return err
	}
	c.metrics.Inc(MetricPasswordResetRequest)
	c.emit("password_reset_email", "", true, nil, nil)
	return nil
}

// PasswordResetFlow consumes a mailed reset token to set a new password.
// One success consumes the flow; an expired and an unknown token are both
// reported as the bare [ErrResetLinkInvalid] so the message shown to the
// user cannot leak which it was.
type PasswordResetFlow struct {
	client *Client
	token  string

	mu    sync.Mutex
	state FlowState
}

// NewPasswordResetFlow starts a consume flow for a mailed reset token.
// The token is not validated up front; the server judges it at Submit.
func (c *Client) NewPasswordResetFlow(token string) *PasswordResetFlow {
	return &PasswordResetFlow{
		client: c,
		token:  token,
		state:  FlowReady,
	}
}

// State returns the flow's current state.
func (f *PasswordResetFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Submit sets newPassword using the reset token. Exactly one call can
// succeed; afterwards the flow returns ErrFlowConsumed. A rejected token
// kills the flow with ErrResetLinkInvalid. A transport failure leaves the
// flow ready for a retry.
func (f *PasswordResetFlow) Submit(ctx context.Context, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	f.mu.Lock()
	switch f.state {
	case FlowSucceeded:
		f.mu.Unlock()
		return ErrFlowConsumed
	case FlowInvalid:
		f.mu.Unlock()
		return ErrResetLinkInvalid
	case FlowReady:
	default:
		f.mu.Unlock()
		return ErrFlowNotReady
	}
	f.state = FlowSubmitting
	f.mu.Unlock()

	err := f.client.gateway.SubmitPasswordReset(ctx, f.token, newPassword)

	f.mu.Lock()
	switch {
	case err == nil:
		f.state = FlowSucceeded
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		f.state = FlowInvalid
	default:
		f.state = FlowReady
	}
	f.mu.Unlock()

	switch {
	case err == nil:
		f.client.metrics.Inc(MetricPasswordResetConsumeSuccess)
		f.client.emit("password_reset", "", true, nil, nil)
		return nil
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		f.client.metrics.Inc(MetricPasswordResetConsumeFailure)
		f.client.emit("password_reset", "", false, ErrResetLinkInvalid, nil)
		// Deliberately not wrapped: the caller must not be able to tell
		// expired from unknown.
		return ErrResetLinkInvalid
	default:
		return err
	}
}
