package avesclient

import (
	"context"
	"errors"
	"sync"
)

// FlowState is the position of a one-shot flow (registration or password
// reset consumption) in its lifecycle.
type FlowState uint8

const (
	// FlowLoading means the flow's server-side token has not been resolved
	// yet.
	FlowLoading FlowState = iota
	// FlowReady means the token resolved and the flow accepts a submission.
	FlowReady
	// FlowSubmitting means a submission is in flight.
	FlowSubmitting
	// FlowSucceeded means the flow completed; further submissions return
	// ErrFlowConsumed.
	FlowSucceeded
	// FlowConflict means the last submission was rejected for a taken
	// username; the token is still valid and a retry is allowed.
	FlowConflict
	// FlowInvalid means the token failed to resolve or was rejected; the
	// flow is dead.
	FlowInvalid
)

func (s FlowState) String() string {
	switch s {
	case FlowLoading:
		return "loading"
	case FlowReady:
		return "ready"
	case FlowSubmitting:
		return "submitting"
	case FlowSucceeded:
		return "succeeded"
	case FlowConflict:
		return "conflict"
	case FlowInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// RegistrationFlow drives account creation from a mailed invitation token:
// resolve the token to its email, collect a username and password, submit.
// A username conflict keeps the token alive for retries; one success
// consumes the flow for good.
//
// Safe for concurrent use, though a registration form rarely needs it.
type RegistrationFlow struct {
	client *Client
	token  string

	mu      sync.Mutex
	state   FlowState
	request *RegistrationRequest
	taken   []string
	account Account
}

// RequestRegistrationEmail asks the server to mail a registration link to
// email. The outcome is deliberately identical whether or not the address
// already holds an account.
func (c *Client) RequestRegistrationEmail(ctx context.Context, email string) error {
	if c == nil || !c.built {
		return ErrClientNotReady
	}
	if err := c.gateway.RequestRegistrationEmail(ctx, email); err != nil {
		c.emit("registration_email", "", false, err, nil)
		return err
	}
	c.emit("registration_email", "", true, nil, nil)
	return nil
}

// NewRegistrationFlow starts a flow for a mailed invitation token. Call
// Load before Submit.
func (c *Client) NewRegistrationFlow(token string) *RegistrationFlow {
	return &RegistrationFlow{
		client: c,
		token:  token,
		state:  FlowLoading,
	}
}

// Load resolves the invitation token to its registration request. On
// failure the flow becomes FlowInvalid and stays that way.
func (f *RegistrationFlow) Load(ctx context.Context) error {
	f.mu.Lock()
	if f.state != FlowLoading {
		f.mu.Unlock()
		return ErrFlowConsumed
	}
	f.mu.Unlock()

	request, err := f.client.gateway.FetchRegistrationRequest(ctx, f.token)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrTokenExpired) {
			f.state = FlowInvalid
			f.client.metrics.Inc(MetricRegistrationTokenInvalid)
		}
		return err
	}
	f.request = request
	f.state = FlowReady
	return nil
}

// State returns the flow's current state.
func (f *RegistrationFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Email returns the address the invitation was mailed to, empty until Load
// succeeds.
func (f *RegistrationFlow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.request == nil {
		return ""
	}
	return f.request.Email
}

// TakenUsernames returns every username this flow has had rejected, in
// submission order.
func (f *RegistrationFlow) TakenUsernames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.taken))
	copy(out, f.taken)
	return out
}

// Account returns the created account, ok false before success.
func (f *RegistrationFlow) Account() (Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != FlowSucceeded {
		return Account{}, false
	}
	return f.account, true
}

// Submit creates the account. ErrUsernameTaken leaves the flow in
// FlowConflict, ready for a retry with a different username. A transport
// failure leaves the flow where it was. Success consumes the flow and,
// when Config.Registration.AutoLogin is set, immediately logs in with the
// new credentials; a failed auto-login is returned but does not undo the
// registration.
func (f *RegistrationFlow) Submit(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}

	f.mu.Lock()
	switch f.state {
	case FlowSucceeded:
		f.mu.Unlock()
		return ErrFlowConsumed
	case FlowReady, FlowConflict:
	default:
		f.mu.Unlock()
		return ErrFlowNotReady
	}
	resume := f.state
	f.state = FlowSubmitting
	f.mu.Unlock()

	account, err := f.client.gateway.SubmitRegistration(ctx, f.token, username, password)

	f.mu.Lock()
	switch {
	case err == nil:
		f.state = FlowSucceeded
		f.account = account
	case errors.Is(err, ErrUsernameTaken):
		f.state = FlowConflict
		f.recordTaken(username)
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		f.state = FlowInvalid
	default:
		f.state = resume
	}
	f.mu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, ErrUsernameTaken):
		f.client.metrics.Inc(MetricRegistrationConflict)
		f.client.emit("registration", username, false, err, nil)
		return err
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenExpired):
		f.client.metrics.Inc(MetricRegistrationTokenInvalid)
		f.client.emit("registration", username, false, err, nil)
		return err
	default:
		return err
	}

	f.client.metrics.Inc(MetricRegistrationSuccess)
	f.client.emit("registration", username, true, nil, nil)

	if f.client.cfg.Registration.AutoLogin {
		return f.client.Login(ctx, username, password)
	}
	return nil
}

func (f *RegistrationFlow) recordTaken(username string) {
	for _, t := range f.taken {
		if t == username {
			return
		}
	}
	f.taken = append(f.taken, username)
}
