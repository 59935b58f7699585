package avesclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aveslog/avesclient/internal/events"
	"github.com/aveslog/avesclient/jwt"
	"github.com/aveslog/avesclient/session"
)

// Client owns the session lifecycle. It is the sole writer of the stored
// session; everything else observes it through State, Account,
// GetAccessToken and the subscriber callbacks. Construct it through
// [Builder].
//
// All methods are safe for concurrent use.
type Client struct {
	cfg        Config
	gateway    *Gateway
	store      session.Store
	provider   CredentialsProvider
	metrics    *Metrics
	dispatcher *events.Dispatcher
	built      bool

	now func() time.Time

	mu      sync.Mutex
	state   SessionState
	session *session.Session
	refresh *refreshCall

	subMu       sync.Mutex
	subscribers map[string]func()
}

// refreshCall is one in-flight token renewal. token and err are written
// once, before done is closed; every waiter reads them only after done.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// State returns the client's position in the session lifecycle.
func (c *Client) State() SessionState {
	if c == nil {
		return StateAnonymous
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Account returns the signed-in account, ok false when anonymous.
func (c *Client) Account() (Account, bool) {
	if c == nil {
		return Account{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Account{}, false
	}
	return Account{
		ID:       c.session.AccountID,
		Username: c.session.Username,
		BirderID: c.session.BirderID,
	}, true
}

// Login exchanges credentials for a session. Empty credentials are
// rejected locally; the server is never asked about them. A failed login
// leaves the client anonymous even if a session was held before the
// attempt.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c == nil || !c.built {
		return ErrClientNotReady
	}
	if username == "" || password == "" {
		c.metrics.Inc(MetricLoginFailure)
		return ErrInvalidCredentials
	}

	c.mu.Lock()
	c.state = StateAuthenticating
	// A login supersedes any in-flight renewal; its result is discarded.
	c.refresh = nil
	c.mu.Unlock()

	grant, err := c.gateway.RequestToken(ctx, username, password)
	if err != nil {
		return c.failLogin(ctx, username, err)
	}
	account, err := c.gateway.FetchAuthenticatedAccount(ctx, grant.AccessToken)
	if err != nil {
		return c.failLogin(ctx, username, err)
	}

	s := c.buildSession(grant.AccessToken, account)

	c.mu.Lock()
	c.session = s
	c.state = StateAuthenticated
	c.mu.Unlock()

	if err := c.store.Save(ctx, s); err != nil {
		log.Printf("avesclient: saving session: %v", err)
	}
	c.metrics.Inc(MetricLoginSuccess)
	c.emit("login", username, true, nil, nil)
	return nil
}

func (c *Client) failLogin(ctx context.Context, username string, cause error) error {
	c.mu.Lock()
	hadSession := c.session != nil
	c.session = nil
	c.state = StateAnonymous
	c.mu.Unlock()

	if hadSession {
		// A failed re-login tears down the session it was replacing like
		// any other invalidation: storage cleared, subscribers notified.
		// The login context may already be dead; the teardown still runs.
		_ = c.finishUnauthenticate(context.WithoutCancel(ctx), "unauthenticate", cause)
	}
	c.metrics.Inc(MetricLoginFailure)
	c.emit("login", username, false, cause, nil)
	return cause
}

// GetAccessToken returns a token fit for an authenticated request. An
// unexpired cached token is returned immediately. A token inside its
// renewal window starts exactly one renewal; every concurrent caller waits
// on that same renewal and observes its outcome. A failed renewal forces
// the client anonymous before any waiter is released.
//
// Without a [CredentialsProvider] no renewal is possible: the cached token
// is served until it actually lapses, after which expiry escalates to
// Unauthenticate.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	if c == nil || !c.built {
		return "", ErrClientNotReady
	}
	start := c.now()

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return "", ErrUnauthenticated
	}

	if !jwt.NeedsRefresh(c.session.Expiry(), c.cfg.Session.RefreshLeeway, c.now()) {
		token := c.session.AccessToken
		c.mu.Unlock()
		c.metrics.Inc(MetricTokenCacheHit)
		c.metrics.Observe(MetricTokenLatency, c.now().Sub(start))
		return token, nil
	}

	if call := c.refresh; call != nil {
		c.mu.Unlock()
		c.metrics.Inc(MetricRefreshCoalesced)
		return c.awaitRefresh(ctx, call, start)
	}

	if c.provider == nil {
		if c.session.Expired(c.now()) {
			c.mu.Unlock()
			_ = c.Unauthenticate(ctx)
			return "", fmt.Errorf("%w: %w", ErrUnauthenticated, ErrNoCredentialsProvider)
		}
		// Inside the leeway window but still valid. Nothing can renew it,
		// so serve it until it lapses.
		token := c.session.AccessToken
		c.mu.Unlock()
		c.metrics.Inc(MetricTokenCacheHit)
		return token, nil
	}

	call := &refreshCall{done: make(chan struct{})}
	c.refresh = call
	c.state = StateRefreshing
	c.mu.Unlock()

	// The renewal runs to completion on its own context: a caller that
	// gives up may stop waiting, but other waiters still need the result.
	go c.runRefresh(call)

	return c.awaitRefresh(ctx, call, start)
}

func (c *Client) awaitRefresh(ctx context.Context, call *refreshCall, start time.Time) (string, error) {
	select {
	case <-call.done:
		c.metrics.Observe(MetricTokenLatency, c.now().Sub(start))
		return call.token, call.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) runRefresh(call *refreshCall) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.API.Timeout)
	defer cancel()

	s, err := c.renewSession(ctx)

	c.mu.Lock()
	if c.refresh != call {
		// Superseded by a logout or a fresh login while renewing. Discard
		// the result; waiters re-request against the new state.
		c.mu.Unlock()
		call.err = ErrUnauthenticated
		close(call.done)
		return
	}
	c.refresh = nil

	if err != nil {
		wiped := c.unauthenticateLocked()
		c.mu.Unlock()

		c.metrics.Inc(MetricRefreshFailure)
		if wiped {
			// The renewal context is likely dead when the renewal timed
			// out; the teardown must still clear durable storage.
			c.finishUnauthenticate(context.WithoutCancel(ctx), "session_expired", err)
		}
		call.err = err
		close(call.done)
		return
	}

	c.session = s
	c.state = StateAuthenticated
	c.mu.Unlock()

	if err := c.store.Save(ctx, s); err != nil {
		log.Printf("avesclient: saving session: %v", err)
	}
	c.metrics.Inc(MetricRefreshSuccess)
	c.emit("token_refreshed", s.Username, true, nil, nil)

	call.token = s.AccessToken
	close(call.done)
}

func (c *Client) renewSession(ctx context.Context) (*session.Session, error) {
	username, password, err := c.provider.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	grant, err := c.gateway.RequestToken(ctx, username, password)
	if err != nil {
		return nil, err
	}
	account, err := c.gateway.FetchAuthenticatedAccount(ctx, grant.AccessToken)
	if err != nil {
		return nil, err
	}
	return c.buildSession(grant.AccessToken, account), nil
}

func (c *Client) buildSession(token string, account Account) *session.Session {
	s := &session.Session{
		SchemaVersion: session.CurrentSchemaVersion,
		AccessToken:   token,
		AccountID:     account.ID,
		Username:      account.Username,
		BirderID:      account.BirderID,
		IssuedAt:      c.now().Unix(),
	}
	if s.AccountID == 0 {
		// The token subject carries the account ID; the account summary
		// endpoint does not.
		if claims, err := jwt.Inspect(token); err == nil {
			if id, err := strconv.Atoi(claims.Subject); err == nil {
				s.AccountID = id
			}
		}
	}
	if expiry, ok, err := jwt.Expiry(token); err == nil && ok {
		s.ExpiresAt = expiry.Unix()
	}
	return s
}

// Unauthenticate drops the session, clears durable storage and notifies
// every subscriber before returning. It is idempotent: a second call on an
// already-anonymous client does nothing and notifies no one.
func (c *Client) Unauthenticate(ctx context.Context) error {
	return c.unauthenticate(ctx, "unauthenticate")
}

// Logout is Unauthenticate under the name the UI verbs use. The aveslog
// API has no server-side logout; dropping the token is the whole deal.
func (c *Client) Logout(ctx context.Context) error {
	return c.unauthenticate(ctx, "logout")
}

func (c *Client) unauthenticate(ctx context.Context, eventType string) error {
	if c == nil || !c.built {
		return ErrClientNotReady
	}

	c.mu.Lock()
	transitioned := c.unauthenticateLocked()
	c.mu.Unlock()

	if !transitioned {
		return nil
	}
	return c.finishUnauthenticate(ctx, eventType, nil)
}

// unauthenticateLocked performs the in-memory transition. Callers hold
// c.mu and run finishUnauthenticate after releasing it when true is
// returned.
func (c *Client) unauthenticateLocked() bool {
	if c.state == StateAnonymous && c.session == nil {
		return false
	}
	c.session = nil
	c.state = StateAnonymous
	c.refresh = nil
	return true
}

// finishUnauthenticate runs the side effects of an invalidation: storage
// clear, metrics, synchronous subscriber broadcast. Subscribers are called
// outside the state mutex, so a callback reading State observes Anonymous
// without deadlocking.
func (c *Client) finishUnauthenticate(ctx context.Context, eventType string, cause error) error {
	var clearErr error
	if err := c.store.Clear(ctx); err != nil {
		log.Printf("avesclient: clearing stored session: %v", err)
		clearErr = err
	}

	c.metrics.Inc(MetricUnauthenticate)
	c.notifySubscribers()
	c.emit(eventType, "", cause == nil, cause, nil)
	return clearErr
}

// UpdatePassword changes the signed-in account's password after
// re-verifying the current one. ErrInvalidCredentials means the old
// password was wrong; the session itself stays valid.
func (c *Client) UpdatePassword(ctx context.Context, oldPassword, newPassword string) error {
	if c == nil || !c.built {
		return ErrClientNotReady
	}

	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	if err := c.gateway.UpdatePassword(ctx, token, oldPassword, newPassword); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			c.metrics.Inc(MetricPasswordChangeInvalidOld)
		}
		c.emit("password_change", "", false, err, nil)
		return err
	}

	c.metrics.Inc(MetricPasswordChangeSuccess)
	c.emit("password_change", "", true, nil, nil)
	return nil
}

// Subscribe registers fn to be called synchronously whenever the session
// is invalidated. It returns an opaque handle for Unsubscribe. fn must not
// call back into Subscribe, Unsubscribe or Unauthenticate.
func (c *Client) Subscribe(fn func()) string {
	id := uuid.NewString()

	c.subMu.Lock()
	c.subscribers[id] = fn
	c.subMu.Unlock()

	return id
}

// Unsubscribe removes a subscriber by its handle. Unknown handles are
// ignored.
func (c *Client) Unsubscribe(id string) {
	c.subMu.Lock()
	delete(c.subscribers, id)
	c.subMu.Unlock()
}

func (c *Client) notifySubscribers() {
	c.subMu.Lock()
	fns := make([]func(), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Metrics returns the client's metrics instance. Nil-safe and always
// non-nil after Build; a disabled instance records nothing.
func (c *Client) Metrics() *Metrics {
	if c == nil {
		return nil
	}
	return c.metrics
}

// Close flushes and stops the event dispatcher. The client remains usable
// afterwards; further events are dropped.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.dispatcher.Close()
}

func (c *Client) emit(eventType, username string, success bool, cause error, metadata map[string]string) {
	if c.dispatcher == nil {
		return
	}
	e := events.Event{
		Timestamp: c.now(),
		EventType: eventType,
		Username:  username,
		Success:   success,
		Metadata:  metadata,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	c.dispatcher.Emit(context.Background(), e)
}
