package avesclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/aveslog/avesclient/internal/events"
	"github.com/aveslog/avesclient/session"
)

// Builder assembles a [Client]. Zero or more With calls, then one Build.
// A Builder is single-use and not safe for concurrent use.
type Builder struct {
	cfg      Config
	cfgSet   bool
	store    session.Store
	http     *http.Client
	provider CredentialsProvider
	sink     EventSink
	built    bool
}

// New returns an empty Builder. A configuration must be supplied with
// WithConfig before Build; [DefaultConfig] is the usual starting point.
func New() *Builder {
	return &Builder{}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	b.cfgSet = true
	return b
}

// WithStore sets the durable session store. Defaults to an in-memory
// store, which makes every session ephemeral.
func (b *Builder) WithStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithHTTPClient sets the HTTP client used by the gateway. Defaults to one
// bounded by the configured API timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.http = client
	return b
}

// WithCredentialsProvider enables token renewal. Without one, an expired
// token forces the client anonymous instead.
func (b *Builder) WithCredentialsProvider(provider CredentialsProvider) *Builder {
	b.provider = provider
	return b
}

// WithEventSink sets the destination for lifecycle events. Only consulted
// when Config.Events.Enabled is set.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled toggles the in-process metrics counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.cfg.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, prepares storage (wiping it on an
// app-version mismatch) and restores any stored session. The builder is
// spent afterwards.
func (b *Builder) Build(ctx context.Context) (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if !b.cfgSet {
		return nil, errors.New("configuration required, use WithConfig")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store := b.store
	if store == nil {
		store = session.NewMemoryStore()
	}

	dispatcher := events.NewDispatcher(events.Config{
		Enabled:    b.cfg.Events.Enabled,
		BufferSize: b.cfg.Events.BufferSize,
		DropIfFull: b.cfg.Events.DropIfFull,
	}, b.sink)

	c := &Client{
		cfg:         b.cfg,
		gateway:     NewGateway(b.cfg.API, b.http),
		store:       store,
		provider:    b.provider,
		metrics:     NewMetrics(b.cfg.Metrics),
		dispatcher:  dispatcher,
		built:       true,
		now:         time.Now,
		state:       StateAnonymous,
		subscribers: make(map[string]func()),
	}

	wiped, err := session.Prepare(ctx, store, b.cfg.Session.AppVersion)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("preparing session storage: %w", err)
	}
	if wiped {
		log.Printf("avesclient: app version changed, storage wiped")
	}

	c.restoreSession(ctx)

	return c, nil
}

// restoreSession revives a stored session. Best effort: a missing,
// unreadable or expired-beyond-renewal session just leaves the client
// anonymous.
func (c *Client) restoreSession(ctx context.Context) {
	s, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("avesclient: loading stored session: %v", err)
		}
		return
	}

	if s.Expired(c.now()) && c.provider == nil {
		if err := c.store.Clear(ctx); err != nil {
			log.Printf("avesclient: clearing stored session: %v", err)
		}
		return
	}

	c.mu.Lock()
	c.session = s
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.metrics.Inc(MetricSessionRestored)
	c.emit("session_restored", s.Username, true, nil, nil)
}
