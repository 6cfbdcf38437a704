// Package credential caches ephemeral per-backend access credentials and
// refreshes them under a rate-limiting policy.
package credential

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// DefaultRefreshTimeout bounds a single refresh procedure.
const DefaultRefreshTimeout = 30 * time.Second

// Refresher obtains a fresh credential field set for a backend.
type Refresher interface {
	Refresh(ctx context.Context, backend string) (map[string]string, error)
}

// RefreshFunc adapts a function to Refresher.
type RefreshFunc func(ctx context.Context, backend string) (map[string]string, error)

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context, backend string) (map[string]string, error) {
	return f(ctx, backend)
}

type entry struct {
	cred        *domain.Credential
	lastAttempt time.Time
	refreshing  bool
	// gen is bumped when a refresh finishes; a refresh decided against an
	// older generation is served from the cache instead.
	gen uint64
}

// Cache holds one credential per backend for the lifetime of the process.
// It is safe for concurrent use; at most one refresh per backend is in
// flight at any time.
type Cache struct {
	refresher      Refresher
	defaultPolicy  Policy
	policies       map[string]Policy
	refreshTimeout time.Duration
	now            func() time.Time
	log            logrus.FieldLogger

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithPolicy sets the default policy for all backends.
func WithPolicy(p Policy) Option {
	return func(c *Cache) {
		c.defaultPolicy = p.Merge(DefaultPolicy())
	}
}

// WithBackendPolicy overrides the policy for one backend. Zero fields fall
// back to the default policy.
func WithBackendPolicy(backend string, p Policy) Option {
	return func(c *Cache) {
		c.policies[backend] = p
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithRefreshTimeout bounds each refresh procedure.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.refreshTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) {
		c.log = log
	}
}

// NewCache creates a Cache that refreshes through r.
func NewCache(r Refresher, opts ...Option) *Cache {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Cache{
		refresher:      r,
		defaultPolicy:  DefaultPolicy(),
		policies:       make(map[string]Policy),
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		log:            quiet,
		entries:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh returns the credential for backend, refreshing it first when
// the policy requires it. force requests a refresh because the backend
// reported an expired credential.
func (c *Cache) GetOrRefresh(ctx context.Context, backend string, force bool) (*domain.Credential, error) {
	reason := ReasonNone
	if force {
		reason = ReasonForce
	}
	return c.Get(ctx, backend, reason)
}

// Revalidate requests a soft refresh, used when a result looked empty or
// unauthenticated.
func (c *Cache) Revalidate(ctx context.Context, backend string) (*domain.Credential, error) {
	return c.Get(ctx, backend, ReasonSoft)
}

// Peek returns the cached credential without refreshing.
func (c *Cache) Peek(backend string) (*domain.Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[backend]
	if !ok || e.cred == nil {
		return nil, false
	}
	return e.cred.Clone(), true
}

// Get returns the credential for backend, refreshing according to reason
// and the backend policy. Callers arriving while a refresh is in flight wait
// for it and observe its result.
func (c *Cache) Get(ctx context.Context, backend string, reason Reason) (*domain.Credential, error) {
	c.mu.Lock()
	e := c.entry(backend)
	if !e.refreshing && !c.policy(backend).needsRefresh(e, reason, c.now()) {
		cred := e.cred.Clone()
		c.mu.Unlock()
		if cred == nil {
			return nil, fmt.Errorf("%s: %w", backend, domain.ErrCredentialUnavailable)
		}
		return cred, nil
	}
	gen := e.gen
	c.mu.Unlock()

	ch := c.group.DoChan(backend, func() (any, error) {
		return c.refresh(ctx, backend, reason, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Credential).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached credential for backend. The next Get refreshes
// subject to the force interval.
func (c *Cache) Invalidate(backend string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[backend]; ok {
		e.cred = nil
	}
}

func (c *Cache) refresh(ctx context.Context, backend string, reason Reason, gen uint64) (*domain.Credential, error) {
	c.mu.Lock()
	e := c.entry(backend)
	if e.gen != gen {
		// another refresh completed since the caller decided
		cred := e.cred
		c.mu.Unlock()
		if cred == nil {
			return nil, fmt.Errorf("%s: %w", backend, domain.ErrCredentialUnavailable)
		}
		return cred, nil
	}
	e.refreshing = true
	e.lastAttempt = c.now()
	c.mu.Unlock()

	log := c.log.WithFields(logrus.Fields{
		"backend": backend,
		"reason":  reason.String(),
	})
	log.Debug("refreshing credential")

	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	fields, err := c.refresher.Refresh(refreshCtx, backend)

	c.mu.Lock()
	defer c.mu.Unlock()

	e.refreshing = false
	e.gen++

	if err != nil {
		if e.cred != nil {
			log.WithError(err).Warn("credential refresh failed, keeping previous credential")
			return e.cred, nil
		}
		log.WithError(err).Error("credential refresh failed")
		return nil, fmt.Errorf("%s: %w: %v", backend, domain.ErrCredentialUnavailable, err)
	}

	e.cred = &domain.Credential{
		Backend:  backend,
		Fields:   fields,
		IssuedAt: c.now(),
	}
	log.Info("credential refreshed")
	return e.cred, nil
}

func (c *Cache) entry(backend string) *entry {
	e, ok := c.entries[backend]
	if !ok {
		e = &entry{}
		c.entries[backend] = e
	}
	return e
}

func (c *Cache) policy(backend string) Policy {
	if p, ok := c.policies[backend]; ok {
		return p.Merge(c.defaultPolicy)
	}
	return c.defaultPolicy
}
