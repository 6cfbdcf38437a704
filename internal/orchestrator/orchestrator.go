// Package orchestrator runs translation sessions: it resolves the language
// pair, splits the text, dispatches every chunk to a backend concurrently
// and aggregates the results in chunk order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pricofy/translation-gateway/internal/backend"
	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/language"
	"github.com/pricofy/translation-gateway/internal/logging"
	"github.com/pricofy/translation-gateway/internal/transport"
)

const (
	// DefaultSlot is the slot used when a request names none.
	DefaultSlot = "primary"

	// backSuffix names the slot of back-translation sessions.
	backSuffix = "/back"

	// maxHops bounds chained backend routes.
	maxHops = 4

	tracerName = "github.com/pricofy/translation-gateway/internal/orchestrator"
)

// CredentialSource hands out backend credentials. *credential.Cache
// implements it.
type CredentialSource interface {
	GetOrRefresh(ctx context.Context, backend string, force bool) (*domain.Credential, error)
	Revalidate(ctx context.Context, backend string) (*domain.Credential, error)
}

// Deps are the collaborators of an Orchestrator. Store may be nil, in which
// case the built-in preference defaults are used.
type Deps struct {
	Registry    *backend.Registry
	Transport   transport.Transport
	Credentials CredentialSource
	Store       config.Store
}

// Orchestrator starts sessions and tracks the current session of each slot.
type Orchestrator struct {
	registry  *backend.Registry
	transport transport.Transport
	creds     CredentialSource
	store     config.Store

	log    logrus.FieldLogger
	tracer trace.Tracer

	callTimeout    time.Duration
	sessionTimeout time.Duration
	maxConcurrency int
	defaultBackend string
	langs          config.LanguageSettings

	mu    sync.Mutex
	slots map[string]*Session

	// historyMu serializes read-modify-write updates of the pair history.
	historyMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithTracerProvider sets the tracer provider. The global provider is used
// by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// WithCallTimeout bounds every backend call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithSessionTimeout bounds a whole session.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.sessionTimeout = d
	}
}

// WithMaxConcurrency limits the concurrent chunk calls of one session.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrency = n
	}
}

// WithDefaultBackend sets the backend used when neither the request nor the
// stored preferences name one.
func WithDefaultBackend(id string) Option {
	return func(o *Orchestrator) {
		o.defaultBackend = id
	}
}

// WithSettings applies the engine settings.
func WithSettings(s *config.Settings) Option {
	return func(o *Orchestrator) {
		o.callTimeout = s.CallTimeout
		o.sessionTimeout = s.SessionTimeout
		o.maxConcurrency = s.MaxConcurrency
		o.defaultBackend = s.DefaultBackend
		o.langs = s.Languages
	}
}

// New creates an Orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Transport == nil || deps.Credentials == nil {
		return nil, errors.New("orchestrator: registry, transport and credentials are required")
	}

	defaults := config.Default()
	o := &Orchestrator{
		registry:  deps.Registry,
		transport: deps.Transport,
		creds:     deps.Credentials,
		store:     deps.Store,
		log:       logging.Discard(),
		tracer:    otel.GetTracerProvider().Tracer(tracerName),
		slots:     make(map[string]*Session),
	}
	WithSettings(defaults)(o)
	for _, opt := range opts {
		opt(o)
	}

	if o.maxConcurrency < 1 {
		o.maxConcurrency = 1
	}
	if o.callTimeout <= 0 {
		o.callTimeout = defaults.CallTimeout
	}
	if o.sessionTimeout <= 0 {
		o.sessionTimeout = defaults.SessionTimeout
	}
	return o, nil
}

type translateOptions struct {
	slot string
	back bool
}

// TranslateOption configures one Translate call.
type TranslateOption func(*translateOptions)

// WithSlot names the logical input the session belongs to. A new session
// supersedes the previous one in the same slot.
func WithSlot(slot string) TranslateOption {
	return func(t *translateOptions) {
		t.slot = slot
	}
}

// WithBackTranslation translates the result back into the source language
// once the session completes.
func WithBackTranslation() TranslateOption {
	return func(t *translateOptions) {
		t.back = true
	}
}

// plan is a fully resolved session request.
type plan struct {
	req       domain.Request
	desc      backend.Descriptor
	prefs     config.Preferences
	slot      string
	back      bool
	restarted bool
}

// Translate starts a session for req and returns immediately. The session
// runs until it completes, fails, is cancelled or is superseded; ctx bounds
// its lifetime.
func (o *Orchestrator) Translate(ctx context.Context, req domain.Request, opts ...TranslateOption) (*Session, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, domain.ErrEmptyText
	}

	topts := translateOptions{slot: DefaultSlot}
	for _, opt := range opts {
		opt(&topts)
	}

	prefs := config.LoadPreferences(ctx, o.store, o.langs, o.log)

	desc, err := o.pickBackend(req.Backend, prefs.Provider)
	if err != nil {
		return nil, err
	}

	source := language.Normalize(req.SourceLang)
	if source == language.Auto {
		source = ""
	}
	target := language.ResolveTarget(source, req.TargetLang, prefs.Language)

	p := plan{
		req: domain.Request{
			Text:       req.Text,
			SourceLang: source,
			TargetLang: target,
			Backend:    desc.ID,
		},
		desc:  desc,
		prefs: prefs,
		slot:  topts.slot,
		back:  topts.back || prefs.BackTranslation,
	}
	return o.start(ctx, p), nil
}

// Current returns the session occupying slot, if any.
func (o *Orchestrator) Current(slot string) *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slots[slot]
}

// Release forgets slot and its back-translation slot once their sessions
// have ended. Callers that use one-off slots release them after Wait.
func (o *Orchestrator) Release(slot string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range []string{slot, slot + backSuffix} {
		if s, ok := o.slots[name]; ok && s.State().Terminal() {
			delete(o.slots, name)
		}
	}
}

// pickBackend prefers the requested backend, then the stored provider, then
// the configured default. A stale stored provider is ignored.
func (o *Orchestrator) pickBackend(requested, provider string) (backend.Descriptor, error) {
	if requested = strings.TrimSpace(requested); requested != "" {
		return o.registry.Lookup(requested)
	}
	if provider != "" {
		desc, err := o.registry.Lookup(provider)
		if err == nil {
			return desc, nil
		}
		o.log.WithField("provider", provider).Warn("stored provider is unknown, using default backend")
	}
	desc, err := o.registry.Lookup(o.defaultBackend)
	if err != nil {
		return backend.Descriptor{}, fmt.Errorf("default backend: %w", err)
	}
	return desc, nil
}

// start creates a session for p, makes it current in its slot and runs it.
func (o *Orchestrator) start(parent context.Context, p plan) *Session {
	s := newSession(o, parent, p)
	o.launch(s, nil)
	return s
}

// launch makes s current in its slot and runs it. With replaces set, s only
// takes the slot if replaces still holds it; otherwise s starts superseded.
func (o *Orchestrator) launch(s *Session, replaces *Session) {
	slot := s.plan.slot

	o.mu.Lock()
	prev := o.slots[slot]
	if replaces != nil && prev != replaces {
		o.mu.Unlock()
		s.supersede()
		go s.run()
		return
	}
	o.slots[slot] = s
	o.mu.Unlock()

	if prev != nil {
		prev.supersede()
	}

	o.log.WithFields(logrus.Fields{
		"session": s.id,
		"slot":    slot,
		"backend": s.plan.desc.ID,
		"source":  s.plan.req.SourceLang,
		"target":  s.plan.req.TargetLang,
	}).Debug("session started")

	go s.run()
}

// isCurrent reports whether s still owns its slot.
func (o *Orchestrator) isCurrent(s *Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slots[s.plan.slot] == s
}

// remember pushes the session's language pairs to the stored history, in
// order, so the last pair ends up most recent. An empty source stores an
// auto-detect pair.
func (o *Orchestrator) remember(ctx context.Context, pairs ...language.Pair) {
	if o.store == nil {
		return
	}
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	for _, pair := range pairs {
		if !language.IsKnown(pair.Target) {
			continue
		}
		if err := config.RememberPair(ctx, o.store, pair, o.langs.HistorySize); err != nil {
			o.log.WithError(err).Warn("failed to remember language pair")
			return
		}
	}
}
