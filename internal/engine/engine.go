// Package engine assembles the gateway from its settings. Both binaries
// build one Engine at startup.
package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/pricofy/translation-gateway/internal/backend"
	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/credential"
	"github.com/pricofy/translation-gateway/internal/handler"
	"github.com/pricofy/translation-gateway/internal/logging"
	"github.com/pricofy/translation-gateway/internal/orchestrator"
	"github.com/pricofy/translation-gateway/internal/transport"
)

// Engine holds the wired components.
type Engine struct {
	Settings     *config.Settings
	Registry     *backend.Registry
	Credentials  *credential.Cache
	Orchestrator *orchestrator.Orchestrator
	Handler      *handler.Handler
	Log          logrus.FieldLogger
}

type options struct {
	log        logrus.FieldLogger
	store      config.Store
	lambda     transport.LambdaInvoker
	transport  transport.Transport
	tracer     trace.TracerProvider
	onRedirect func(url string)
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger of every component.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithStore sets the user preference store. Without one the built-in
// preferences apply and nothing is remembered.
func WithStore(s config.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLambdaClient sets the client used for lambda:// requests instead of
// one built from the default AWS config.
func WithLambdaClient(c transport.LambdaInvoker) Option {
	return func(o *options) {
		o.lambda = c
	}
}

// WithTransport replaces the whole outbound transport.
func WithTransport(t transport.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithTracerProvider sets the tracer provider of the orchestrator.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithRedirectHandler is told about anti-fraud redirects met while minting
// credentials.
func WithRedirectHandler(fn func(url string)) Option {
	return func(o *options) {
		o.onRedirect = fn
	}
}

// New builds an Engine from s.
func New(ctx context.Context, s *config.Settings, opts ...Option) (*Engine, error) {
	o := options{log: logging.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	reg, err := Registry(s)
	if err != nil {
		return nil, err
	}

	tr := o.transport
	if tr == nil {
		tr, err = newTransport(ctx, s, o)
		if err != nil {
			return nil, err
		}
	}

	minterOpts := []credential.MinterOption{
		credential.WithFetchAttempts(s.Credentials.FetchAttempts),
		credential.WithMinterLogger(o.log.WithField("component", "minter")),
	}
	if o.onRedirect != nil {
		minterOpts = append(minterOpts, credential.WithRedirectHandler(o.onRedirect))
	}
	minter := credential.NewPageMinter(tr, minterOpts...)

	cacheOpts := []credential.Option{
		credential.WithPolicy(s.Policy()),
		credential.WithRefreshTimeout(s.Credentials.RefreshTimeout),
		credential.WithLogger(o.log.WithField("component", "credentials")),
	}
	for id, p := range reg.Policies() {
		cacheOpts = append(cacheOpts, credential.WithBackendPolicy(id, p))
	}
	cache := credential.NewCache(credential.NewSpecRefresher(minter, reg.CredentialSpecs()), cacheOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithSettings(s),
		orchestrator.WithLogger(o.log.WithField("component", "orchestrator")),
	}
	if o.tracer != nil {
		orchOpts = append(orchOpts, orchestrator.WithTracerProvider(o.tracer))
	}
	orch, err := orchestrator.New(orchestrator.Deps{
		Registry:    reg,
		Transport:   tr,
		Credentials: cache,
		Store:       o.store,
	}, orchOpts...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Settings:     s,
		Registry:     reg,
		Credentials:  cache,
		Orchestrator: orch,
		Handler:      handler.New(orch, o.log.WithField("component", "handler")),
		Log:          o.log,
	}, nil
}

// Registry returns the built-in backends with the settings applied.
func Registry(s *config.Settings) (*backend.Registry, error) {
	reg := backend.Default()
	reg, err := reg.WithOverrides(s.Overrides(reg.IDs()))
	if err != nil {
		return nil, fmt.Errorf("backend settings: %w", err)
	}
	reg, err = reg.WithAdapter(backend.Opus{Prefix: s.Opus.Prefix, Qualifier: s.Opus.Qualifier})
	if err != nil {
		return nil, fmt.Errorf("opus backend: %w", err)
	}
	if _, err := reg.Lookup(s.DefaultBackend); err != nil {
		return nil, fmt.Errorf("default backend: %w", err)
	}
	return reg, nil
}

// newTransport sends http(s) requests over HTTP and lambda:// requests as
// Lambda invocations. Without AWS configuration the Lambda route is left
// out and opus requests fail as unsupported.
func newTransport(ctx context.Context, s *config.Settings, o options) (transport.Transport, error) {
	httpLog := o.log.WithField("component", "http")
	h, err := transport.NewHTTP(transport.HTTPConfig{
		Proxy:       s.HTTP.Proxy,
		RatePerHost: s.HTTP.RatePerHost,
		Burst:       s.HTTP.Burst,
		MaxBody:     s.HTTP.MaxBody,
		UserAgent:   s.HTTP.UserAgent,
	}, httpLog)
	if err != nil {
		return nil, err
	}

	mux := transport.NewMux(h)
	lambdaLog := o.log.WithField("component", "lambda")
	if o.lambda != nil {
		mux.Handle(transport.LambdaScheme, transport.NewLambdaWithClient(o.lambda, lambdaLog))
		return mux, nil
	}

	l, err := transport.NewLambda(ctx, lambdaLog)
	if err != nil {
		o.log.WithError(err).Warn("lambda transport disabled")
		return mux, nil
	}
	mux.Handle(transport.LambdaScheme, l)
	return mux, nil
}
