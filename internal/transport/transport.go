// Package transport executes the wire requests built by backend adapters.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// Transport performs one wire request. Non-2xx statuses are not errors; an
// error means no response was obtained.
type Transport interface {
	Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error)

// Send calls f.
func (f Func) Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error) {
	return f(ctx, req)
}

// Classify maps a Send error to an error kind.
func Classify(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ErrTimeout
	}
	var be *domain.BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return domain.ErrNetwork
}

// Mux routes requests to a transport by URL scheme.
type Mux struct {
	mu       sync.RWMutex
	fallback Transport
	schemes  map[string]Transport
}

// NewMux creates a Mux sending unrouted schemes to fallback.
func NewMux(fallback Transport) *Mux {
	return &Mux{
		fallback: fallback,
		schemes:  make(map[string]Transport),
	}
}

// Handle routes scheme to t.
func (m *Mux) Handle(scheme string, t Transport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemes[strings.ToLower(scheme)] = t
}

// Send implements Transport.
func (m *Mux) Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("parse url: %w", err)
	}

	m.mu.RLock()
	t, ok := m.schemes[strings.ToLower(u.Scheme)]
	m.mu.RUnlock()

	if !ok {
		t = m.fallback
	}
	if t == nil {
		return domain.RawResponse{}, fmt.Errorf("no transport for scheme %q", u.Scheme)
	}
	return t.Send(ctx, req)
}
