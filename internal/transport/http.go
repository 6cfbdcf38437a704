package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/pricofy/translation-gateway/internal/domain"
)

const (
	// DefaultMaxBody caps how much of a response body is read.
	DefaultMaxBody = 4 << 20
	// DefaultUserAgent is sent when a request sets none.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// HTTPConfig configures an HTTP transport.
type HTTPConfig struct {
	// Proxy is an optional proxy URL.
	Proxy string
	// RatePerHost limits requests per second to one host; zero disables it.
	RatePerHost float64
	// Burst is the per-host burst size.
	Burst int
	// MaxBody caps response bodies; zero uses DefaultMaxBody.
	MaxBody int64
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// HTTP sends wire requests over net/http. One cookie jar is shared by every
// request so that cookies set by credential pages reach the API calls.
type HTTP struct {
	client *http.Client
	cfg    HTTPConfig
	log    logrus.FieldLogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTP creates an HTTP transport.
func NewHTTP(cfg HTTPConfig, log logrus.FieldLogger) (*HTTP, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxy, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", cfg.Proxy, err)
		}
		base.Proxy = http.ProxyURL(proxy)
	}
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &HTTP{
		client: &http.Client{
			Transport: otelhttp.NewTransport(base),
			Jar:       jar,
		},
		cfg:      cfg,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// Send implements Transport.
func (h *HTTP) Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", h.cfg.UserAgent)
	}

	if err := h.wait(ctx, httpReq.URL.Host); err != nil {
		return domain.RawResponse{}, err
	}

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("%s %s: %w", method, httpReq.URL.Host, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBody))
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("read %s: %w", httpReq.URL.Host, err)
	}

	h.log.WithFields(logrus.Fields{
		"host":     httpReq.URL.Host,
		"method":   method,
		"status":   resp.StatusCode,
		"bytes":    len(data),
		"duration": time.Since(start).String(),
	}).Debug("http request")

	return domain.RawResponse{Status: resp.StatusCode, Body: data}, nil
}

func (h *HTTP) wait(ctx context.Context, host string) error {
	if h.cfg.RatePerHost <= 0 {
		return nil
	}

	h.mu.Lock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.cfg.RatePerHost), h.cfg.Burst)
		h.limiters[host] = l
	}
	h.mu.Unlock()

	if err := l.Wait(ctx); err != nil {
		// the limiter refuses early when the wait would outlast the deadline
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if _, ok := ctx.Deadline(); ok {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("rate limit %s: %w", host, err)
	}
	return nil
}
