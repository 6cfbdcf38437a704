package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/go-kratos/kit/retry"
	"github.com/sirupsen/logrus"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// DefaultFetchAttempts is the number of tries for one page fetch.
const DefaultFetchAttempts = 3

// antiFraudRedirect matches the script redirect some services serve instead
// of the real page when they suspect automation.
var antiFraudRedirect = regexp.MustCompile(`\s*location\.href=['"]([^'"]+)['"]`)

// Sender executes wire requests. transport.Transport satisfies it.
type Sender interface {
	Send(ctx context.Context, req domain.WireRequest) (domain.RawResponse, error)
}

// StatusError is returned for non-2xx page fetches.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// PageMinter mints credentials by fetching the service pages over a Sender
// and matching the field patterns against the raw content.
type PageMinter struct {
	sender     Sender
	attempts   int
	log        logrus.FieldLogger
	onRedirect func(url string)
}

// MinterOption configures a PageMinter.
type MinterOption func(*PageMinter)

// WithFetchAttempts sets how many times a page fetch is tried.
func WithFetchAttempts(n int) MinterOption {
	return func(m *PageMinter) {
		m.attempts = n
	}
}

// WithMinterLogger sets the logger.
func WithMinterLogger(log logrus.FieldLogger) MinterOption {
	return func(m *PageMinter) {
		m.log = log
	}
}

// WithRedirectHandler is called with the target of an anti-fraud redirect,
// typically to show it to the user.
func WithRedirectHandler(fn func(url string)) MinterOption {
	return func(m *PageMinter) {
		m.onRedirect = fn
	}
}

// NewPageMinter creates a PageMinter.
func NewPageMinter(s Sender, opts ...MinterOption) *PageMinter {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	m := &PageMinter{
		sender:   s,
		attempts: DefaultFetchAttempts,
		log:      quiet,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenEphemeralPage fetches url so the service can set its cookies on the
// shared client.
func (m *PageMinter) OpenEphemeralPage(ctx context.Context, url string) error {
	_, err := m.fetch(ctx, url)
	return err
}

// ExtractFields fetches pageURL and applies the patterns in order.
func (m *PageMinter) ExtractFields(ctx context.Context, pageURL string, fields []Field) (map[string]string, error) {
	body, err := m.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if match := antiFraudRedirect.FindSubmatch(body); match != nil {
		target := string(match[1])
		m.log.WithFields(logrus.Fields{
			"page":     pageURL,
			"redirect": target,
		}).Warn("anti-fraud redirect on credential page")
		if m.onRedirect != nil {
			m.onRedirect(target)
		}
	}

	out := make(map[string]string, len(fields))
	for _, f := range fields {
		match := f.Pattern.FindSubmatch(body)
		if len(match) < 2 || len(match[1]) == 0 {
			m.log.WithFields(logrus.Fields{
				"page":  pageURL,
				"field": f.Name,
			}).Debug("credential field not found")
			continue
		}
		out[f.Name] = string(match[1])
	}

	if len(fields) > 0 {
		primary := fields[len(fields)-1].Name
		if out[primary] == "" {
			return out, fmt.Errorf("%w: %s on %s", ErrFieldNotFound, primary, pageURL)
		}
	}
	return out, nil
}

func (m *PageMinter) fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	r := retry.New(m.attempts, retry.WithRetryable(isTransient))
	err := r.Do(ctx, func(ctx context.Context) error {
		resp, err := m.sender.Send(ctx, domain.WireRequest{URL: url, Method: http.MethodGet})
		if err != nil {
			return err
		}
		if !resp.OK() {
			return &StatusError{URL: url, Status: resp.Status}
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// isTransient retries network failures and server errors, never client
// errors or cancellation.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= 500 || se.Status == http.StatusTooManyRequests
	}
	return true
}
