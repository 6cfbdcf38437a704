// Package backend holds one adapter per external translation service. An
// adapter builds wire requests and normalizes raw responses; it never
// performs I/O and never panics on unexpected input.
package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// ErrNoDictionary is returned by BuildDictionaryRequest when the query is not
// eligible for a dictionary lookup. The dictionary channel is then skipped.
var ErrNoDictionary = errors.New("no dictionary lookup for query")

// Query is one chunk ready to be sent to a backend.
type Query struct {
	Text string
	// Source is empty for auto-detect.
	Source     string
	Target     string
	Credential *domain.Credential
}

// Auto reports whether the source language is left to the backend.
func (q Query) Auto() bool {
	return q.Source == ""
}

// ParseContext is passed to response parsers.
type ParseContext struct {
	Query   Query
	Channel domain.Channel
	// Hop counts the completed calls before this one on a chained route.
	Hop int
}

// Adapter is the per-backend protocol.
type Adapter interface {
	ID() string
	BuildRequest(q Query) (domain.WireRequest, error)
	ParseResponse(raw domain.RawResponse, pc ParseContext) domain.Result
}

// DictionaryAdapter is implemented by backends with a secondary lookup for
// single-token queries.
type DictionaryAdapter interface {
	Adapter
	BuildDictionaryRequest(q Query) (domain.WireRequest, error)
	ParseDictionaryResponse(raw domain.RawResponse, pc ParseContext) domain.Result
}

// ChainedAdapter is implemented by backends whose primary call may take more
// than one request, such as a detection step or a pivot language. Continue
// is called with the number of completed hops and the last successful
// result; it returns false when prev is final.
type ChainedAdapter interface {
	Adapter
	Continue(q Query, hop int, prev domain.Result) (domain.WireRequest, bool, error)
}

// sentinel maps a case-insensitive substring of an error text to a kind.
type sentinel struct {
	needle string
	kind   domain.ErrorKind
}

var commonSentinels = []sentinel{
	{"token has expired", domain.ErrCredentialExpired},
	{"token expired", domain.ErrCredentialExpired},
	{"invalid token", domain.ErrCredentialExpired},
	{"invalid sid", domain.ErrCredentialExpired},
	{"unsupported language pair", domain.ErrUnsupportedPair},
	{"invalid language pair", domain.ErrUnsupportedPair},
	{"language pair is not supported", domain.ErrUnsupportedPair},
	{"translation direction is not supported", domain.ErrUnsupportedPair},
	{"is an invalid target language", domain.ErrUnsupportedPair},
	{"is an invalid source language", domain.ErrUnsupportedPair},
}

func matchSentinel(text string, extra []sentinel) (domain.ErrorKind, bool) {
	lower := strings.ToLower(text)
	for _, list := range [][]sentinel{extra, commonSentinels} {
		for _, s := range list {
			if strings.Contains(lower, s.needle) {
				return s.kind, true
			}
		}
	}
	return "", false
}

// failure builds an error result from a backend error text, preferring a
// sentinel match over fallback.
func failure(text string, fallback domain.ErrorKind, extra []sentinel) domain.Result {
	text = clip(text)
	if kind, ok := matchSentinel(text, extra); ok {
		return domain.Failure(kind, text)
	}
	return domain.Failure(fallback, text)
}

// failStatus converts a non-2xx response into an error result.
func failStatus(raw domain.RawResponse, credentialed bool, extra []sentinel) domain.Result {
	body := clip(strings.TrimSpace(string(raw.Body)))
	if kind, ok := matchSentinel(body, extra); ok {
		return domain.Failure(kind, body)
	}

	msg := fmt.Sprintf("HTTP %d", raw.Status)
	if body != "" && !gjson.Valid(body) && !strings.HasPrefix(body, "<") {
		msg += ": " + body
	}
	switch raw.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		if credentialed {
			return domain.Failure(domain.ErrCredentialExpired, msg)
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return domain.Failure(domain.ErrTimeout, msg)
	}
	return domain.Failure(domain.ErrBackend, msg)
}

// parseJSON returns the document and whether it is valid JSON.
func parseJSON(body []byte) (gjson.Result, bool) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(body), true
}

func unsupported(q Query, backend string) error {
	src := q.Source
	if src == "" {
		src = "auto"
	}
	return &domain.BackendError{
		Kind:    domain.ErrUnsupportedPair,
		Message: fmt.Sprintf("%s: %s to %s", backend, src, q.Target),
	}
}

// missingCredential is reported as expired so the caller refreshes once.
func missingCredential(backend, field string) error {
	return &domain.BackendError{
		Kind:    domain.ErrCredentialExpired,
		Message: fmt.Sprintf("%s: no %s", backend, field),
	}
}

// detected returns lang only when the query asked for auto-detection.
func detected(q Query, lang string) string {
	if !q.Auto() {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(lang))
}

// regionUpper turns "zh-tw" into "zh-TW".
func regionUpper(code string) string {
	base, region, ok := strings.Cut(code, "-")
	if !ok {
		return code
	}
	return base + "-" + strings.ToUpper(region)
}

func clip(s string) string {
	const limit = 200
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "…"
}
