package credential

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// ErrFieldNotFound is returned when the primary credential field could not be
// extracted from a page.
var ErrFieldNotFound = errors.New("credential field not found")

// Field names one credential value and the pattern that extracts it from raw
// page content. The first capture group is the value.
type Field struct {
	Name    string
	Pattern *regexp.Regexp
}

// Spec describes how a backend's credential is minted.
type Spec struct {
	// CookieURL, when set, is opened first so the service sets its cookies.
	CookieURL string
	// SourceURL is the page the fields are extracted from.
	SourceURL string
	// Discover, when set, is matched against SourceURL first; its capture is
	// the URL of the document that actually holds the fields.
	Discover *regexp.Regexp
	// Fields are extracted in order. By convention the last field is the
	// primary credential value.
	Fields []Field
}

// Primary returns the name of the primary field.
func (s Spec) Primary() string {
	if len(s.Fields) == 0 {
		return ""
	}
	return s.Fields[len(s.Fields)-1].Name
}

// Minter is the credential-minting collaborator. How it reaches the remote
// pages is its own business.
type Minter interface {
	// OpenEphemeralPage loads url once and returns when it has completed.
	OpenEphemeralPage(ctx context.Context, url string) error
	// ExtractFields applies the field patterns to the raw content of pageURL.
	// Fields are extracted in order with the last (primary) field last; a
	// missing secondary field never prevents the primary one.
	ExtractFields(ctx context.Context, pageURL string, fields []Field) (map[string]string, error)
}

// SpecRefresher is the one generic refresh procedure for every backend,
// driven by a table of Specs.
type SpecRefresher struct {
	minter Minter
	specs  map[string]Spec
}

// NewSpecRefresher creates a refresher for the given backend specs.
func NewSpecRefresher(m Minter, specs map[string]Spec) *SpecRefresher {
	return &SpecRefresher{minter: m, specs: specs}
}

// Refresh mints a new credential field set for backend.
func (r *SpecRefresher) Refresh(ctx context.Context, backend string) (map[string]string, error) {
	spec, ok := r.specs[backend]
	if !ok {
		return nil, fmt.Errorf("%w: no credential spec for %q", domain.ErrUnknownBackend, backend)
	}

	if spec.CookieURL != "" {
		if err := r.minter.OpenEphemeralPage(ctx, spec.CookieURL); err != nil {
			return nil, fmt.Errorf("open %s: %w", spec.CookieURL, err)
		}
	}

	source := spec.SourceURL
	if spec.Discover != nil {
		found, err := r.minter.ExtractFields(ctx, source, []Field{{Name: "source", Pattern: spec.Discover}})
		if err != nil {
			return nil, fmt.Errorf("discover credential source: %w", err)
		}
		source, err = resolveReference(spec.SourceURL, found["source"])
		if err != nil {
			return nil, err
		}
	}

	fields, err := r.minter.ExtractFields(ctx, source, spec.Fields)
	if err != nil {
		return nil, fmt.Errorf("extract credential: %w", err)
	}
	if fields[spec.Primary()] == "" {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, spec.Primary())
	}
	return fields, nil
}

func resolveReference(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}
