package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // settings key, e.g. "http.rate_per_host"
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted log levels.
func ValidLogLevels() []string {
	return []string{"trace", "debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted log formats.
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// Validate checks s for invalid values and returns every failure found.
func (s *Settings) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if strings.TrimSpace(s.DefaultBackend) == "" {
		add("default_backend", s.DefaultBackend, "must not be empty")
	}
	if s.MaxChunk < 0 {
		add("max_chunk", s.MaxChunk, "must be non-negative")
	}
	if s.CallTimeout <= 0 {
		add("call_timeout", s.CallTimeout, "must be positive")
	}
	if s.SessionTimeout < s.CallTimeout {
		add("session_timeout", s.SessionTimeout, "must not be shorter than call_timeout")
	}
	if s.MaxConcurrency < 1 {
		add("max_concurrency", s.MaxConcurrency, "must be at least 1")
	}

	if s.Credentials.ForceInterval < 0 {
		add("credentials.force_interval", s.Credentials.ForceInterval, "must be non-negative")
	}
	if s.Credentials.SoftInterval < 0 {
		add("credentials.soft_interval", s.Credentials.SoftInterval, "must be non-negative")
	}
	if s.Credentials.MaxAge < 0 {
		add("credentials.max_age", s.Credentials.MaxAge, "must be non-negative")
	}
	if s.Credentials.RefreshTimeout <= 0 {
		add("credentials.refresh_timeout", s.Credentials.RefreshTimeout, "must be positive")
	}
	if s.Credentials.FetchAttempts < 1 {
		add("credentials.fetch_attempts", s.Credentials.FetchAttempts, "must be at least 1")
	}

	ids := make([]string, 0, len(s.Backends))
	for id := range s.Backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := s.Backends[id]
		prefix := "backends." + id
		if b.MaxChunk < 0 {
			add(prefix+".max_chunk", b.MaxChunk, "must be non-negative")
		}
		if b.ForceInterval < 0 || b.SoftInterval < 0 || b.MaxAge < 0 {
			add(prefix, b, "intervals must be non-negative")
		}
	}

	if s.Languages.Fallback != "" && s.Languages.Fallback == s.Languages.AltFallback {
		add("languages.alt_fallback", s.Languages.AltFallback, "must differ from languages.fallback")
	}
	if s.Languages.HistorySize < 0 {
		add("languages.history_size", s.Languages.HistorySize, "must be non-negative")
	}

	if s.HTTP.RatePerHost < 0 {
		add("http.rate_per_host", s.HTTP.RatePerHost, "must be non-negative")
	}
	if s.HTTP.Burst < 0 {
		add("http.burst", s.HTTP.Burst, "must be non-negative")
	}
	if s.HTTP.MaxBody < 0 {
		add("http.max_body", s.HTTP.MaxBody, "must be non-negative")
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(s.Logging.Level)) {
		add("logging.level", s.Logging.Level, "must be one of: "+strings.Join(ValidLogLevels(), ", "))
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(s.Logging.Format)) {
		add("logging.format", s.Logging.Format, "must be one of: "+strings.Join(ValidLogFormats(), ", "))
	}

	return errs
}
