// Package config holds the engine settings and the user preference store.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pricofy/translation-gateway/internal/backend"
	"github.com/pricofy/translation-gateway/internal/credential"
	"github.com/pricofy/translation-gateway/internal/language"
)

// EnvPrefix prefixes environment overrides, e.g. TRGW_CALL_TIMEOUT.
const EnvPrefix = "TRGW"

// Settings is the complete engine configuration.
type Settings struct {
	// DefaultBackend is used when neither the request nor the stored
	// preferences name a backend.
	DefaultBackend string `mapstructure:"default_backend"`
	// MaxChunk caps the chunk length of every backend. 0 keeps the
	// per-backend table values.
	MaxChunk       int                        `mapstructure:"max_chunk"`
	CallTimeout    time.Duration              `mapstructure:"call_timeout"`
	SessionTimeout time.Duration              `mapstructure:"session_timeout"`
	MaxConcurrency int                        `mapstructure:"max_concurrency"`
	Credentials    CredentialSettings         `mapstructure:"credentials"`
	Backends       map[string]BackendSettings `mapstructure:"backends"`
	Languages      LanguageSettings           `mapstructure:"languages"`
	HTTP           HTTPSettings               `mapstructure:"http"`
	Opus           OpusSettings               `mapstructure:"opus"`
	Logging        LoggingSettings            `mapstructure:"logging"`
	// PreferencesFile backs the user preference store in the CLI.
	PreferencesFile string `mapstructure:"preferences_file"`
}

// CredentialSettings are the default refresh policy and the minting knobs.
type CredentialSettings struct {
	ForceInterval  time.Duration `mapstructure:"force_interval"`
	SoftInterval   time.Duration `mapstructure:"soft_interval"`
	MaxAge         time.Duration `mapstructure:"max_age"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	FetchAttempts  int           `mapstructure:"fetch_attempts"`
}

// BackendSettings override one row of the backend table. Zero values keep
// the table defaults.
type BackendSettings struct {
	MaxChunk      int           `mapstructure:"max_chunk"`
	ForceInterval time.Duration `mapstructure:"force_interval"`
	SoftInterval  time.Duration `mapstructure:"soft_interval"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

// LanguageSettings are the built-in language fallbacks.
type LanguageSettings struct {
	Fallback    string `mapstructure:"fallback"`
	AltFallback string `mapstructure:"alt_fallback"`
	HistorySize int    `mapstructure:"history_size"`
}

// HTTPSettings configure the outbound HTTP transport.
type HTTPSettings struct {
	Proxy       string  `mapstructure:"proxy"`
	RatePerHost float64 `mapstructure:"rate_per_host"`
	Burst       int     `mapstructure:"burst"`
	MaxBody     int64   `mapstructure:"max_body"`
	UserAgent   string  `mapstructure:"user_agent"`
}

// OpusSettings locate the self-hosted translator functions.
type OpusSettings struct {
	Prefix    string `mapstructure:"prefix"`
	Qualifier string `mapstructure:"qualifier"`
}

// LoggingSettings select the log level and output format.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in settings.
func Default() *Settings {
	policy := credential.DefaultPolicy()
	return &Settings{
		DefaultBackend: "google",
		CallTimeout:    15 * time.Second,
		SessionTimeout: 60 * time.Second,
		MaxConcurrency: 4,
		Credentials: CredentialSettings{
			ForceInterval:  policy.ForceInterval,
			SoftInterval:   policy.SoftInterval,
			MaxAge:         policy.MaxAge,
			RefreshTimeout: credential.DefaultRefreshTimeout,
			FetchAttempts:  credential.DefaultFetchAttempts,
		},
		Backends: map[string]BackendSettings{},
		Languages: LanguageSettings{
			Fallback:    language.DefaultFallback,
			AltFallback: language.DefaultAltFallback,
			HistorySize: language.DefaultHistorySize,
		},
		HTTP: HTTPSettings{
			RatePerHost: 5,
			Burst:       5,
			MaxBody:     4 << 20,
		},
		Opus: OpusSettings{
			Prefix: backend.DefaultOpusPrefix,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
		},
		PreferencesFile: filepath.Join(Dir(), "preferences.yaml"),
	}
}

// SetDefaults registers the default values with v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("default_backend", defaults.DefaultBackend)
	v.SetDefault("max_chunk", defaults.MaxChunk)
	v.SetDefault("call_timeout", defaults.CallTimeout)
	v.SetDefault("session_timeout", defaults.SessionTimeout)
	v.SetDefault("max_concurrency", defaults.MaxConcurrency)

	v.SetDefault("credentials.force_interval", defaults.Credentials.ForceInterval)
	v.SetDefault("credentials.soft_interval", defaults.Credentials.SoftInterval)
	v.SetDefault("credentials.max_age", defaults.Credentials.MaxAge)
	v.SetDefault("credentials.refresh_timeout", defaults.Credentials.RefreshTimeout)
	v.SetDefault("credentials.fetch_attempts", defaults.Credentials.FetchAttempts)

	v.SetDefault("languages.fallback", defaults.Languages.Fallback)
	v.SetDefault("languages.alt_fallback", defaults.Languages.AltFallback)
	v.SetDefault("languages.history_size", defaults.Languages.HistorySize)

	v.SetDefault("http.proxy", defaults.HTTP.Proxy)
	v.SetDefault("http.rate_per_host", defaults.HTTP.RatePerHost)
	v.SetDefault("http.burst", defaults.HTTP.Burst)
	v.SetDefault("http.max_body", defaults.HTTP.MaxBody)
	v.SetDefault("http.user_agent", defaults.HTTP.UserAgent)

	v.SetDefault("opus.prefix", defaults.Opus.Prefix)
	v.SetDefault("opus.qualifier", defaults.Opus.Qualifier)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	v.SetDefault("preferences_file", defaults.PreferencesFile)
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. A non-empty file is read when it exists.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file == "" {
		return v, nil
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		if isNotFound(err) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}
	return v, nil
}

// Load reads the settings from v and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.Backends == nil {
		s.Backends = map[string]BackendSettings{}
	}

	if errs := s.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &s, nil
}

// Policy returns the default credential refresh policy.
func (s *Settings) Policy() credential.Policy {
	return credential.Policy{
		ForceInterval: s.Credentials.ForceInterval,
		SoftInterval:  s.Credentials.SoftInterval,
		MaxAge:        s.Credentials.MaxAge,
	}.Merge(credential.DefaultPolicy())
}

// Overrides converts the per-backend settings for the registry. The global
// chunk cap applies to backends without their own.
func (s *Settings) Overrides(ids []string) map[string]backend.Override {
	out := make(map[string]backend.Override, len(s.Backends))
	if s.MaxChunk > 0 {
		for _, id := range ids {
			out[id] = backend.Override{MaxChunk: s.MaxChunk}
		}
	}
	for id, b := range s.Backends {
		out[id] = backend.Override{
			MaxChunk: b.MaxChunk,
			Policy: credential.Policy{
				ForceInterval: b.ForceInterval,
				SoftInterval:  b.SoftInterval,
				MaxAge:        b.MaxAge,
			},
		}
		if b.MaxChunk == 0 && s.MaxChunk > 0 {
			o := out[id]
			o.MaxChunk = s.MaxChunk
			out[id] = o
		}
	}
	return out
}

// Dir returns the user configuration directory of the gateway.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "translation-gateway")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".translation-gateway"
	}
	return filepath.Join(home, ".config", "translation-gateway")
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
}
