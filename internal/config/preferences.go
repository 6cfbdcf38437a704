package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/language"
)

// Preference keys, in their stored spelling.
const (
	KeyDefaultTarget   = "defTargetLang"
	KeySecondaryTarget = "defTargetLang2"
	KeyProvider        = "translateProvider"
	KeyHistory         = "langPairHistory"
	KeyBackTranslation = "backTranslation"
)

// Preferences are the user's stored choices.
type Preferences struct {
	Language        language.Preferences
	Provider        string
	BackTranslation bool
}

// LoadPreferences reads the preferences from store. Missing keys and store
// failures fall back to the built-in defaults; failures are logged.
func LoadPreferences(ctx context.Context, store Store, langs LanguageSettings, log logrus.FieldLogger) Preferences {
	prefs := Preferences{
		Language: language.Preferences{
			Fallback:    langs.Fallback,
			AltFallback: langs.AltFallback,
		},
	}
	if store == nil {
		return prefs
	}

	values, err := store.GetConfig(ctx, KeyDefaultTarget, KeySecondaryTarget, KeyProvider, KeyHistory, KeyBackTranslation)
	if err != nil {
		log.WithError(fmt.Errorf("%w: %v", domain.ErrConfigUnavailable, err)).Warn("using default preferences")
		return prefs
	}

	prefs.Language.DefaultTarget = language.Normalize(cast.ToString(values[KeyDefaultTarget]))
	prefs.Language.SecondaryTarget = language.Normalize(cast.ToString(values[KeySecondaryTarget]))
	prefs.Language.History = language.ParseHistory(historyItems(values[KeyHistory]))
	prefs.Provider = strings.TrimSpace(cast.ToString(values[KeyProvider]))

	if v, ok := values[KeyBackTranslation]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			log.WithField("value", v).Warn("ignoring malformed backTranslation preference")
		}
		prefs.BackTranslation = b
	}
	return prefs
}

// RememberPair moves the pair to the front of the stored history.
func RememberPair(ctx context.Context, store Store, pair language.Pair, limit int) error {
	values, err := store.GetConfig(ctx, KeyHistory)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfigUnavailable, err)
	}
	history := language.ParseHistory(historyItems(values[KeyHistory])).Remember(pair, limit)
	if err := store.SetConfig(ctx, map[string]any{KeyHistory: history.Encode()}); err != nil {
		return fmt.Errorf("save pair history: %w", err)
	}
	return nil
}

// historyItems accepts a list or a comma separated string.
func historyItems(v any) []string {
	if s, ok := v.(string); ok {
		return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	}
	return cast.ToStringSlice(v)
}
