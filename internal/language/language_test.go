package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTarget(t *testing.T) {
	history := History{
		{Source: "ru", Target: "es"},
		{Source: "de", Target: "it"},
	}

	tests := []struct {
		name      string
		source    string
		requested string
		prefs     Preferences
		expected  string
	}{
		{
			name:      "requested target differs from source",
			source:    "en",
			requested: "ja",
			prefs:     Preferences{DefaultTarget: "fr"},
			expected:  "ja",
		},
		{
			name:      "identity avoidance uses default target",
			source:    "en",
			requested: "en",
			prefs:     Preferences{DefaultTarget: "fr"},
			expected:  "fr",
		},
		{
			name:      "default equals source, secondary wins",
			source:    "fr",
			requested: "",
			prefs:     Preferences{DefaultTarget: "fr", SecondaryTarget: "pt"},
			expected:  "pt",
		},
		{
			name:      "history pair with same source",
			source:    "ru",
			requested: "ru",
			prefs:     Preferences{DefaultTarget: "ru", History: history},
			expected:  "es",
		},
		{
			name:      "reversed history pair",
			source:    "it",
			requested: "",
			prefs:     Preferences{DefaultTarget: "it", History: history},
			expected:  "de",
		},
		{
			name:      "hard fallback",
			source:    "ja",
			requested: "",
			prefs:     Preferences{},
			expected:  "en",
		},
		{
			name:      "alternate fallback when fallback is the source",
			source:    "en",
			requested: "",
			prefs:     Preferences{},
			expected:  "de",
		},
		{
			name:      "region variant target is kept",
			source:    "en-US",
			requested: "en_GB",
			prefs:     Preferences{DefaultTarget: "en", SecondaryTarget: "ko"},
			expected:  "en-gb",
		},
		{
			name:      "chinese script variants",
			source:    "zh-cn",
			requested: "zh-tw",
			prefs:     Preferences{DefaultTarget: "en"},
			expected:  "zh-tw",
		},
		{
			name:      "portuguese regions",
			source:    "pt_BR",
			requested: "pt-PT",
			prefs:     Preferences{DefaultTarget: "en"},
			expected:  "pt-pt",
		},
		{
			name:      "serbian scripts",
			source:    "sr-Latn",
			requested: "sr-Cyrl",
			prefs:     Preferences{DefaultTarget: "en"},
			expected:  "sr-cyrl",
		},
		{
			name:      "same region is still identity",
			source:    "pt-BR",
			requested: "pt_br",
			prefs:     Preferences{DefaultTarget: "pt-br", SecondaryTarget: "es"},
			expected:  "es",
		},
		{
			name:      "auto-detect pair when no pair has this source",
			source:    "ko",
			requested: "",
			prefs: Preferences{DefaultTarget: "ko", History: History{
				{Source: "", Target: "ko"},
				{Source: "", Target: "ja"},
				{Source: "it", Target: "ko"},
			}},
			expected: "ja",
		},
		{
			name:      "concrete pair beats auto-detect pair",
			source:    "ru",
			requested: "",
			prefs: Preferences{DefaultTarget: "ru", History: History{
				{Source: "", Target: "fr"},
				{Source: "ru", Target: "es"},
			}},
			expected: "es",
		},
		{
			name:      "auto source uses auto-detect pair",
			source:    Auto,
			requested: "",
			prefs:     Preferences{History: History{{Source: "", Target: "uk"}}},
			expected:  "uk",
		},
		{
			name:      "unknown source keeps requested target",
			source:    "",
			requested: "fr",
			prefs:     Preferences{DefaultTarget: "de"},
			expected:  "fr",
		},
		{
			name:      "auto source with no request uses default",
			source:    Auto,
			requested: "",
			prefs:     Preferences{DefaultTarget: "de"},
			expected:  "de",
		},
		{
			name:      "misconfigured fallbacks still avoid identity",
			source:    "en",
			requested: "en",
			prefs:     Preferences{DefaultTarget: "en", Fallback: "en", AltFallback: "en"},
			expected:  "de",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTarget(tt.source, tt.requested, tt.prefs)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveTarget_NeverIdentity(t *testing.T) {
	langs := []string{"", "auto", "en", "EN", "en-US", "de", "fr", "es", "ru", "ja", "zh-TW", "xx"}
	prefsList := []Preferences{
		{},
		{DefaultTarget: "en", SecondaryTarget: "en"},
		{DefaultTarget: "de", Fallback: "de", AltFallback: "de"},
		{History: History{{Source: "en", Target: "en"}, {Source: "fr", Target: "en"}}},
	}

	for _, detected := range langs {
		for _, requested := range langs {
			for _, prefs := range prefsList {
				got := ResolveTarget(detected, requested, prefs)
				assert.NotEmpty(t, got)
				assert.False(t, Same(got, detected), "ResolveTarget(%q, %q, %+v) = %q", detected, requested, prefs, got)
				assert.NotEqual(t, Normalize(detected), got)
			}
		}
	}
}

func TestSame(t *testing.T) {
	assert.True(t, Same("en", "EN"))
	assert.True(t, Same("pt_BR", "pt-br"))
	assert.False(t, Same("pt_BR", "pt-PT"))
	assert.False(t, Same("zh-CN", "zh-TW"))
	assert.False(t, Same("en", "en-US"))
	assert.False(t, Same("en", "de"))
	assert.False(t, Same("", ""))
	assert.False(t, Same("auto", "auto"))
}
