// Package language resolves a translation target that is never the source
// language, using configured defaults and the recently used language pairs.
package language

import (
	"strings"
)

// Auto is the pseudo language code meaning "detect the source".
const Auto = "auto"

// Built-in fallbacks, used when nothing else resolves.
const (
	DefaultFallback    = "en"
	DefaultAltFallback = "de"
)

// lastResort guarantees a non-identity answer even with misconfigured
// fallbacks.
var lastResort = []string{"en", "de", "fr", "es", "ru"}

// Pair is a (source, target) language pair. An empty Source records a
// request whose source was auto-detected.
type Pair struct {
	Source string
	Target string
}

// Detected reports whether p was used with an auto-detected source.
func (p Pair) Detected() bool {
	return p.Source == ""
}

// Preferences are the user's configured defaults plus pair history.
type Preferences struct {
	DefaultTarget   string
	SecondaryTarget string
	// History lists recently used pairs, most recent first.
	History     History
	Fallback    string
	AltFallback string
}

// ResolveTarget picks the language to translate into.
//
// A requested target that differs from the source wins. Otherwise the
// candidates are, in order: the default target, the secondary default, the
// target of the most recent pair with the same source (or, when there is
// none, the target of the most recent auto-detect pair), the source of the
// most recent pair whose target is this source, and finally the fallback
// constant (or the alternate fallback when the fallback is the source).
// Codes compare in full, so "pt-br" and "pt-pt" are different languages.
// The returned language never equals the source.
func ResolveTarget(source, requested string, prefs Preferences) string {
	source = Normalize(source)

	if requested = Normalize(requested); requested != "" && requested != Auto && !Same(source, requested) {
		return requested
	}

	candidates := []string{prefs.DefaultTarget, prefs.SecondaryTarget}

	mostUsedTo, mostUsedFrom := "", ""
	if IsKnown(source) {
		for _, p := range prefs.History {
			if p.Detected() || !Same(p.Source, source) {
				continue
			}
			mostUsedTo = p.Target
			break
		}
		for _, p := range prefs.History {
			if p.Detected() || !Same(p.Target, source) {
				continue
			}
			mostUsedFrom = p.Source
			break
		}
	}
	if mostUsedTo == "" {
		for _, p := range prefs.History {
			if p.Detected() && !Same(p.Target, source) {
				mostUsedTo = p.Target
				break
			}
		}
	}
	candidates = append(candidates, mostUsedTo, mostUsedFrom)

	fallback := prefs.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}
	alt := prefs.AltFallback
	if alt == "" {
		alt = DefaultAltFallback
	}
	candidates = append(candidates, fallback, alt)
	candidates = append(candidates, lastResort...)

	for _, c := range candidates {
		c = Normalize(c)
		if c == "" || c == Auto || Same(c, source) {
			continue
		}
		return c
	}

	// unreachable: lastResort has distinct codes
	return DefaultFallback
}

// Normalize trims and lower-cases a language code, keeping region and
// script subtags ("zh-TW" becomes "zh-tw").
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "_", "-")))
}

// Same reports whether a and b are the same language code once normalized.
// Region and script variants differ ("zh-cn" is not "zh-tw"). Unknown or
// auto codes never match anything.
func Same(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	if a == "" || b == "" || a == Auto || b == Auto {
		return false
	}
	return a == b
}

// IsKnown reports whether code names a concrete language.
func IsKnown(code string) bool {
	code = Normalize(code)
	return code != "" && code != Auto
}
