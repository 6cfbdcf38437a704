package language

import "strings"

// DefaultHistorySize bounds the remembered pairs.
const DefaultHistorySize = 10

// pairSeparator joins source and target in the stored form ("en~fr").
const pairSeparator = "~"

// History is a most-recently-used list of language pairs.
type History []Pair

// Remember returns a new history with p moved to the front. Duplicates are
// removed and the list is cut at limit entries. A pair with an empty or auto
// source is kept as an auto-detect pair.
func (h History) Remember(p Pair, limit int) History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	p = Pair{Source: Normalize(p.Source), Target: Normalize(p.Target)}
	if p.Source == Auto {
		p.Source = ""
	}
	if !IsKnown(p.Target) || Same(p.Source, p.Target) {
		return h
	}

	out := make(History, 0, len(h)+1)
	out = append(out, p)
	for _, existing := range h {
		if existing == p {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, existing)
	}
	return out
}

// Encode returns the stored form of the history.
func (h History) Encode() []string {
	out := make([]string, len(h))
	for i, p := range h {
		out[i] = p.Source + pairSeparator + p.Target
	}
	return out
}

// ParseHistory decodes stored pairs, skipping malformed entries. "~fr" is
// an auto-detect pair.
func ParseHistory(items []string) History {
	var h History
	for _, item := range items {
		src, dst, ok := strings.Cut(item, pairSeparator)
		if !ok || !IsKnown(dst) {
			continue
		}
		if src = Normalize(src); src == Auto {
			src = ""
		}
		h = append(h, Pair{Source: src, Target: Normalize(dst)})
	}
	return h
}
