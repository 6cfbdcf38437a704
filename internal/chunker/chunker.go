// Package chunker splits long text into ordered, backend-safe pieces.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// DefaultMaxLen is the default maximum chunk length in characters.
// Most web translators reject or truncate requests somewhere past 300-350.
const DefaultMaxLen = 300

// Split splits text into chunks of at most maxLen characters.
//
// The text is first cut after clause punctuation and line breaks. Pieces that
// are still too long are cut at whitespace, and single words that exceed
// maxLen are hard-cut. Consecutive pieces are then greedily coalesced while
// they fit. Concatenating the chunk texts in index order always reproduces
// the input.
func Split(text string, maxLen int) []domain.Chunk {
	if text == "" {
		return nil
	}

	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	var pieces []string
	for _, clause := range tokenize(text, isClauseBreak) {
		if Len(clause) <= maxLen {
			pieces = append(pieces, clause)
			continue
		}
		for _, word := range tokenize(clause, unicode.IsSpace) {
			if Len(word) <= maxLen {
				pieces = append(pieces, word)
				continue
			}
			pieces = append(pieces, hardCut(word, maxLen)...)
		}
	}

	var chunks []domain.Chunk
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{Index: len(chunks), Text: current.String()})
		current.Reset()
		currentLen = 0
	}

	for _, piece := range pieces {
		pieceLen := Len(piece)

		// If adding this piece would exceed the limit, start a new chunk
		if currentLen+pieceLen > maxLen {
			flush()
		}

		current.WriteString(piece)
		currentLen += pieceLen
	}
	flush()

	return chunks
}

// Join concatenates chunk texts in index order.
func Join(chunks []domain.Chunk) string {
	ordered := make([]string, len(chunks))
	for _, c := range chunks {
		if c.Index >= 0 && c.Index < len(ordered) {
			ordered[c.Index] = c.Text
		}
	}
	return strings.Join(ordered, "")
}

// Len returns the length of s in characters.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// IsSingleToken reports whether s is one word, which is when dictionary
// lookups make sense.
func IsSingleToken(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.ContainsFunc(s, unicode.IsSpace)
}

// isClauseBreak reports sentence and clause punctuation, including the
// CJK full-width forms, and line breaks.
func isClauseBreak(r rune) bool {
	switch r {
	case '.', ',', ';', ':', '!', '?', '\n', '\r',
		'。', '，', '、', '；', '：', '！', '？', '…':
		return true
	}
	return false
}

// tokenize cuts s after every run of separator runes. Whitespace directly
// following a separator stays with the preceding token.
func tokenize(s string, isSep func(rune) bool) []string {
	var tokens []string
	start := 0
	inSep := false
	for i, r := range s {
		switch {
		case isSep(r):
			inSep = true
		case inSep && unicode.IsSpace(r):
			// trailing whitespace belongs to the separator run
		case inSep:
			tokens = append(tokens, s[start:i])
			start = i
			inSep = false
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}

// hardCut cuts s into pieces of exactly maxLen characters (the last one may
// be shorter).
func hardCut(s string, maxLen int) []string {
	var out []string
	count := 0
	start := 0
	for i := range s {
		if count == maxLen {
			out = append(out, s[start:i])
			start = i
			count = 0
		}
		count++
	}
	return append(out, s[start:])
}
