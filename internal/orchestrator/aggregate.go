package orchestrator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pricofy/translation-gateway/internal/domain"
)

// ChunkOutcome is the rendered result of one chunk.
type ChunkOutcome struct {
	Index      int            `json:"index"`
	Source     string         `json:"source"`
	Text       string         `json:"text"`
	Primary    domain.Result  `json:"primary"`
	Dictionary *domain.Result `json:"dictionary,omitempty"`
	Failed     bool           `json:"failed,omitempty"`
}

// aggregate renders the results in chunk order. The error is a
// *domain.BackendError when every chunk failed with the same error kind;
// the outcome is returned either way.
func aggregate(chunks []domain.Chunk, results map[int][]domain.Result) (*Outcome, error) {
	out := &Outcome{Chunks: make([]ChunkOutcome, 0, len(chunks))}

	var (
		sb      strings.Builder
		failed  int
		kind    domain.ErrorKind
		message string
		uniform = true
	)
	for _, c := range chunks {
		co := renderChunk(c, results[c.Index])
		sb.WriteString(co.Text)

		if out.DetectedLang == "" && co.Primary.Kind == domain.KindTranslation {
			out.DetectedLang = co.Primary.DetectedLang
		}
		if co.Failed {
			failed++
			switch {
			case failed == 1:
				kind, message = co.Primary.ErrKind, co.Primary.Message
			case co.Primary.ErrKind != kind:
				uniform = false
			}
		}
		out.Chunks = append(out.Chunks, co)
	}

	out.Text = sb.String()
	out.Partial = failed > 0
	if len(chunks) > 0 && failed == len(chunks) && uniform {
		return out, &domain.BackendError{Kind: kind, Message: message}
	}
	return out, nil
}

// renderChunk picks what to show for one chunk. A successful channel always
// wins over a failed one; two failures of the same kind show one marker.
func renderChunk(c domain.Chunk, rs []domain.Result) ChunkOutcome {
	co := ChunkOutcome{Index: c.Index, Source: c.Text}

	var havePrimary bool
	for _, r := range rs {
		switch r.Channel {
		case domain.ChannelPrimary:
			if !havePrimary {
				co.Primary, havePrimary = r, true
			}
		case domain.ChannelDictionary:
			if co.Dictionary == nil {
				co.Dictionary = &r
			}
		}
	}
	if !havePrimary {
		co.Primary = domain.Failure(domain.ErrTimeout, "no response").Tag(c.Index, "", domain.ChannelPrimary)
	}

	p, d := co.Primary, co.Dictionary
	dictOK := d != nil && !d.IsError() && !d.IsEmpty()
	switch {
	case !p.IsError():
		co.Text = render(p)
		if dictOK {
			co.Text = appendBlock(co.Text, render(*d))
		}
	case dictOK:
		co.Text = render(*d)
	case d != nil && d.IsError() && d.ErrKind != p.ErrKind:
		co.Text = marker(p.ErrKind) + " " + marker(d.ErrKind)
		co.Failed = true
	default:
		co.Text = marker(p.ErrKind)
		co.Failed = true
	}

	co.Text = keepTrailingSpace(c.Text, co.Text)
	return co
}

func render(r domain.Result) string {
	switch r.Kind {
	case domain.KindTranslation:
		return r.Text
	case domain.KindDictionary:
		return renderEntries(r.Entries)
	case domain.KindUnknown:
		return strings.TrimSpace(r.Raw)
	}
	return ""
}

// renderEntries lays out a dictionary as numbered values under each
// heading.
func renderEntries(entries []domain.DictEntry) string {
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		var sb strings.Builder
		if e.Heading != "" {
			sb.WriteString(e.Heading)
			sb.WriteString(":")
		}
		for i, v := range e.Values {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%d. %s", i+1, v)
		}
		if sb.Len() > 0 {
			blocks = append(blocks, sb.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}

func marker(kind domain.ErrorKind) string {
	return "[" + kind.UserMessage() + "]"
}

func appendBlock(text, block string) string {
	if strings.TrimSpace(text) == "" {
		return block
	}
	return text + "\n\n" + block
}

// keepTrailingSpace carries the whitespace that ends the source chunk over
// to its rendering so that chunks do not run together.
func keepTrailingSpace(source, text string) string {
	trimmed := strings.TrimRightFunc(source, unicode.IsSpace)
	tail := source[len(trimmed):]
	if tail == "" || strings.TrimRightFunc(text, unicode.IsSpace) != text {
		return text
	}
	return text + tail
}
