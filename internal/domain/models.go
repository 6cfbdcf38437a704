// Package domain contains the core domain types for the translation gateway.
package domain

import (
	"maps"
	"strings"
	"time"
)

// Request is a single user translation request.
// SourceLang is optional; empty means auto-detect.
type Request struct {
	Text       string `json:"text"`
	SourceLang string `json:"sourceLang,omitempty"`
	TargetLang string `json:"targetLang"`
	Backend    string `json:"backend"`
}

// Chunk is a bounded, order-preserving slice of the input text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Channel distinguishes the primary translation call from the secondary
// dictionary lookup made for the same chunk.
type Channel int

const (
	ChannelPrimary Channel = iota
	ChannelDictionary
)

func (c Channel) String() string {
	if c == ChannelDictionary {
		return "dictionary"
	}
	return "primary"
}

// ResultKind tags the variant held by a Result.
type ResultKind int

const (
	KindTranslation ResultKind = iota
	KindDictionary
	KindError
	KindUnknown
)

func (k ResultKind) String() string {
	switch k {
	case KindTranslation:
		return "translation"
	case KindDictionary:
		return "dictionary"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// DictEntry is one heading (usually a part of speech) with its values.
type DictEntry struct {
	Heading string   `json:"heading"`
	Values  []string `json:"values"`
}

// Result is the normalized outcome of one backend call for one chunk.
// Which fields are meaningful depends on Kind.
type Result struct {
	ChunkIndex int        `json:"chunkIndex"`
	Backend    string     `json:"backend"`
	Channel    Channel    `json:"channel"`
	Kind       ResultKind `json:"kind"`

	// Translation
	Text         string `json:"text,omitempty"`
	DetectedLang string `json:"detectedLang,omitempty"`

	// Dictionary
	Entries []DictEntry `json:"entries,omitempty"`

	// Error
	ErrKind ErrorKind `json:"errKind,omitempty"`
	Message string    `json:"message,omitempty"`

	// Unknown
	Raw string `json:"raw,omitempty"`
}

// Translation builds a successful translation result.
func Translation(text, detectedLang string) Result {
	return Result{Kind: KindTranslation, Text: text, DetectedLang: detectedLang}
}

// Dictionary builds a dictionary result.
func Dictionary(entries []DictEntry) Result {
	return Result{Kind: KindDictionary, Entries: entries}
}

// Failure builds an error result.
func Failure(kind ErrorKind, message string) Result {
	return Result{Kind: KindError, ErrKind: kind, Message: message}
}

// Unknown wraps a response body that could not be recognized.
func Unknown(raw []byte) Result {
	return Result{Kind: KindUnknown, Raw: string(raw)}
}

// Tag attaches the chunk, backend and channel triple to r.
func (r Result) Tag(chunkIndex int, backend string, channel Channel) Result {
	r.ChunkIndex = chunkIndex
	r.Backend = backend
	r.Channel = channel
	return r
}

// IsError reports whether r is an error result.
func (r Result) IsError() bool {
	return r.Kind == KindError
}

// IsEmpty reports whether a non-error result carries nothing to show.
func (r Result) IsEmpty() bool {
	switch r.Kind {
	case KindTranslation:
		return strings.TrimSpace(r.Text) == ""
	case KindDictionary:
		return len(r.Entries) == 0
	case KindUnknown:
		return strings.TrimSpace(r.Raw) == ""
	}
	return false
}

// Credential is an ephemeral backend access token set.
type Credential struct {
	Backend  string            `json:"backend"`
	Fields   map[string]string `json:"fields"`
	IssuedAt time.Time         `json:"issuedAt"`
}

// Field returns the named credential field, or "" when absent.
func (c *Credential) Field(name string) string {
	if c == nil {
		return ""
	}
	return c.Fields[name]
}

// Clone returns a deep copy of c.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Fields = maps.Clone(c.Fields)
	return &out
}

// WireRequest describes one outbound call. The core never performs I/O
// itself; transports execute these descriptors.
type WireRequest struct {
	URL    string            `json:"url"`
	Method string            `json:"method"`
	Header map[string]string `json:"header,omitempty"`
	Body   []byte            `json:"body,omitempty"`
}

// RawResponse is what a transport returns for a WireRequest.
type RawResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// OK reports a 2xx status.
func (r RawResponse) OK() bool {
	return r.Status >= 200 && r.Status < 300
}
