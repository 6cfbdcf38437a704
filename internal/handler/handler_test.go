package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/pricofy/translation-gateway/internal/backend"
	"github.com/pricofy/translation-gateway/internal/config"
	"github.com/pricofy/translation-gateway/internal/credential"
	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/logging"
	"github.com/pricofy/translation-gateway/internal/orchestrator"
	"github.com/pricofy/translation-gateway/internal/transport"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name        string
		request     Request
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid request",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "es",
				TargetLang: "fr",
			},
			expectError: false,
		},
		{
			name: "source is optional",
			request: Request{
				Texts:      []string{"Hello"},
				TargetLang: "fr",
			},
			expectError: false,
		},
		{
			name: "auto source",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "auto",
			},
			expectError: false,
		},
		{
			name: "regional codes",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "zh-TW",
				TargetLang: "pt_BR",
			},
			expectError: false,
		},
		{
			name: "opus without source",
			request: Request{
				Texts:      []string{"Hello"},
				TargetLang: "fr",
				Backend:    "opus",
			},
			expectError: true,
			errorMsg:    "backend opus needs sourceLang: auto-detection is not available",
		},
		{
			name: "opus with auto source",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "AUTO",
				TargetLang: "fr",
				Backend:    "Opus",
			},
			expectError: true,
			errorMsg:    "backend opus needs sourceLang: auto-detection is not available",
		},
		{
			name: "opus with source",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "es",
				TargetLang: "fr",
				Backend:    "opus",
			},
			expectError: false,
		},
		{
			name: "invalid sourceLang",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "e",
				TargetLang: "fr",
			},
			expectError: true,
			errorMsg:    `invalid sourceLang "e"`,
		},
		{
			name: "invalid targetLang",
			request: Request{
				Texts:      []string{"Hello"},
				SourceLang: "es",
				TargetLang: "fr;drop",
			},
			expectError: true,
			errorMsg:    `invalid targetLang "fr;drop"`,
		},
		{
			name: "nil texts",
			request: Request{
				Texts:      nil,
				SourceLang: "es",
				TargetLang: "fr",
			},
			expectError: true,
			errorMsg:    "texts is required",
		},
		{
			name: "too many texts",
			request: Request{
				Texts:      make([]string, MaxTexts+1),
				TargetLang: "fr",
			},
			expectError: true,
			errorMsg:    "too many texts: 101 (max 100)",
		},
		{
			name: "empty texts array is valid",
			request: Request{
				Texts:      []string{},
				SourceLang: "es",
				TargetLang: "fr",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.request)

			if tt.expectError {
				if err == nil {
					t.Errorf("validateRequest() should have returned error")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("validateRequest() error = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("validateRequest() unexpected error: %v", err)
				}
			}
		})
	}
}

// recorder collects the invoked function URLs.
type recorder struct {
	mu   sync.Mutex
	urls []string
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}

// opusTranslator answers like the translator functions with the text
// upper-cased. The text "fail" makes the model report an error.
func opusTranslator(rec *recorder) transport.Func {
	return func(_ context.Context, req domain.WireRequest) (domain.RawResponse, error) {
		rec.mu.Lock()
		rec.urls = append(rec.urls, req.URL)
		rec.mu.Unlock()
		text := gjson.GetBytes(req.Body, "chunks.0.0").String()
		if text == "fail" {
			return domain.RawResponse{Status: http.StatusOK, Body: []byte(`{"error":"model crashed"}`)}, nil
		}
		body, _ := json.Marshal(map[string]any{"translations": [][]string{{strings.ToUpper(text)}}})
		return domain.RawResponse{Status: http.StatusOK, Body: body}, nil
	}
}

func newHandler(t *testing.T, tr transport.Transport) *Handler {
	t.Helper()
	reg := backend.Default()
	cache := credential.NewCache(credential.RefreshFunc(func(context.Context, string) (map[string]string, error) {
		return nil, errors.New("no credentials in tests")
	}))
	o, err := orchestrator.New(orchestrator.Deps{
		Registry:    reg,
		Transport:   tr,
		Credentials: cache,
		Store:       config.NewMemoryStore(nil),
	}, orchestrator.WithLogger(logging.Discard()), orchestrator.WithDefaultBackend("opus"), orchestrator.WithMaxConcurrency(1))
	require.NoError(t, err)
	return New(o, logging.Discard())
}

func TestHandle_EmptyTexts(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{Texts: []string{}, SourceLang: "es", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, resp.Translations)
	assert.Empty(t, resp.Error)
	assert.Empty(t, rec.calls())
}

func TestHandle_InvalidRequest(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{SourceLang: "es", TargetLang: "fr"})
	require.NoError(t, err)
	assert.Equal(t, "texts is required", resp.Error)
}

func TestHandle_TranslatesInOrder(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{
		Texts:      []string{"hola", "", "adiós"},
		SourceLang: "es",
		TargetLang: "en",
		Backend:    "opus",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []string{"HOLA", "", "ADIÓS"}, resp.Translations)
	assert.Equal(t, 2, resp.ChunksProcessed)
	assert.Equal(t, "opus", resp.Details[0].Backend)
	assert.Equal(t, "es", resp.Details[0].SourceLang)
	assert.Equal(t, "en", resp.Details[0].TargetLang)
	assert.Len(t, rec.calls(), 2)
}

func TestHandle_PivotAndBackTranslation(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{
		Texts:           []string{"hallo"},
		SourceLang:      "de",
		TargetLang:      "fr",
		BackTranslation: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "HALLO", resp.Details[0].Text)
	assert.Equal(t, "HALLO", resp.Details[0].BackTranslation)
	// de-en, en-romance, then romance-en, en-de for the way back
	calls := rec.calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[0], "de-en")
	assert.Contains(t, calls[1], "en-romance")
}

func TestHandle_PerTextFailures(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{
		Texts:      []string{"fail", "bien"},
		SourceLang: "es",
		TargetLang: "en",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Error)
	assert.Contains(t, resp.Details[0].Error, "model crashed")
	assert.Equal(t, "BIEN", resp.Translations[1])

	resp, err = h.Handle(context.Background(), Request{
		Texts:      []string{"fail"},
		SourceLang: "es",
		TargetLang: "en",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Error, "translation failed: "))
}

func TestHandle_UnknownBackend(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{Texts: []string{"hola"}, TargetLang: "en", Backend: "nope"})
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "unknown backend")
}

func TestHandle_DefaultOpusNeedsSource(t *testing.T) {
	rec := &recorder{}
	h := newHandler(t, opusTranslator(rec))

	resp, err := h.Handle(context.Background(), Request{Texts: []string{"hola"}, TargetLang: "en"})
	require.NoError(t, err)
	require.Len(t, resp.Details, 1)
	assert.NotEmpty(t, resp.Details[0].Error)
	assert.Empty(t, rec.calls())
}
