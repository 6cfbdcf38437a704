// Package handler provides the request/response façade shared by the Lambda
// function and the CLI.
package handler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/orchestrator"
)

const (
	// MaxTexts caps the texts of one request.
	MaxTexts = 100

	// MaxParallelTexts caps the sessions one request runs at a time.
	MaxParallelTexts = 8
)

var langCode = regexp.MustCompile(`^[A-Za-z]{2,3}([-_][A-Za-z0-9]{2,8})*$`)

// Request is the input to the gateway.
type Request struct {
	Texts []string `json:"texts"`
	// SourceLang is optional; empty or "auto" means detect.
	SourceLang string `json:"sourceLang,omitempty"`
	// TargetLang is optional; empty means resolve from preferences.
	TargetLang      string `json:"targetLang,omitempty"`
	Backend         string `json:"backend,omitempty"`
	BackTranslation bool   `json:"backTranslation,omitempty"`
}

// Detail is the result of one input text.
type Detail struct {
	Text            string `json:"text"`
	SourceLang      string `json:"sourceLang,omitempty"`
	TargetLang      string `json:"targetLang,omitempty"`
	DetectedLang    string `json:"detectedLang,omitempty"`
	Backend         string `json:"backend,omitempty"`
	Partial         bool   `json:"partial,omitempty"`
	BackTranslation string `json:"backTranslation,omitempty"`
	Error           string `json:"error,omitempty"`

	chunks int
}

// Response is the output of the gateway.
type Response struct {
	Translations    []string `json:"translations,omitempty"`
	Details         []Detail `json:"details,omitempty"`
	ChunksProcessed int      `json:"chunksProcessed,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Translator starts sessions. *orchestrator.Orchestrator implements it.
type Translator interface {
	Translate(ctx context.Context, req domain.Request, opts ...orchestrator.TranslateOption) (*orchestrator.Session, error)
	Release(slot string)
}

// Handler serves translation requests.
type Handler struct {
	translator Translator
	log        logrus.FieldLogger
}

// New creates a Handler.
func New(t Translator, log logrus.FieldLogger) *Handler {
	return &Handler{translator: t, log: log}
}

// Handle translates every text of req. Each text runs as its own session;
// a failed text is reported in its Detail and does not fail the others.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	// Validate request
	if err := validateRequest(req); err != nil {
		return &Response{Error: err.Error()}, nil
	}

	// Empty input - return immediately
	if len(req.Texts) == 0 {
		return &Response{Translations: []string{}, ChunksProcessed: 0}, nil
	}

	requestID := uuid.NewString()
	details := make([]Detail, len(req.Texts))

	g := new(errgroup.Group)
	g.SetLimit(MaxParallelTexts)
	for i, text := range req.Texts {
		g.Go(func() error {
			details[i] = h.translate(ctx, fmt.Sprintf("%s/%d", requestID, i), req, text)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{
		Translations: make([]string, len(details)),
		Details:      details,
	}
	failed := 0
	for i, d := range details {
		resp.Translations[i] = d.Text
		resp.ChunksProcessed += d.chunks
		if d.Error != "" {
			failed++
		}
	}
	if failed == len(details) {
		resp.Error = fmt.Sprintf("translation failed: %s", details[0].Error)
	}

	h.log.WithFields(logrus.Fields{
		"request": requestID,
		"texts":   len(req.Texts),
		"chunks":  resp.ChunksProcessed,
		"failed":  failed,
	}).Info("request handled")

	return resp, nil
}

func (h *Handler) translate(ctx context.Context, slot string, req Request, text string) Detail {
	if strings.TrimSpace(text) == "" {
		return Detail{Text: text}
	}

	opts := []orchestrator.TranslateOption{orchestrator.WithSlot(slot)}
	if req.BackTranslation {
		opts = append(opts, orchestrator.WithBackTranslation())
	}

	s, err := h.translator.Translate(ctx, domain.Request{
		Text:       text,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Backend:    req.Backend,
	}, opts...)
	if err != nil {
		return Detail{Error: err.Error()}
	}
	defer h.translator.Release(slot)

	out, err := s.Wait(ctx)
	if err != nil {
		return Detail{Error: err.Error()}
	}

	d := Detail{
		Text:         out.Text,
		SourceLang:   out.Source,
		TargetLang:   out.Target,
		DetectedLang: out.DetectedLang,
		Backend:      out.Backend,
		Partial:      out.Partial,
		chunks:       len(out.Chunks),
	}
	if back := s.BackTranslation(); back != nil {
		bout, err := back.Wait(ctx)
		if err != nil {
			h.log.WithError(err).WithField("session", back.ID()).Warn("back-translation failed")
		} else {
			d.BackTranslation = bout.Text
		}
	}
	return d
}

// validateRequest checks the request is valid.
func validateRequest(req Request) error {
	if req.Texts == nil {
		return fmt.Errorf("texts is required")
	}
	if len(req.Texts) > MaxTexts {
		return fmt.Errorf("too many texts: %d (max %d)", len(req.Texts), MaxTexts)
	}
	if req.SourceLang != "" && !strings.EqualFold(req.SourceLang, "auto") && !langCode.MatchString(req.SourceLang) {
		return fmt.Errorf("invalid sourceLang %q", req.SourceLang)
	}
	if req.TargetLang != "" && !langCode.MatchString(req.TargetLang) {
		return fmt.Errorf("invalid targetLang %q", req.TargetLang)
	}
	if strings.EqualFold(req.Backend, "opus") && (req.SourceLang == "" || strings.EqualFold(req.SourceLang, "auto")) {
		return fmt.Errorf("backend opus needs sourceLang: auto-detection is not available")
	}
	return nil
}
