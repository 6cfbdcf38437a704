package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pricofy/translation-gateway/internal/chunker"
	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/language"
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateDispatched
	StateRetrying
	StateAggregating
	StateComplete
	StateFailed
	// StateRestarted means the session handed over to a successor.
	StateRestarted
	StateSuperseded
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatched:
		return "dispatched"
	case StateRetrying:
		return "retrying"
	case StateAggregating:
		return "aggregating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateRestarted:
		return "restarted"
	case StateSuperseded:
		return "superseded"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s >= StateComplete
}

// Outcome is the aggregated result of a completed session.
type Outcome struct {
	SessionID    string         `json:"sessionId"`
	Backend      string         `json:"backend"`
	Source       string         `json:"source,omitempty"`
	Target       string         `json:"target"`
	DetectedLang string         `json:"detectedLang,omitempty"`
	Text         string         `json:"text"`
	Partial      bool           `json:"partial,omitempty"`
	Chunks       []ChunkOutcome `json:"chunks"`
}

// Session is one in-flight translation.
type Session struct {
	id     string
	o      *Orchestrator
	plan   plan
	parent context.Context
	ctx    context.Context
	cancel context.CancelCauseFunc

	refreshOnce sync.Once
	refreshed   *domain.Credential
	refreshErr  error

	mu      sync.Mutex
	state   State
	chunks  []domain.Chunk
	pending map[int]struct{}
	results map[int][]domain.Result
	sealed  bool
	outcome *Outcome
	err     error
	next    *Session
	back    *Session
	done    chan struct{}
}

func newSession(o *Orchestrator, parent context.Context, p plan) *Session {
	ctx, cancel := context.WithCancelCause(parent)
	return &Session{
		id:      uuid.NewString(),
		o:       o,
		plan:    p,
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateIdle,
		pending: make(map[int]struct{}),
		results: make(map[int][]domain.Result),
		done:    make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Slot returns the slot the session runs in.
func (s *Session) Slot() string { return s.plan.slot }

// Request returns the resolved request. SourceLang is empty for
// auto-detection.
func (s *Session) Request() domain.Request { return s.plan.req }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session ends and returns its outcome. A restarted
// session is followed to its successor.
func (s *Session) Wait(ctx context.Context) (*Outcome, error) {
	cur := s
	for {
		select {
		case <-cur.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		cur.mu.Lock()
		next, out, err := cur.next, cur.outcome, cur.err
		cur.mu.Unlock()

		if next == nil {
			return out, err
		}
		cur = next
	}
}

// BackTranslation returns the back-translation session started on
// completion, or nil. Call it after Wait.
func (s *Session) BackTranslation() *Session {
	cur := s
	for {
		cur.mu.Lock()
		next, back := cur.next, cur.back
		cur.mu.Unlock()
		if next == nil {
			return back
		}
		cur = next
	}
}

// Cancel aborts the session and its successor. In-flight calls are
// cancelled and their results dropped.
func (s *Session) Cancel() {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = StateCancelled
	}
	next := s.next
	s.mu.Unlock()

	s.cancel(context.Canceled)
	if next != nil {
		next.Cancel()
	}
}

func (s *Session) supersede() {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateSuperseded
	s.mu.Unlock()

	s.cancel(domain.ErrSuperseded)
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Terminal() {
		s.state = st
	}
}

func (s *Session) log() logrus.FieldLogger {
	return s.o.log.WithFields(logrus.Fields{
		"session": s.id,
		"slot":    s.plan.slot,
		"backend": s.plan.desc.ID,
	})
}

func (s *Session) isBack() bool {
	return strings.HasSuffix(s.plan.slot, backSuffix)
}

func (s *Session) run() {
	defer s.cancel(nil)

	ctx, span := s.o.tracer.Start(s.ctx, "orchestrator.session", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("session.slot", s.plan.slot),
		attribute.String("backend", s.plan.desc.ID),
		attribute.String("lang.source", s.plan.req.SourceLang),
		attribute.String("lang.target", s.plan.req.TargetLang),
		attribute.Bool("session.restarted", s.plan.restarted),
	))
	defer span.End()

	if err := context.Cause(s.ctx); err != nil {
		s.finish(nil, err, StateCancelled)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.o.sessionTimeout)
	defer cancel()

	chunks := chunker.Split(s.plan.req.Text, s.plan.desc.MaxChunk)
	s.mu.Lock()
	s.chunks = chunks
	for _, c := range chunks {
		s.pending[c.Index] = struct{}{}
	}
	s.mu.Unlock()
	s.setState(StateDispatched)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	results := s.dispatch(ctx, chunks)

	if err := context.Cause(s.ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.finish(nil, err, StateCancelled)
		return
	}

	s.setState(StateAggregating)
	out, err := aggregate(chunks, results)
	out.SessionID = s.id
	out.Backend = s.plan.desc.ID
	out.Source = s.plan.req.SourceLang
	out.Target = s.plan.req.TargetLang

	var be *domain.BackendError
	if errors.As(err, &be) {
		if be.Kind.Retryable() && !s.plan.restarted {
			s.log().WithError(err).Info("restarting session after transient failure")
			p := s.plan
			p.restarted = true
			s.restart(p)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log().WithError(err).Warn("session failed")
		s.finish(nil, err, StateFailed)
		return
	}

	if p, ok := s.retranslation(out); ok {
		s.log().WithFields(logrus.Fields{
			"detected": out.DetectedLang,
			"target":   p.req.TargetLang,
		}).Info("detected language equals target, translating again")
		s.restart(p)
		return
	}

	if !s.isBack() {
		target := s.plan.req.TargetLang
		source := s.plan.req.SourceLang
		pairs := []language.Pair{{Source: source, Target: target}}
		if source == "" {
			source = out.DetectedLang
			if language.IsKnown(source) {
				pairs = append(pairs, language.Pair{Source: source, Target: target})
			}
		}
		s.o.remember(s.ctx, pairs...)
		if s.plan.back {
			s.startBack(source, out)
		}
	}

	span.SetAttributes(attribute.Bool("outcome.partial", out.Partial))
	span.SetStatus(codes.Ok, "")
	s.finish(out, nil, StateComplete)
}

// retranslation returns the plan of a new session when an auto-detected
// source turned out to be the target language. It triggers only once.
func (s *Session) retranslation(out *Outcome) (plan, bool) {
	if s.plan.restarted || s.plan.req.SourceLang != "" {
		return plan{}, false
	}
	if !language.Same(out.DetectedLang, s.plan.req.TargetLang) {
		return plan{}, false
	}

	p := s.plan
	p.req.TargetLang = language.ResolveTarget(out.DetectedLang, "", p.prefs.Language)
	p.restarted = true
	return p, true
}

// startBack translates the outcome back into source in its own slot. The
// child outlives the parent's cancellation.
func (s *Session) startBack(source string, out *Outcome) {
	if !language.IsKnown(source) || strings.TrimSpace(out.Text) == "" {
		return
	}

	p := plan{
		req: domain.Request{
			Text:       out.Text,
			SourceLang: s.plan.req.TargetLang,
			TargetLang: source,
			Backend:    s.plan.desc.ID,
		},
		desc:  s.plan.desc,
		prefs: s.plan.prefs,
		slot:  s.plan.slot + backSuffix,
	}
	child := s.o.start(context.WithoutCancel(s.parent), p)

	s.mu.Lock()
	s.back = child
	s.mu.Unlock()
}

// restart hands the slot over to a new session for p.
func (s *Session) restart(p plan) {
	next := newSession(s.o, s.parent, p)

	s.mu.Lock()
	if s.state == StateSuperseded || s.state == StateCancelled {
		s.mu.Unlock()
		s.finish(nil, nil, s.state)
		return
	}
	s.state = StateRestarted
	s.next = next
	s.mu.Unlock()

	s.o.launch(next, s)
	close(s.done)
}

// finish records the result and releases waiters. A superseded or cancelled
// session keeps its state and reports why it stopped.
func (s *Session) finish(out *Outcome, err error, state State) {
	s.mu.Lock()
	switch s.state {
	case StateSuperseded:
		out, err = nil, domain.ErrSuperseded
	case StateCancelled:
		out, err = nil, context.Cause(s.ctx)
		if err == nil {
			err = context.Canceled
		}
	default:
		s.state = state
	}
	s.outcome, s.err = out, err
	s.mu.Unlock()

	close(s.done)
}
