package orchestrator

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pricofy/translation-gateway/internal/backend"
	"github.com/pricofy/translation-gateway/internal/chunker"
	"github.com/pricofy/translation-gateway/internal/domain"
	"github.com/pricofy/translation-gateway/internal/transport"
)

// dispatch runs every chunk and returns the results once all primary calls
// are terminal or ctx is done, whichever comes first. Chunks still pending
// at that point resolve to a timeout.
func (s *Session) dispatch(ctx context.Context, chunks []domain.Chunk) map[int][]domain.Result {
	dict := s.dictionaryEligible(chunks)

	g := new(errgroup.Group)
	g.SetLimit(s.o.maxConcurrency)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, c := range chunks {
			g.Go(func() error {
				s.runChunk(ctx, c, dict)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return s.seal()
}

// dictionaryEligible reports whether the dictionary channel runs: the
// backend has one and the text is a single word.
func (s *Session) dictionaryEligible(chunks []domain.Chunk) bool {
	if _, ok := s.plan.desc.Adapter.(backend.DictionaryAdapter); !ok {
		return false
	}
	return len(chunks) == 1 && chunker.IsSingleToken(chunks[0].Text)
}

func (s *Session) runChunk(ctx context.Context, c domain.Chunk, dict bool) {
	var wg sync.WaitGroup
	if dict {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r, ok := s.resolve(ctx, c, domain.ChannelDictionary); ok {
				s.record(r)
			}
		}()
	}

	r, _ := s.resolve(ctx, c, domain.ChannelPrimary)
	s.record(r)
	wg.Wait()
}

// resolve produces the terminal result of one channel for one chunk,
// including at most one replay with a refreshed credential. ok is false
// when the channel does not apply.
func (s *Session) resolve(ctx context.Context, c domain.Chunk, ch domain.Channel) (domain.Result, bool) {
	id := s.plan.desc.ID

	cred, err := s.credential(ctx)
	if err != nil {
		return domain.Failure(domain.ErrCredentialMissing, err.Error()).Tag(c.Index, id, ch), true
	}

	q := backend.Query{
		Text:       c.Text,
		Source:     s.plan.req.SourceLang,
		Target:     s.plan.req.TargetLang,
		Credential: cred,
	}
	res, ok := s.call(ctx, q, c.Index, ch)
	if !ok {
		return domain.Result{}, false
	}

	if s.plan.desc.Credential != nil {
		switch {
		case res.IsError() && res.ErrKind == domain.ErrCredentialExpired:
			fresh, err := s.forceRefresh(ctx)
			if err != nil {
				s.log().WithError(err).Warn("credential refresh failed")
				break
			}
			q.Credential = fresh
			res, _ = s.call(ctx, q, c.Index, ch)

		case ch == domain.ChannelPrimary && looksUnauthenticated(res):
			fresh, err := s.o.creds.Revalidate(ctx, id)
			if err != nil || sameCredential(fresh, cred) {
				break
			}
			q.Credential = fresh
			res, _ = s.call(ctx, q, c.Index, ch)
		}
	}

	return res.Tag(c.Index, id, ch), true
}

func (s *Session) credential(ctx context.Context) (*domain.Credential, error) {
	if s.plan.desc.Credential == nil {
		return nil, nil
	}
	return s.o.creds.GetOrRefresh(ctx, s.plan.desc.ID, false)
}

// forceRefresh refreshes the backend credential once per session. Later
// callers share the first result.
func (s *Session) forceRefresh(ctx context.Context) (*domain.Credential, error) {
	s.refreshOnce.Do(func() {
		s.setState(StateRetrying)
		s.log().Info("credential expired, forcing one refresh")
		s.refreshed, s.refreshErr = s.o.creds.GetOrRefresh(ctx, s.plan.desc.ID, true)
		s.setState(StateDispatched)
	})
	return s.refreshed, s.refreshErr
}

// call performs one channel request under the per-call deadline. ok is
// false when the adapter has no dictionary lookup for the query.
func (s *Session) call(ctx context.Context, q backend.Query, index int, ch domain.Channel) (domain.Result, bool) {
	ctx, span := s.o.tracer.Start(ctx, "orchestrator.call", trace.WithAttributes(
		attribute.String("backend", s.plan.desc.ID),
		attribute.String("channel", ch.String()),
		attribute.Int("chunk.index", index),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.o.callTimeout)
	defer cancel()

	res, err := s.exchange(ctx, q, ch)
	if errors.Is(err, backend.ErrNoDictionary) {
		return domain.Result{}, false
	}
	if err != nil {
		res = requestFailure(err)
	}

	span.SetAttributes(attribute.String("result.kind", res.Kind.String()))
	if res.IsError() {
		span.SetAttributes(attribute.String("error.kind", string(res.ErrKind)))
		span.SetStatus(codes.Error, res.Message)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res, true
}

// exchange sends the request and follows chained routes. An error means no
// request could be built.
func (s *Session) exchange(ctx context.Context, q backend.Query, ch domain.Channel) (domain.Result, error) {
	adapter := s.plan.desc.Adapter
	build, parse := adapter.BuildRequest, adapter.ParseResponse
	if ch == domain.ChannelDictionary {
		da, ok := adapter.(backend.DictionaryAdapter)
		if !ok {
			return domain.Result{}, backend.ErrNoDictionary
		}
		build, parse = da.BuildDictionaryRequest, da.ParseDictionaryResponse
	}

	req, err := build(q)
	if err != nil {
		return domain.Result{}, err
	}

	chained, _ := adapter.(backend.ChainedAdapter)
	var detected string
	for hop := 0; ; hop++ {
		raw, err := s.o.transport.Send(ctx, req)
		if err != nil {
			return domain.Failure(transport.Classify(err), err.Error()), nil
		}

		res := parse(raw, backend.ParseContext{Query: q, Channel: ch, Hop: hop})
		if detected == "" {
			detected = res.DetectedLang
		}
		if chained == nil || ch != domain.ChannelPrimary || res.Kind != domain.KindTranslation || hop+1 >= maxHops {
			return withDetected(res, detected), nil
		}

		next, more, err := chained.Continue(q, hop+1, res)
		if err != nil {
			return domain.Result{}, err
		}
		if !more {
			return withDetected(res, detected), nil
		}
		req = next
	}
}

// record stores a result unless the session lost its slot or stopped
// collecting.
func (s *Session) record(r domain.Result) {
	if !s.o.isCurrent(s) {
		s.log().WithField("chunk", r.ChunkIndex).Debug("dropping late result")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed || s.state.Terminal() {
		return
	}
	s.results[r.ChunkIndex] = append(s.results[r.ChunkIndex], r)
	if r.Channel == domain.ChannelPrimary {
		delete(s.pending, r.ChunkIndex)
	}
}

// seal stops collecting and returns a copy of the results.
func (s *Session) seal() map[int][]domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed = true
	for idx := range s.pending {
		timeout := domain.Failure(domain.ErrTimeout, "no response before the session deadline")
		s.results[idx] = append(s.results[idx], timeout.Tag(idx, s.plan.desc.ID, domain.ChannelPrimary))
	}
	clear(s.pending)

	out := make(map[int][]domain.Result, len(s.results))
	for idx, rs := range s.results {
		out[idx] = slices.Clone(rs)
	}
	return out
}

func requestFailure(err error) domain.Result {
	var be *domain.BackendError
	if errors.As(err, &be) {
		return domain.Failure(be.Kind, be.Message)
	}
	return domain.Failure(domain.ErrBackend, err.Error())
}

func withDetected(r domain.Result, lang string) domain.Result {
	if r.Kind == domain.KindTranslation && r.DetectedLang == "" {
		r.DetectedLang = lang
	}
	return r
}

// looksUnauthenticated reports results that some backends return instead of
// an error when the credential is stale.
func looksUnauthenticated(r domain.Result) bool {
	return r.Kind == domain.KindUnknown || (!r.IsError() && r.IsEmpty())
}

func sameCredential(a, b *domain.Credential) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IssuedAt.Equal(b.IssuedAt) && maps.Equal(a.Fields, b.Fields)
}
