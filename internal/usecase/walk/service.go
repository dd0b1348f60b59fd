// Package walk runs drift walks: chains of nearest-neighbour lookups where
// each accepted document's embedding becomes the next query.
package walk

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/semwalk/internal/domain"
	"github.com/kailas-cloud/semwalk/internal/domain/relatedness"
	domwalk "github.com/kailas-cloud/semwalk/internal/domain/walk"
	"github.com/kailas-cloud/semwalk/internal/logger"
	"github.com/kailas-cloud/semwalk/internal/metrics"
)

// DefaultConcurrency bounds WalkAll when no limit is configured.
const DefaultConcurrency = 4

// Service runs walks against one provider.
type Service struct {
	provider    Provider
	completer   Completer
	concurrency int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCompleter enables Summarize.
func WithCompleter(c Completer) Option {
	return func(s *Service) { s.completer = c }
}

// WithConcurrency sets how many walks WalkAll runs at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a walk service.
func New(provider Provider, opts ...Option) *Service {
	s := &Service{
		provider:    provider,
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Walk runs one drift walk. Threshold and candidate exhaustion end the walk
// normally with a partial trace; provider and dimension errors abort it and
// no trace is returned.
func (s *Service) Walk(ctx context.Context, p domwalk.Params) (domwalk.Result, error) {
	if err := p.Validate(); err != nil {
		return domwalk.Result{}, err
	}

	log := logger.FromContext(ctx, s.logger).With(
		zap.String("corpus", p.Corpus),
		zap.String("mode", string(p.Mode)),
	)
	log.Debug("Walk started",
		zap.Int("top_k", p.TopK),
		zap.Int("max_depth", p.MaxDepth),
		zap.Float64("threshold", p.Threshold),
	)

	start := time.Now()
	res, err := newState(p).run(ctx, s.provider)
	duration := time.Since(start)

	metrics.WalkDuration.WithLabelValues(string(p.Mode)).Observe(duration.Seconds())
	if err != nil {
		metrics.WalksTotal.WithLabelValues(string(p.Mode), "error").Inc()
		log.Warn("Walk aborted", zap.Duration("duration", duration), zap.Error(err))
		return domwalk.Result{}, err
	}
	metrics.WalksTotal.WithLabelValues(string(p.Mode), string(res.Halt)).Inc()
	metrics.WalkSteps.WithLabelValues(string(p.Mode)).Observe(float64(len(res.Trace)))

	log.Info("Walk finished",
		zap.String("halt", string(res.Halt)),
		zap.Int("steps", len(res.Trace)),
		zap.Duration("duration", duration),
	)
	return res, nil
}

// Outcome is the result of one walk in a WalkAll batch.
type Outcome struct {
	Result domwalk.Result
	Err    error
}

// WalkAll runs independent walks concurrently. Each walk owns its state, so
// a failure in one does not affect the others; outcomes keep input order.
// The returned error is non-nil only when ctx is cancelled.
func (s *Service) WalkAll(ctx context.Context, params []domwalk.Params) ([]Outcome, error) {
	out := make([]Outcome, len(params))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range params {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.Walk(gctx, params[i])
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("walk batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("walk batch: %w", err)
	}
	return out, nil
}

// state is owned by exactly one walk invocation.
type state struct {
	params    domwalk.Params
	query     domain.Query
	remaining int
	seen      map[string]struct{}
	anchor    domain.Embedding
	trace     []domwalk.Step
}

func newState(p domwalk.Params) *state {
	return &state{
		params:    p,
		query:     p.Query,
		remaining: p.MaxDepth,
		seen:      make(map[string]struct{}),
	}
}

func (st *state) run(ctx context.Context, provider Provider) (domwalk.Result, error) {
	for st.remaining > 0 {
		first := st.remaining == st.params.MaxDepth

		resp, err := provider.Search(ctx, st.params.Corpus, st.query, st.params.TopK)
		if err != nil {
			return domwalk.Result{}, fmt.Errorf("search at depth %d: %w", st.params.MaxDepth-st.remaining, err)
		}

		idx := 1
		if first {
			idx = 0
			if st.params.Mode == domwalk.RelativeToAnchor {
				st.anchor = resp.QueryEmbedding
			}
		}
		if idx >= len(resp.Hits) {
			return st.halt(domwalk.HaltCandidatesExhausted), nil
		}

		cand := resp.Hits[idx]
		score, err := st.score(cand)
		if err != nil {
			return domwalk.Result{}, err
		}
		if score < st.params.Threshold {
			return st.halt(domwalk.HaltBelowThreshold), nil
		}

		if st.isSeen(cand.Document) {
			next := st.firstUnseen(resp.Hits[idx+1:])
			if next == nil {
				return st.halt(domwalk.HaltCandidatesExhausted), nil
			}
			cand = *next
			if score, err = st.score(cand); err != nil {
				return domwalk.Result{}, err
			}
			if score < st.params.Threshold {
				return st.halt(domwalk.HaltBelowThreshold), nil
			}
		}

		st.accept(cand.Document, score)
		st.query = domain.VectorQuery{Vector: cand.Document.Embedding}
		st.remaining--
	}
	return st.halt(domwalk.HaltDepthExhausted), nil
}

func (st *state) score(h domain.Hit) (float64, error) {
	if st.params.Mode != domwalk.RelativeToAnchor {
		return h.Score, nil
	}
	s, err := relatedness.Score(st.anchor, h.Document.Embedding)
	if err != nil {
		return 0, fmt.Errorf("score against anchor: %w", err)
	}
	return s, nil
}

func (st *state) isSeen(d domain.Document) bool {
	_, ok := st.seen[d.Text]
	return ok
}

func (st *state) firstUnseen(hits []domain.Hit) *domain.Hit {
	for i := range hits {
		if !st.isSeen(hits[i].Document) {
			return &hits[i]
		}
	}
	return nil
}

func (st *state) accept(d domain.Document, score float64) {
	st.seen[d.Text] = struct{}{}
	st.trace = append(st.trace, domwalk.Step{Document: d, Score: score})
}

func (st *state) halt(reason domwalk.HaltReason) domwalk.Result {
	return domwalk.Result{Trace: st.trace, Halt: reason}
}
