// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package discovery finds papers related to a given paper. Each signal
// (citation, semantic, keyword, author) is served by one or more Source
// adapters; Fanout queries all of them concurrently and joins whatever
// succeeded.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

// Source finds papers related to one paper through one signal. Each
// upstream adapter (Semantic Scholar, OpenAlex, arXiv) implements it once
// per signal it serves.
//
// FindRelated must return at most limit candidates. Returning no
// candidates is not an error.
type Source interface {
	Name() string
	Signal() types.EdgeType
	FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error)
}

// ErrSourceTimeout wraps a source call that exceeded its timeout.
var ErrSourceTimeout = errors.New("source timed out")

// Result is the joined output of one fan-out. Candidates holds, per
// signal, the candidates of every source serving that signal in
// registration order. Errors lists the sources that failed.
type Result struct {
	Candidates map[types.EdgeType][]types.CandidatePaper
	Errors     []types.SourceError
}

// Ordered flattens Candidates in the fixed signal order of
// types.AllEdgeTypes.
func (r Result) Ordered() []types.CandidatePaper {
	var out []types.CandidatePaper
	for _, sig := range types.AllEdgeTypes {
		out = append(out, r.Candidates[sig]...)
	}
	return out
}

// AllFailed reports whether no source produced an answer.
func (r Result) AllFailed(sources int) bool {
	return sources > 0 && len(r.Errors) == sources
}

// Fanout queries a fixed set of sources in parallel.
type Fanout struct {
	sources  []Source
	limiters []*rate.Limiter
	timeout  time.Duration
	limit    int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures a Fanout.
type Option func(*Fanout)

// WithLogger sets the logger used for source failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fanout) { f.logger = l }
}

// WithMetrics records source call metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(f *Fanout) { f.metrics = m }
}

// NewFanout builds a fan-out over sources using the timeout, per-source
// limit, and rate limit from cfg.
func NewFanout(sources []Source, cfg types.DiscoveryConfig, opts ...Option) *Fanout {
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := cfg.PerSourceLimit
	if limit <= 0 {
		limit = 5
	}

	f := &Fanout{
		sources:  sources,
		limiters: make([]*rate.Limiter, len(sources)),
		timeout:  timeout,
		limit:    limit,
		logger:   slog.Default(),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		for i := range sources {
			f.limiters[i] = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sources returns the number of configured sources.
func (f *Fanout) Sources() int { return len(f.sources) }

type outcome struct {
	candidates []types.CandidatePaper
	err        error
}

// Discover queries every source for papers related to paper and joins the
// results. A failing or slow source never cancels the others: its error
// is recorded in Result.Errors and it contributes no candidates.
func (f *Fanout) Discover(ctx context.Context, paper types.PaperMetadata) Result {
	outcomes := make([]outcome, len(f.sources))

	var g errgroup.Group
	for i, src := range f.sources {
		g.Go(func() error {
			outcomes[i] = f.call(ctx, i, src, paper)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Candidates: make(map[types.EdgeType][]types.CandidatePaper)}
	for i, src := range f.sources {
		o := outcomes[i]
		if o.err != nil {
			se := types.SourceError{Source: src.Name(), Signal: src.Signal(), PaperID: paper.ID, Err: o.err}
			res.Errors = append(res.Errors, se)
			f.logger.Warn("discovery source failed",
				"source", se.Source, "signal", string(se.Signal), "paper", se.PaperID, "error", o.err)
			continue
		}
		res.Candidates[src.Signal()] = append(res.Candidates[src.Signal()], o.candidates...)
	}
	return res
}

func (f *Fanout) call(ctx context.Context, i int, src Source, paper types.PaperMetadata) outcome {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	var o outcome
	if lim := f.limiters[i]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			o.err = f.wrapErr(ctx, err)
		}
	}
	if o.err == nil {
		cands, err := src.FindRelated(ctx, paper, f.limit)
		if err != nil {
			o.err = f.wrapErr(ctx, err)
		} else {
			o.candidates = stamp(cands, src, f.limit)
		}
	}
	f.metrics.ObserveSourceCall(src.Name(), string(src.Signal()), time.Since(start), len(o.candidates), o.err != nil)
	return o
}

func (f *Fanout) wrapErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v: %v", ErrSourceTimeout, f.timeout, err)
	}
	return err
}

// stamp sets the signal and source on every candidate and enforces the cap
// in case an adapter ignored it.
func stamp(cands []types.CandidatePaper, src Source, limit int) []types.CandidatePaper {
	if len(cands) > limit {
		cands = cands[:limit]
	}
	out := make([]types.CandidatePaper, 0, len(cands))
	for _, c := range cands {
		if c.Metadata.Title == "" {
			continue
		}
		c.Signal = src.Signal()
		c.Source = src.Name()
		if c.Signal != types.EdgeCitation {
			c.Citing = false
		}
		out = append(out, c)
	}
	return out
}
