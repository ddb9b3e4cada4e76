// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expand grows a bounded graph of related papers around a root
// paper. Expansion is breadth-first: every frontier paper is fanned out to
// the discovery sources, and the candidates are admitted as nodes until
// the node budget or the depth limit is reached.
//
// Fan-outs within one frontier chunk run concurrently, but admission is
// done by a single goroutine in frontier order. Given deterministic
// sources, the same request always yields the same graph.
package expand

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-spider/internal/discovery"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

const defaultConcurrency = 4

// Discoverer fans one paper out to the discovery sources.
// *discovery.Fanout implements it.
type Discoverer interface {
	Discover(ctx context.Context, paper types.PaperMetadata) discovery.Result
}

// Stats describes how an expansion went. None of it is an error.
type Stats struct {
	Nodes int
	Edges int

	// Fanouts counts papers fanned out, including cross-link fan-outs.
	Fanouts int

	// CrossLinkFanouts counts fan-outs run after the node budget was spent.
	CrossLinkFanouts int

	// BudgetExhausted is set when the node budget stopped the expansion
	// from admitting papers it had found or from exploring papers it had.
	BudgetExhausted bool

	// SourceErrors lists every failed source call, in fan-out order.
	SourceErrors []types.SourceError

	Duration time.Duration
}

// Engine runs expansions. It holds no per-request state, so one Engine
// serves concurrent Expand calls.
type Engine struct {
	disc    Discoverer
	cfg     types.ExpansionConfig
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records expansion metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine over d. A zero Concurrency uses 4; a zero
// CrossLinkFanouts disables cross-link fan-outs.
func NewEngine(d Discoverer, cfg types.ExpansionConfig, opts ...Option) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CrossLinkFanouts < 0 {
		cfg.CrossLinkFanouts = 0
	}
	e := &Engine{disc: d, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand builds the graph for req. It returns ErrInvalidRequest (wrapped)
// for a bad request and ctx.Err() when cancelled. Source failures never
// fail the expansion; they are reported in Stats.
func (e *Engine) Expand(ctx context.Context, req types.ExpansionRequest) (types.GraphResponse, Stats, error) {
	start := time.Now()
	if err := e.validate(req); err != nil {
		e.metrics.ObserveExpansion("invalid", 0, time.Since(start))
		return types.GraphResponse{}, Stats{}, err
	}

	r := newRun(req)
	err := e.loop(ctx, r)
	r.stats.Duration = time.Since(start)
	if err != nil {
		e.metrics.ObserveExpansion("cancelled", 0, r.stats.Duration)
		return types.GraphResponse{}, r.stats, err
	}

	graph := r.graph()
	r.stats.Nodes = len(graph.Nodes)
	r.stats.Edges = len(graph.Edges)

	outcome := "complete"
	if r.stats.BudgetExhausted {
		outcome = "budget_exhausted"
	}
	e.metrics.ObserveExpansion(outcome, r.stats.Nodes, r.stats.Duration)
	e.logger.Info("expansion finished",
		"root", graph.Nodes[0].ID,
		"nodes", r.stats.Nodes,
		"edges", r.stats.Edges,
		"fanouts", r.stats.Fanouts,
		"source_errors", len(r.stats.SourceErrors),
		"budget_exhausted", r.stats.BudgetExhausted,
		"duration", r.stats.Duration)
	return graph, r.stats, nil
}

func (e *Engine) validate(req types.ExpansionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if e.cfg.MaxNodesLimit > 0 && req.MaxNodes > e.cfg.MaxNodesLimit {
		return fmt.Errorf("%w: max_nodes %d exceeds limit %d", types.ErrInvalidRequest, req.MaxNodes, e.cfg.MaxNodesLimit)
	}
	if e.cfg.MaxDepthLimit > 0 && req.MaxDepth > e.cfg.MaxDepthLimit {
		return fmt.Errorf("%w: max_depth %d exceeds limit %d", types.ErrInvalidRequest, req.MaxDepth, e.cfg.MaxDepthLimit)
	}
	return nil
}

func (e *Engine) loop(ctx context.Context, r *run) error {
	crossLinksLeft := e.cfg.CrossLinkFanouts
	for len(r.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := e.cfg.Concurrency
		crossLink := r.remaining == 0
		if crossLink {
			// Only edges among existing nodes can come out of these.
			if crossLinksLeft == 0 || len(r.nodes) < 2 {
				r.noteUnexplored()
				return nil
			}
			n = min(n, crossLinksLeft)
		}

		chunk := r.nextChunk(n)
		if len(chunk) == 0 {
			continue
		}
		if crossLink {
			crossLinksLeft -= len(chunk)
			r.stats.CrossLinkFanouts += len(chunk)
		}

		results, err := e.fanout(ctx, r, chunk)
		if err != nil {
			return err
		}
		for i, it := range chunk {
			if !crossLink && r.remaining == 0 {
				// Fanned out before the budget ran out mid-chunk.
				crossLinksLeft = max(crossLinksLeft-1, 0)
				r.stats.CrossLinkFanouts++
			}
			r.stats.SourceErrors = append(r.stats.SourceErrors, results[i].Errors...)
			r.admit(it, results[i].Ordered())
		}
	}
	return nil
}

// fanout discovers every chunk item concurrently. Results are indexed like
// chunk so admission order does not depend on completion order.
func (e *Engine) fanout(ctx context.Context, r *run, chunk []frontierItem) ([]discovery.Result, error) {
	results := make([]discovery.Result, len(chunk))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, it := range chunk {
		paper := r.nodes[r.index[it.key]].PaperMetadata
		g.Go(func() error {
			results[i] = e.disc.Discover(gctx, paper)
			return nil
		})
	}
	_ = g.Wait()
	r.stats.Fanouts += len(chunk)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

type frontierItem struct {
	key   string
	depth int
}

type edgeKey struct {
	source, target string
	typ            types.EdgeType
}

// run is the state of one expansion. Only the orchestrating goroutine
// touches it.
type run struct {
	maxDepth  int
	remaining int

	nodes    []types.GraphNode
	index    map[string]int
	edges    []types.GraphEdge
	edgeSet  map[edgeKey]struct{}
	frontier []frontierItem
	stats    Stats
}

func newRun(req types.ExpansionRequest) *run {
	root := identity.Normalize(req.RootMetadata)
	root.ID = identity.Resolve(root)

	r := &run{
		maxDepth:  req.MaxDepth,
		remaining: req.MaxNodes - 1,
		index:     map[string]int{root.ID: 0},
		edgeSet:   make(map[edgeKey]struct{}),
		frontier:  []frontierItem{{key: root.ID, depth: 0}},
	}
	r.nodes = append(r.nodes, types.GraphNode{PaperMetadata: root})
	return r
}

// nextChunk pops up to n expandable items off the frontier. Items at the
// depth limit are dropped: they stay in the graph but are not explored.
func (r *run) nextChunk(n int) []frontierItem {
	var chunk []frontierItem
	for len(r.frontier) > 0 && len(chunk) < n {
		it := r.frontier[0]
		r.frontier = r.frontier[1:]
		if it.depth >= r.maxDepth {
			continue
		}
		chunk = append(chunk, it)
	}
	return chunk
}

// noteUnexplored marks the budget as exhausted when the frontier still
// holds papers that the depth limit would have allowed to expand.
func (r *run) noteUnexplored() {
	for _, it := range r.frontier {
		if it.depth < r.maxDepth {
			r.stats.BudgetExhausted = true
			return
		}
	}
}

// pending is an unvisited candidate paper seen in one fan-out batch,
// possibly several times through different signals.
type pending struct {
	key     string
	meta    types.PaperMetadata
	arrived []types.CandidatePaper
	signals map[types.EdgeType]bool
}

// admit processes one fan-out batch for it. Candidates already in the
// graph get edges only. New candidates are admitted in arrival order,
// unless there are more than the remaining budget allows; then the ones
// seen through the most distinct signals, then the ones with a citation
// signal, win the remaining slots.
func (r *run) admit(it frontierItem, batch []types.CandidatePaper) {
	var order []*pending
	byKey := make(map[string]*pending)

	for _, c := range batch {
		meta := identity.Normalize(c.Metadata)
		if meta.Title == "" {
			continue
		}
		key := identity.Resolve(meta)
		if key == it.key {
			continue
		}

		if idx, ok := r.index[key]; ok {
			r.nodes[idx].PaperMetadata = identity.Prefer(r.nodes[idx].PaperMetadata, meta)
			r.addEdge(it.key, key, c)
			continue
		}

		p := byKey[key]
		if p == nil {
			meta.ID = key
			p = &pending{key: key, meta: meta, signals: make(map[types.EdgeType]bool)}
			byKey[key] = p
			order = append(order, p)
		} else {
			p.meta = identity.Prefer(p.meta, meta)
		}
		p.arrived = append(p.arrived, c)
		p.signals[c.Signal] = true
	}

	if len(order) > r.remaining {
		sort.SliceStable(order, func(i, j int) bool {
			a, b := order[i], order[j]
			if len(a.signals) != len(b.signals) {
				return len(a.signals) > len(b.signals)
			}
			return a.signals[types.EdgeCitation] && !b.signals[types.EdgeCitation]
		})
		order = order[:r.remaining]
		r.stats.BudgetExhausted = true
	}

	for _, p := range order {
		r.index[p.key] = len(r.nodes)
		r.nodes = append(r.nodes, types.GraphNode{PaperMetadata: p.meta})
		r.frontier = append(r.frontier, frontierItem{key: p.key, depth: it.depth + 1})
		r.remaining--
		for _, c := range p.arrived {
			r.addEdge(it.key, p.key, c)
		}
	}
}

// addEdge links the expanded paper and a candidate. Citation candidates
// that cite the expanded paper point at it; every other edge starts at
// the expanded paper. Undirected edges are unique per unordered pair.
func (r *run) addEdge(expanded, candidate string, c types.CandidatePaper) {
	typ := c.Signal
	if !typ.Valid() {
		return
	}
	src, tgt := expanded, candidate
	if typ == types.EdgeCitation && c.Citing {
		src, tgt = candidate, expanded
	}
	k := edgeKey{src, tgt, typ}
	if !typ.Directed() && k.target < k.source {
		k.source, k.target = k.target, k.source
	}
	if _, dup := r.edgeSet[k]; dup {
		return
	}
	r.edgeSet[k] = struct{}{}
	r.edges = append(r.edges, types.GraphEdge{Source: src, Target: tgt, Type: typ})
}

func (r *run) graph() types.GraphResponse {
	if r.edges == nil {
		r.edges = []types.GraphEdge{}
	}
	return types.GraphResponse{Nodes: r.nodes, Edges: r.edges}
}
