// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-spider/internal/discovery"
	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

// fakeDiscoverer answers from a fixed table keyed by node id.
type fakeDiscoverer struct {
	mu      sync.Mutex
	results map[string]discovery.Result
	calls   []string
}

func newFake() *fakeDiscoverer {
	return &fakeDiscoverer{results: make(map[string]discovery.Result)}
}

func (f *fakeDiscoverer) Discover(_ context.Context, paper types.PaperMetadata) discovery.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, paper.ID)
	return f.results[paper.ID]
}

// on registers candidates for the paper with the given title.
func (f *fakeDiscoverer) on(title string, cands ...types.CandidatePaper) {
	res := f.results[key(title)]
	if res.Candidates == nil {
		res.Candidates = make(map[types.EdgeType][]types.CandidatePaper)
	}
	for _, c := range cands {
		res.Candidates[c.Signal] = append(res.Candidates[c.Signal], c)
	}
	f.results[key(title)] = res
}

func (f *fakeDiscoverer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func meta(title string) types.PaperMetadata {
	return types.PaperMetadata{ID: "10.1000/" + strings.ToLower(title), Title: title}
}

func key(title string) string { return "doi:10.1000/" + strings.ToLower(title) }

func cand(title string, sig types.EdgeType) types.CandidatePaper {
	return types.CandidatePaper{Metadata: meta(title), Signal: sig, Source: "fake_" + string(sig)}
}

func citing(title string) types.CandidatePaper {
	c := cand(title, types.EdgeCitation)
	c.Citing = true
	return c
}

func testConfig() types.ExpansionConfig {
	return types.ExpansionConfig{
		MaxNodesLimit:    100,
		MaxDepthLimit:    5,
		Concurrency:      4,
		CrossLinkFanouts: 5,
	}
}

func newTestEngine(d Discoverer, cfg types.ExpansionConfig, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewEngine(d, cfg, opts...)
}

func request(root string, maxNodes, maxDepth int) types.ExpansionRequest {
	return types.ExpansionRequest{RootMetadata: meta(root), MaxNodes: maxNodes, MaxDepth: maxDepth}
}

func nodeIDs(g types.GraphResponse) []string {
	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func edgesBetween(g types.GraphResponse, a, b string) []types.EdgeType {
	var out []types.EdgeType
	for _, e := range g.Edges {
		if (e.Source == a && e.Target == b) || (e.Source == b && e.Target == a) {
			out = append(out, e.Type)
		}
	}
	return out
}

// assertWellFormed checks the structural guarantees every graph must keep.
func assertWellFormed(t *testing.T, g types.GraphResponse, req types.ExpansionRequest) {
	t.Helper()
	require.NotEmpty(t, g.Nodes)
	assert.LessOrEqual(t, len(g.Nodes), req.MaxNodes)

	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		assert.False(t, seen[n.ID], "duplicate node %s", n.ID)
		seen[n.ID] = true
	}
	assert.True(t, seen[key(req.RootMetadata.Title)], "root missing")

	triples := make(map[types.GraphEdge]bool)
	for _, e := range g.Edges {
		assert.True(t, seen[e.Source], "edge source %s not a node", e.Source)
		assert.True(t, seen[e.Target], "edge target %s not a node", e.Target)
		assert.NotEqual(t, e.Source, e.Target)
		assert.True(t, e.Type.Valid())
		assert.False(t, triples[e], "duplicate edge %+v", e)
		triples[e] = true
	}
}

func TestExpandCorroboratedNeighbor(t *testing.T) {
	f := newFake()
	f.on("P",
		cand("A", types.EdgeCitation), cand("Q", types.EdgeCitation),
		cand("Q", types.EdgeKeyword), cand("B", types.EdgeKeyword), cand("C", types.EdgeKeyword),
	)

	req := request("P", 5, 1)
	g, stats, err := newTestEngine(f, testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assertWellFormed(t, g, req)

	assert.Equal(t, []string{key("P"), key("A"), key("Q"), key("B"), key("C")}, nodeIDs(g))
	assert.ElementsMatch(t, []types.EdgeType{types.EdgeCitation, types.EdgeKeyword}, edgesBetween(g, key("P"), key("Q")))
	assert.Len(t, g.Edges, 5)
	assert.False(t, stats.BudgetExhausted)
	assert.Equal(t, 1, stats.Fanouts)
}

func TestExpandAllSourcesFail(t *testing.T) {
	f := newFake()
	var errs []types.SourceError
	for _, sig := range types.AllEdgeTypes {
		errs = append(errs, types.SourceError{Source: "s_" + string(sig), Signal: sig, PaperID: key("P"), Err: errors.New("down")})
	}
	f.results[key("P")] = discovery.Result{Errors: errs}

	req := request("P", 10, 2)
	g, stats, err := newTestEngine(f, testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{key("P")}, nodeIDs(g))
	assert.Empty(t, g.Edges)
	assert.NotNil(t, g.Edges)
	assert.Len(t, stats.SourceErrors, 4)
}

func TestExpandSingleNodeBudget(t *testing.T) {
	for _, depth := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("depth %d", depth), func(t *testing.T) {
			f := newFake()
			f.on("P", cand("A", types.EdgeSemantic))

			g, stats, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("P", 1, depth))
			require.NoError(t, err)
			assert.Equal(t, []string{key("P")}, nodeIDs(g))
			assert.Empty(t, g.Edges)
			assert.Equal(t, depth > 0, stats.BudgetExhausted)
			assert.Zero(t, f.callCount())
		})
	}
}

func TestExpandZeroDepth(t *testing.T) {
	f := newFake()
	f.on("P", cand("A", types.EdgeSemantic), cand("B", types.EdgeAuthor))

	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("P", 30, 0))
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
	assert.Zero(t, f.callCount())
}

func TestExpandSharedNeighborAcrossFrontier(t *testing.T) {
	f := newFake()
	f.on("R", cand("A", types.EdgeSemantic), cand("B", types.EdgeSemantic))
	f.on("A", cand("Q", types.EdgeKeyword))
	f.on("B", cand("Q", types.EdgeKeyword))

	req := request("R", 10, 2)
	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assertWellFormed(t, g, req)

	assert.Equal(t, []string{key("R"), key("A"), key("B"), key("Q")}, nodeIDs(g))
	assert.Equal(t, []types.EdgeType{types.EdgeKeyword}, edgesBetween(g, key("A"), key("Q")))
	assert.Equal(t, []types.EdgeType{types.EdgeKeyword}, edgesBetween(g, key("B"), key("Q")))
}

func bigFake() *fakeDiscoverer {
	f := newFake()
	f.on("Root", cand("A", types.EdgeCitation), citing("B"), cand("C", types.EdgeSemantic), cand("D", types.EdgeAuthor))
	f.on("A", cand("B", types.EdgeKeyword), cand("E", types.EdgeSemantic), cand("F", types.EdgeCitation))
	f.on("B", cand("G", types.EdgeAuthor), cand("A", types.EdgeAuthor), cand("H", types.EdgeKeyword))
	f.on("C", cand("I", types.EdgeSemantic), cand("Root", types.EdgeSemantic), cand("J", types.EdgeKeyword))
	f.on("D", cand("K", types.EdgeAuthor), cand("E", types.EdgeAuthor))
	f.on("E", cand("L", types.EdgeCitation))
	f.on("F", cand("M", types.EdgeSemantic))
	return f
}

func TestExpandIsReproducible(t *testing.T) {
	req := request("Root", 9, 3)
	first, _, err := newTestEngine(bigFake(), testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assertWellFormed(t, first, req)

	for i := 0; i < 5; i++ {
		again, _, err := newTestEngine(bigFake(), testConfig()).Expand(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExpandConcurrencyDoesNotChangeResult(t *testing.T) {
	req := request("Root", 12, 3)
	serial := testConfig()
	serial.Concurrency = 1
	want, _, err := newTestEngine(bigFake(), serial).Expand(context.Background(), req)
	require.NoError(t, err)

	got, _, err := newTestEngine(bigFake(), testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assertWellFormed(t, got, req)
}

func TestExpandWellFormedUnderManyBudgets(t *testing.T) {
	for nodes := 1; nodes <= 15; nodes++ {
		for depth := 0; depth <= 4; depth++ {
			req := request("Root", nodes, depth)
			g, _, err := newTestEngine(bigFake(), testConfig()).Expand(context.Background(), req)
			require.NoError(t, err)
			assertWellFormed(t, g, req)
		}
	}
}

func TestExpandCitationDirection(t *testing.T) {
	f := newFake()
	f.on("P", citing("Newer"), cand("Older", types.EdgeCitation))

	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("P", 5, 1))
	require.NoError(t, err)
	assert.Contains(t, g.Edges, types.GraphEdge{Source: key("Newer"), Target: key("P"), Type: types.EdgeCitation})
	assert.Contains(t, g.Edges, types.GraphEdge{Source: key("P"), Target: key("Older"), Type: types.EdgeCitation})
}

func TestExpandRanksCorroboratedCandidatesWhenBudgetIsShort(t *testing.T) {
	f := newFake()
	f.on("R",
		cand("Z", types.EdgeCitation),
		cand("X", types.EdgeSemantic), cand("W", types.EdgeSemantic),
		cand("Y", types.EdgeKeyword),
		cand("X", types.EdgeAuthor), cand("Y", types.EdgeAuthor),
	)

	g, stats, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("R", 3, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{key("R"), key("X"), key("Y")}, nodeIDs(g))
	assert.True(t, stats.BudgetExhausted)
	for _, e := range g.Edges {
		assert.NotEqual(t, key("Z"), e.Target, "rejected candidates get no edges")
		assert.NotEqual(t, key("Z"), e.Source)
	}
}

func TestAdmitPrefersCitationOnSignalTie(t *testing.T) {
	r := newRun(request("R", 2, 1))
	r.admit(r.frontier[0], []types.CandidatePaper{
		cand("X", types.EdgeSemantic),
		cand("Z", types.EdgeCitation),
	})
	assert.Equal(t, []string{key("R"), key("Z")}, nodeIDs(r.graph()))
	assert.True(t, r.stats.BudgetExhausted)
}

func TestAdmitKeepsArrivalOrderOnFullTie(t *testing.T) {
	r := newRun(request("R", 3, 1))
	r.admit(r.frontier[0], []types.CandidatePaper{
		cand("C", types.EdgeKeyword),
		cand("A", types.EdgeKeyword),
		cand("B", types.EdgeKeyword),
	})
	assert.Equal(t, []string{key("R"), key("C"), key("A")}, nodeIDs(r.graph()))
}

func TestExpandCrossLinksAfterBudget(t *testing.T) {
	f := newFake()
	f.on("R", cand("A", types.EdgeSemantic), cand("B", types.EdgeSemantic))
	f.on("A", cand("B", types.EdgeKeyword), cand("N", types.EdgeKeyword))

	req := request("R", 3, 2)
	g, stats, err := newTestEngine(f, testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	assertWellFormed(t, g, req)

	assert.Equal(t, []string{key("R"), key("A"), key("B")}, nodeIDs(g))
	assert.Equal(t, []types.EdgeType{types.EdgeKeyword}, edgesBetween(g, key("A"), key("B")))
	assert.Equal(t, 2, stats.CrossLinkFanouts)
	assert.True(t, stats.BudgetExhausted)

	noCross := testConfig()
	noCross.CrossLinkFanouts = 0
	g, stats, err = newTestEngine(newFakeFrom(f), noCross).Expand(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, edgesBetween(g, key("A"), key("B")))
	assert.Zero(t, stats.CrossLinkFanouts)
	assert.True(t, stats.BudgetExhausted)
}

func TestExpandCrossLinkAllowanceIsBounded(t *testing.T) {
	f := newFake()
	var children []types.CandidatePaper
	for i := 0; i < 8; i++ {
		children = append(children, cand(fmt.Sprintf("C%d", i), types.EdgeSemantic))
	}
	f.on("R", children...)

	cfg := testConfig()
	cfg.CrossLinkFanouts = 3
	_, stats, err := newTestEngine(f, cfg).Expand(context.Background(), request("R", 9, 2))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CrossLinkFanouts)
	assert.Equal(t, 4, f.callCount())
}

func TestExpandInFlightFanoutsCountAsCrossLinks(t *testing.T) {
	f := newFake()
	f.on("R", cand("A", types.EdgeSemantic), cand("B", types.EdgeSemantic), cand("C", types.EdgeSemantic))
	f.on("A", cand("N", types.EdgeKeyword))
	f.on("B", cand("A", types.EdgeAuthor))

	cfg := testConfig()
	cfg.CrossLinkFanouts = 2
	g, stats, err := newTestEngine(f, cfg).Expand(context.Background(), request("R", 5, 3))
	require.NoError(t, err)

	// A spends the budget; B and C were already fanned out in the same chunk.
	assert.Equal(t, []string{key("R"), key("A"), key("B"), key("C"), key("N")}, nodeIDs(g))
	assert.Equal(t, 2, stats.CrossLinkFanouts)
	assert.Equal(t, 4, f.callCount(), "N is not fanned out once the allowance is used")
	assert.Equal(t, []types.EdgeType{types.EdgeAuthor}, edgesBetween(g, key("A"), key("B")))
	assert.True(t, stats.BudgetExhausted)
}

func newFakeFrom(f *fakeDiscoverer) *fakeDiscoverer {
	return &fakeDiscoverer{results: f.results}
}

func TestExpandMergesDuplicateMetadata(t *testing.T) {
	richer := cand("A", types.EdgeKeyword)
	richer.Metadata.Abstract = "the full abstract"

	f := newFake()
	f.on("R", cand("A", types.EdgeSemantic), richer, cand("B", types.EdgeSemantic))
	f.on("B", func() types.CandidatePaper {
		c := cand("R", types.EdgeAuthor)
		c.Metadata.Keywords = []string{"graphs"}
		return c
	}())

	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("R", 5, 2))
	require.NoError(t, err)

	a, ok := g.Node(key("A"))
	require.True(t, ok)
	assert.Equal(t, "the full abstract", a.Abstract)
	assert.Equal(t, key("A"), a.ID)

	root, _ := g.Node(key("R"))
	assert.Equal(t, []string{"graphs"}, root.Keywords, "visited nodes absorb richer metadata")
	assert.ElementsMatch(t, []types.EdgeType{types.EdgeSemantic, types.EdgeAuthor}, edgesBetween(g, key("B"), key("R")))
	assert.Contains(t, g.Edges, types.GraphEdge{Source: key("B"), Target: key("R"), Type: types.EdgeAuthor})
}

func TestExpandSkipsSelfAndDuplicateEdges(t *testing.T) {
	f := newFake()
	f.on("R", cand("R", types.EdgeSemantic), cand("A", types.EdgeSemantic), cand("A", types.EdgeSemantic))

	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), request("R", 5, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{key("R"), key("A")}, nodeIDs(g))
	assert.Len(t, g.Edges, 1)
}

func TestExpandTitleOnlyRoot(t *testing.T) {
	f := newFake()
	req := types.ExpansionRequest{
		RootMetadata: types.PaperMetadata{ID: "user_plan", Title: "Graph Learning Plan", Source: "claude"},
		MaxNodes:     5,
		MaxDepth:     1,
	}
	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "title:graph learning plan", g.Nodes[0].ID)
	assert.Equal(t, []string{}, g.Nodes[0].Keywords)
}

func TestExpandInvalidRequest(t *testing.T) {
	e := newTestEngine(newFake(), testConfig())
	tests := []struct {
		name string
		req  types.ExpansionRequest
	}{
		{"zero nodes", request("P", 0, 1)},
		{"negative depth", request("P", 5, -1)},
		{"nodes above limit", request("P", 101, 1)},
		{"depth above limit", request("P", 5, 6)},
		{"empty title", types.ExpansionRequest{MaxNodes: 5, MaxDepth: 1}},
		{"blank title", types.ExpansionRequest{RootMetadata: types.PaperMetadata{Title: " \t "}, MaxNodes: 5, MaxDepth: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.Expand(context.Background(), tt.req)
			assert.ErrorIs(t, err, types.ErrInvalidRequest)
		})
	}
}

func TestExpandCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestEngine(bigFake(), testConfig()).Expand(ctx, request("Root", 10, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.New(reg)
	e := newTestEngine(bigFake(), testConfig(), WithMetrics(m))

	_, _, err := e.Expand(context.Background(), request("Root", 3, 2))
	require.NoError(t, err)
	_, _, err = e.Expand(context.Background(), request("Root", 0, 2))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpansionsTotal.WithLabelValues("budget_exhausted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpansionsTotal.WithLabelValues("invalid")))
}

func TestUndirectedEdgesUniquePerPair(t *testing.T) {
	f := newFake()
	f.on("Root", cand("A", types.EdgeSemantic), cand("A", types.EdgeCitation))
	f.on("A", cand("Root", types.EdgeSemantic), cand("Root", types.EdgeCitation))

	g, _, err := newTestEngine(f, testConfig()).Expand(context.Background(),
		types.ExpansionRequest{RootMetadata: meta("Root"), MaxNodes: 5, MaxDepth: 2})
	require.NoError(t, err)

	assert.ElementsMatch(t, []types.GraphEdge{
		{Source: key("Root"), Target: key("A"), Type: types.EdgeSemantic},
		{Source: key("Root"), Target: key("A"), Type: types.EdgeCitation},
		{Source: key("A"), Target: key("Root"), Type: types.EdgeCitation},
	}, g.Edges)
}
