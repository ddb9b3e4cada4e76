// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-spider/pkg/types"
)

type stubSource struct {
	name   string
	signal types.EdgeType
	titles []string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stubSource) Name() string           { return s.name }
func (s *stubSource) Signal() types.EdgeType { return s.signal }

func (s *stubSource) FindRelated(ctx context.Context, _ types.PaperMetadata, _ int) ([]types.CandidatePaper, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []types.CandidatePaper
	for _, t := range s.titles {
		// Signal and source are left wrong on purpose; the fan-out stamps them.
		out = append(out, types.CandidatePaper{Metadata: types.PaperMetadata{Title: t}, Signal: types.EdgeAuthor, Source: "x", Citing: true})
	}
	return out, nil
}

func testDiscoveryCfg() types.DiscoveryConfig {
	return types.DiscoveryConfig{SourceTimeout: time.Second, PerSourceLimit: 5}
}

func titles(cands []types.CandidatePaper) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Metadata.Title)
	}
	return out
}

var testRoot = types.PaperMetadata{ID: "doi:10.1000/root", Title: "Root"}

func TestDiscoverPartialFailure(t *testing.T) {
	ok := &stubSource{name: "ok", signal: types.EdgeSemantic, titles: []string{"A", "B"}}
	bad := &stubSource{name: "bad", signal: types.EdgeCitation, err: errors.New("boom")}

	res := NewFanout([]Source{bad, ok}, testDiscoveryCfg()).Discover(context.Background(), testRoot)

	assert.Equal(t, []string{"A", "B"}, titles(res.Candidates[types.EdgeSemantic]))
	assert.Empty(t, res.Candidates[types.EdgeCitation])
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].Source)
	assert.Equal(t, types.EdgeCitation, res.Errors[0].Signal)
	assert.Equal(t, "doi:10.1000/root", res.Errors[0].PaperID)
	assert.False(t, res.AllFailed(2))
}

func TestDiscoverAllFail(t *testing.T) {
	srcs := []Source{
		&stubSource{name: "a", signal: types.EdgeCitation, err: errors.New("down")},
		&stubSource{name: "b", signal: types.EdgeKeyword, err: errors.New("down")},
	}
	res := NewFanout(srcs, testDiscoveryCfg()).Discover(context.Background(), testRoot)
	assert.Empty(t, res.Ordered())
	assert.True(t, res.AllFailed(2))
}

func TestDiscoverTimeout(t *testing.T) {
	slow := &stubSource{name: "slow", signal: types.EdgeSemantic, titles: []string{"late"}, delay: 5 * time.Second}
	fast := &stubSource{name: "fast", signal: types.EdgeKeyword, titles: []string{"K"}}

	cfg := testDiscoveryCfg()
	cfg.SourceTimeout = 50 * time.Millisecond

	start := time.Now()
	res := NewFanout([]Source{slow, fast}, cfg).Discover(context.Background(), testRoot)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0].Err, ErrSourceTimeout)
	assert.Equal(t, []string{"K"}, titles(res.Ordered()))
}

func TestDiscoverJoinIsDeterministic(t *testing.T) {
	// The first-registered source answers last; its candidates still come first.
	first := &stubSource{name: "first", signal: types.EdgeSemantic, titles: []string{"S1"}, delay: 40 * time.Millisecond}
	second := &stubSource{name: "second", signal: types.EdgeSemantic, titles: []string{"S2"}}
	author := &stubSource{name: "author", signal: types.EdgeAuthor, titles: []string{"A1"}}
	citation := &stubSource{name: "cite", signal: types.EdgeCitation, titles: []string{"C1"}}

	f := NewFanout([]Source{author, first, second, citation}, testDiscoveryCfg())
	for i := 0; i < 3; i++ {
		res := f.Discover(context.Background(), testRoot)
		assert.Equal(t, []string{"C1", "S1", "S2", "A1"}, titles(res.Ordered()))
	}
}

func TestDiscoverStampsAndCaps(t *testing.T) {
	var many []string
	for i := 0; i < 8; i++ {
		many = append(many, fmt.Sprintf("P%d", i))
	}
	src := &stubSource{name: "kw", signal: types.EdgeKeyword, titles: append(many, "")}

	cfg := testDiscoveryCfg()
	cfg.PerSourceLimit = 3
	res := NewFanout([]Source{src}, cfg).Discover(context.Background(), testRoot)

	got := res.Candidates[types.EdgeKeyword]
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, types.EdgeKeyword, c.Signal)
		assert.Equal(t, "kw", c.Source)
		assert.False(t, c.Citing, "only citation candidates carry a direction")
	}
}

func TestDiscoverZeroCandidatesIsNotAnError(t *testing.T) {
	empty := &stubSource{name: "empty", signal: types.EdgeAuthor}
	res := NewFanout([]Source{empty}, testDiscoveryCfg()).Discover(context.Background(), testRoot)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Ordered())
}

func TestDiscoverRateLimited(t *testing.T) {
	src := &stubSource{name: "s", signal: types.EdgeSemantic, titles: []string{"A"}}
	cfg := testDiscoveryCfg()
	cfg.RequestsPerSecond = 1000

	f := NewFanout([]Source{src}, cfg)
	for i := 0; i < 3; i++ {
		res := f.Discover(context.Background(), testRoot)
		assert.Empty(t, res.Errors)
	}
	assert.Equal(t, int32(3), src.calls.Load())
}
