// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-spider/pkg/types"
)

func graphOf(ids ...string) types.GraphResponse {
	g := types.GraphResponse{Edges: []types.GraphEdge{}}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, types.GraphNode{PaperMetadata: types.PaperMetadata{ID: id, Title: id}})
	}
	return g
}

func TestSelect(t *testing.T) {
	s := NewState()
	seq := s.Begin()
	require.True(t, s.Apply(seq, graphOf("a", "b"), "a"))

	assert.True(t, s.Select("b"))
	n, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)

	assert.False(t, s.Select("missing"))
	_, ok = s.Selected()
	assert.False(t, ok, "unknown id clears the selection")
}

func TestApplyRejectsStaleSequence(t *testing.T) {
	s := NewState()
	first := s.Begin()
	second := s.Begin()

	assert.True(t, s.Apply(second, graphOf("new"), "new"))
	assert.False(t, s.Apply(first, graphOf("old"), "old"))
	assert.Equal(t, "new", s.Graph().Nodes[0].ID)
}

func TestApplyStaleResponseArrivingFirst(t *testing.T) {
	s := NewState()
	first := s.Begin()
	second := s.Begin()

	assert.False(t, s.Apply(first, graphOf("old"), "old"))
	assert.Empty(t, s.Graph().Nodes)
	assert.True(t, s.Apply(second, graphOf("new"), "new"))
}

func TestStartCancelsOlderRequest(t *testing.T) {
	s := NewState()
	oldCtx, oldSeq, oldDone := s.Start(context.Background())
	defer oldDone()
	newCtx, newSeq, newDone := s.Start(context.Background())

	select {
	case <-oldCtx.Done():
	default:
		t.Fatal("older request context is still live")
	}
	assert.ErrorIs(t, context.Cause(oldCtx), types.ErrSuperseded)
	assert.NoError(t, newCtx.Err())
	assert.False(t, s.Apply(oldSeq, graphOf("old"), "old"))
	assert.True(t, s.Apply(newSeq, graphOf("new"), "new"))

	newDone()
	assert.ErrorIs(t, newCtx.Err(), context.Canceled)
	assert.NotErrorIs(t, context.Cause(newCtx), types.ErrSuperseded, "finishing is not superseding")

	_, _, laterDone := s.Start(context.Background())
	defer laterDone()
	assert.NotErrorIs(t, context.Cause(newCtx), types.ErrSuperseded)
}

func TestBeginCancelsStartedRequest(t *testing.T) {
	s := NewState()
	ctx, _, done := s.Start(context.Background())
	defer done()
	s.Begin()
	assert.ErrorIs(t, context.Cause(ctx), types.ErrSuperseded)
}

func TestApplySelection(t *testing.T) {
	t.Run("kept when still present", func(t *testing.T) {
		s := NewState()
		s.Apply(s.Begin(), graphOf("r", "x"), "r")
		s.Select("x")
		s.Apply(s.Begin(), graphOf("q", "x"), "q")
		n, _ := s.Selected()
		assert.Equal(t, "x", n.ID)
	})
	t.Run("falls back to root", func(t *testing.T) {
		s := NewState()
		s.Apply(s.Begin(), graphOf("r", "x"), "r")
		s.Select("x")
		s.Apply(s.Begin(), graphOf("q", "y"), "y")
		n, _ := s.Selected()
		assert.Equal(t, "y", n.ID)
	})
	t.Run("falls back to first node", func(t *testing.T) {
		s := NewState()
		s.Apply(s.Begin(), graphOf("q", "y"), "absent")
		n, _ := s.Selected()
		assert.Equal(t, "q", n.ID)
	})
	t.Run("empty graph selects nothing", func(t *testing.T) {
		s := NewState()
		s.Apply(s.Begin(), graphOf("q"), "q")
		s.Apply(s.Begin(), graphOf(), "")
		_, ok := s.Selected()
		assert.False(t, ok)
	})
}

func TestHistoryIsAppendOnlyCopy(t *testing.T) {
	s := NewState()
	s.AppendTurn(Turn{Role: RoleUser, Content: "What is this about?"})
	s.AppendTurn(Turn{Role: RoleAssistant, Content: "Graphs."})

	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, RoleUser, h[0].Role)
	assert.False(t, h[0].At.IsZero())

	h[0].Content = "changed"
	assert.Equal(t, "What is this about?", s.History()[0].Content)
}

func TestConcurrentBeginApply(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	seqs := make([]uint64, 20)
	for i := range seqs {
		seqs[i] = s.Begin()
	}
	latest := seqs[len(seqs)-1]

	applied := make([]bool, len(seqs))
	for i, seq := range seqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied[i] = s.Apply(seq, graphOf("g"), "g")
		}()
	}
	wg.Wait()

	for i, seq := range seqs {
		assert.Equal(t, seq == latest, applied[i])
	}
}

func TestSnapshot(t *testing.T) {
	s := NewState()
	s.Apply(s.Begin(), graphOf("r"), "r")
	s.AppendTurn(Turn{Role: RoleUser, Content: "hi"})

	snap := s.Snapshot()
	assert.Equal(t, "r", snap.SelectedID)
	assert.Len(t, snap.Graph.Nodes, 1)
	assert.Len(t, snap.History, 1)
}

func TestStoreCreateGet(t *testing.T) {
	st := NewStore(time.Hour)
	id, s := st.Create()
	got, err := st.Get(id)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, st.Len())

	_, err = st.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.Get("0b7e1c2a-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	st.Delete(id)
	_, err = st.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreEvictsIdleSessions(t *testing.T) {
	st := NewStore(time.Hour)
	id, _ := st.Create()

	st.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := st.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, st.Len())
}
