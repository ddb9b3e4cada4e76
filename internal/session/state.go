// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds what one user is looking at: the current graph,
// the selected node, and the chat history. Expansions started for a
// session are applied only if no newer one was started in the meantime.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/research-spider/pkg/types"
)

// Role says who wrote a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one chat message.
type Turn struct {
	Role    Role      `json:"role" yaml:"role"`
	Content string    `json:"content" yaml:"content"`
	NodeID  string    `json:"node_id,omitempty" yaml:"node_id,omitempty"`
	At      time.Time `json:"at" yaml:"at"`
}

// Snapshot is a consistent copy of a State.
type Snapshot struct {
	Graph      types.GraphResponse `json:"graph" yaml:"graph"`
	SelectedID string              `json:"selected_id" yaml:"selected_id"`
	History    []Turn              `json:"history" yaml:"history"`
}

// State is safe for concurrent use.
type State struct {
	mu       sync.Mutex
	graph    types.GraphResponse
	selected string
	seq      uint64
	cancel   context.CancelCauseFunc
	history  []Turn
	touched  time.Time
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		graph:   types.GraphResponse{Nodes: []types.GraphNode{}, Edges: []types.GraphEdge{}},
		touched: time.Now(),
	}
}

// Select sets the selected node. An id that is not in the current graph
// clears the selection. It reports whether a node is now selected.
func (s *State) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
	if s.graph.HasNode(id) {
		s.selected = id
		return true
	}
	s.selected = ""
	return false
}

// Selected returns the selected node, if any.
func (s *State) Selected() (types.GraphNode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return types.GraphNode{}, false
	}
	return s.graph.Node(s.selected)
}

// Begin issues the sequence number for a new request. Any request begun
// earlier becomes stale, and one begun with Start is cancelled.
func (s *State) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(nil)
}

// Start is Begin for a request that does work under ctx. The returned
// context is cancelled with cause types.ErrSuperseded as soon as a newer
// request begins. done releases it and must be called when the request
// ends.
func (s *State) Start(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	s.mu.Lock()
	seq := s.beginLocked(cancel)
	s.mu.Unlock()

	done := func() {
		cancel(nil)
		s.mu.Lock()
		if s.seq == seq {
			s.cancel = nil
		}
		s.mu.Unlock()
	}
	return ctx, seq, done
}

func (s *State) beginLocked(cancel context.CancelCauseFunc) uint64 {
	if s.cancel != nil {
		s.cancel(types.ErrSuperseded)
	}
	s.cancel = cancel
	s.seq++
	s.touched = time.Now()
	return s.seq
}

// Apply replaces the graph with g if seq is still the latest issued
// sequence and reports whether it did. The selection survives when its
// node is in g; otherwise rootID is selected, else the first node, else
// nothing.
func (s *State) Apply(seq uint64, g types.GraphResponse, rootID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return false
	}
	s.graph = g
	s.touched = time.Now()

	switch {
	case s.selected != "" && g.HasNode(s.selected):
	case rootID != "" && g.HasNode(rootID):
		s.selected = rootID
	case len(g.Nodes) > 0:
		s.selected = g.Nodes[0].ID
	default:
		s.selected = ""
	}
	return true
}

// AppendTurn adds t to the history, stamping it if needed.
func (s *State) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.At.IsZero() {
		t.At = time.Now()
	}
	s.history = append(s.history, t)
	s.touched = time.Now()
}

// History returns a copy of the chat history, oldest first.
func (s *State) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Graph returns the current graph.
func (s *State) Graph() types.GraphResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Snapshot returns graph, selection and history taken together.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]Turn, len(s.history))
	copy(history, s.history)
	return Snapshot{Graph: s.graph, SelectedID: s.selected, History: history}
}

func (s *State) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
