// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/research-spider/internal/chat"
	"github.com/pdiddy/research-spider/internal/session"
	"github.com/pdiddy/research-spider/pkg/types"
)

// SessionResponse is a session snapshot.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	session.Snapshot
}

// GenerateRequest is the body of POST /sessions/:id/generate.
type GenerateRequest struct {
	InputText string `json:"input_text" validate:"required"`
	MaxNodes  *int   `json:"max_nodes" validate:"omitempty,gte=1"`
	MaxDepth  *int   `json:"max_depth" validate:"omitempty,gte=0"`
}

// GenerateResponse reports the applied graph of a session generation.
type GenerateResponse struct {
	SessionResponse
	InputType types.InputType `json:"input_type"`
}

// ReanchorRequest is the body of POST /sessions/:id/expand.
type ReanchorRequest struct {
	NodeID   string `json:"node_id" validate:"required"`
	MaxNodes *int   `json:"max_nodes" validate:"omitempty,gte=1"`
	MaxDepth *int   `json:"max_depth" validate:"omitempty,gte=0"`
}

// SelectRequest is the body of POST /sessions/:id/select.
type SelectRequest struct {
	NodeID string `json:"node_id" validate:"required"`
}

// SessionChatRequest is the body of POST /sessions/:id/chat. Limit caps
// the related papers sent with the question.
type SessionChatRequest struct {
	Message string `json:"message" validate:"required"`
	Limit   int    `json:"limit" validate:"gte=0,lte=50"`
}

// SessionChatResponse carries the answer and the updated history.
type SessionChatResponse struct {
	Answer  string         `json:"answer"`
	History []session.Turn `json:"history"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	id, _ := s.sessions.Create()
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (s *Server) handleGetSession(c *gin.Context) {
	st, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: c.Param("id"), Snapshot: st.Snapshot()})
}

func (s *Server) handleSessionGenerate(c *gin.Context) {
	st, ok := s.session(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	ctx, seq, done := st.Start(c.Request.Context())
	defer done()
	kind, root, err := s.analyzer.Analyze(ctx, req.InputText)
	if err != nil {
		s.fail(c, s.superseded(ctx, seq, err))
		return
	}
	if err := s.expandInto(ctx, st, seq, s.expansionRequest(root, req.MaxNodes, req.MaxDepth)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{
		SessionResponse: SessionResponse{SessionID: c.Param("id"), Snapshot: st.Snapshot()},
		InputType:       kind,
	})
}

// handleSessionExpand re-anchors the session on one of its nodes. The new
// graph replaces the current one.
func (s *Server) handleSessionExpand(c *gin.Context) {
	st, ok := s.session(c)
	if !ok {
		return
	}
	var req ReanchorRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	node, found := st.Graph().Node(req.NodeID)
	if !found {
		s.fail(c, errNodeNotFound)
		return
	}
	ctx, seq, done := st.Start(c.Request.Context())
	defer done()
	if err := s.expandInto(ctx, st, seq, s.expansionRequest(node.PaperMetadata, req.MaxNodes, req.MaxDepth)); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: c.Param("id"), Snapshot: st.Snapshot()})
}

// expandInto runs req and applies the result under seq. A newer request
// started meanwhile cancels ctx or, if the expansion already finished,
// makes Apply refuse it; both give ErrSuperseded.
func (s *Server) expandInto(ctx context.Context, st *session.State, seq uint64, req types.ExpansionRequest) error {
	g, _, err := s.expander.Expand(ctx, req)
	if err != nil {
		return s.superseded(ctx, seq, err)
	}
	if !st.Apply(seq, g, g.Nodes[0].ID) {
		s.metrics.IncSuperseded()
		s.logger.Info("discarding superseded expansion", "seq", seq, "root", g.Nodes[0].ID)
		return types.ErrSuperseded
	}
	return nil
}

// superseded turns err into ErrSuperseded when ctx was cancelled by a
// newer request in the same session.
func (s *Server) superseded(ctx context.Context, seq uint64, err error) error {
	if !errors.Is(context.Cause(ctx), types.ErrSuperseded) {
		return err
	}
	s.metrics.IncSuperseded()
	s.logger.Info("cancelled superseded request", "seq", seq)
	return types.ErrSuperseded
}

func (s *Server) handleSessionSelect(c *gin.Context) {
	st, ok := s.session(c)
	if !ok {
		return
	}
	var req SelectRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if !st.Select(req.NodeID) {
		s.fail(c, errNodeNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_id": req.NodeID})
}

// handleSessionChat asks about the selected node. The user turn and the
// answer, or the placeholder on failure, are appended to the history.
func (s *Server) handleSessionChat(c *gin.Context) {
	st, ok := s.session(c)
	if !ok {
		return
	}
	var req SessionChatRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	node, selected := st.Selected()
	if !selected {
		s.fail(c, errNoSelection)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.contextLimit
	}
	related := chat.SelectContext(st.Graph(), node.ID, limit)

	answer, err := s.chat.Answer(c.Request.Context(), node.PaperMetadata, related, req.Message)
	if err != nil && !errors.Is(err, types.ErrChatFailed) {
		s.fail(c, err)
		return
	}
	st.AppendTurn(session.Turn{Role: session.RoleUser, Content: req.Message, NodeID: node.ID})
	st.AppendTurn(session.Turn{Role: session.RoleAssistant, Content: answer, NodeID: node.ID})
	c.JSON(http.StatusOK, SessionChatResponse{Answer: answer, History: st.History()})
}

func (s *Server) session(c *gin.Context) (*session.State, bool) {
	st, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return st, true
}
