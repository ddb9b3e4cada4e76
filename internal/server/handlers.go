// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/research-spider/pkg/types"
)

// AnalyzeRequest is the body of POST /analyze-input.
type AnalyzeRequest struct {
	InputText string `json:"input_text" validate:"required"`
}

// AnalyzeResponse is the result of POST /analyze-input.
type AnalyzeResponse struct {
	InputType types.InputType     `json:"input_type"`
	Metadata  types.PaperMetadata `json:"metadata"`
}

// ExpandRequest is the body of POST /expand-graph. Omitted bounds take the
// configured defaults.
type ExpandRequest struct {
	RootMetadata types.PaperMetadata `json:"root_metadata"`
	MaxNodes     *int                `json:"max_nodes" validate:"omitempty,gte=1"`
	MaxDepth     *int                `json:"max_depth" validate:"omitempty,gte=0"`
}

// ChatRequest is the body of POST /claude-chat.
type ChatRequest struct {
	PaperMetadata types.PaperMetadata   `json:"paper_metadata"`
	RelatedPapers []types.PaperMetadata `json:"related_papers"`
	Message       string                `json:"message" validate:"required"`
}

// ChatResponse carries one answer.
type ChatResponse struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	kind, meta, err := s.analyzer.Analyze(c.Request.Context(), req.InputText)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AnalyzeResponse{InputType: kind, Metadata: meta})
}

func (s *Server) handleExpand(c *gin.Context) {
	var req ExpandRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	g, _, err := s.expander.Expand(c.Request.Context(), s.expansionRequest(req.RootMetadata, req.MaxNodes, req.MaxDepth))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// handleChat answers with the placeholder when the backend fails; the
// failure is logged and counted by the chat service.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := s.bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	answer, err := s.chat.Answer(c.Request.Context(), req.PaperMetadata, req.RelatedPapers, req.Message)
	if err != nil && !errors.Is(err, types.ErrChatFailed) {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Answer: answer})
}

func (s *Server) expansionRequest(root types.PaperMetadata, maxNodes, maxDepth *int) types.ExpansionRequest {
	req := types.ExpansionRequest{
		RootMetadata: root,
		MaxNodes:     s.expansion.DefaultMaxNodes,
		MaxDepth:     s.expansion.DefaultMaxDepth,
	}
	if maxNodes != nil {
		req.MaxNodes = *maxNodes
	}
	if maxDepth != nil {
		req.MaxDepth = *maxDepth
	}
	return req
}
