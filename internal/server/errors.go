// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pdiddy/research-spider/internal/session"
	"github.com/pdiddy/research-spider/pkg/types"
)

var (
	errNodeNotFound = errors.New("node not found in session graph")
	errNoSelection  = fmt.Errorf("%w: no node selected", types.ErrInvalidRequest)
	errInternal     = errors.New("internal error")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps an error to its HTTP status and the message shown to the
// caller. Upstream error text never reaches the response.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, types.ErrInputUnresolvable):
		return http.StatusNotFound, types.ErrInputUnresolvable.Error()
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, session.ErrNotFound.Error()
	case errors.Is(err, errNodeNotFound):
		return http.StatusNotFound, errNodeNotFound.Error()
	case errors.Is(err, types.ErrSuperseded):
		return http.StatusConflict, types.ErrSuperseded.Error()
	case errors.Is(err, context.Canceled):
		return 499, "request cancelled"
	default:
		return http.StatusInternalServerError, errInternal.Error()
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "route", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}

// bind decodes the JSON body into req and validates it. Both failures are
// ErrInvalidRequest.
func (s *Server) bind(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return fmt.Errorf("%w: malformed JSON body", types.ErrInvalidRequest)
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidRequest, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "validation failed"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
