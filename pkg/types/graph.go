// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EdgeType is the relation between two papers. Each discovery signal
// produces edges of the matching type, so the same enumeration names both.
type EdgeType string

const (
	EdgeCitation EdgeType = "citation"
	EdgeSemantic EdgeType = "semantic"
	EdgeKeyword  EdgeType = "keyword"
	EdgeAuthor   EdgeType = "author"
)

// AllEdgeTypes lists every edge type in the fixed order discovery results
// are joined in.
var AllEdgeTypes = []EdgeType{EdgeCitation, EdgeSemantic, EdgeKeyword, EdgeAuthor}

// Valid reports whether t is one of the four known edge types.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeCitation, EdgeSemantic, EdgeKeyword, EdgeAuthor:
		return true
	default:
		return false
	}
}

// Directed reports whether the edge direction carries meaning. Only
// citation edges are directed (source cites target).
func (t EdgeType) Directed() bool {
	switch t {
	case EdgeCitation:
		return true
	case EdgeSemantic, EdgeKeyword, EdgeAuthor:
		return false
	default:
		return false
	}
}

// ParseEdgeType converts s to an EdgeType, rejecting unknown values.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown edge type %q", s)
	}
	return t, nil
}

// MarshalJSON refuses to encode an invalid edge type.
func (t EdgeType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown edge type %q", string(t))
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON rejects values outside the four known edge types.
func (t *EdgeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEdgeType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// GraphNode is a paper in a graph. Its ID is the dedup key and is unique
// within one GraphResponse.
type GraphNode struct {
	PaperMetadata `yaml:",inline"`
}

// GraphEdge connects two nodes of the same graph.
type GraphEdge struct {
	Source string   `json:"source" yaml:"source"`
	Target string   `json:"target" yaml:"target"`
	Type   EdgeType `json:"type" yaml:"type"`
}

// GraphResponse is the result of one expansion. It is built fresh for
// every request and replaces any previously displayed graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}

// Node returns the node with the given id.
func (g GraphResponse) Node(id string) (GraphNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// HasNode reports whether id is a node of g.
func (g GraphResponse) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// ExpansionRequest asks for a bounded graph rooted at RootMetadata.
type ExpansionRequest struct {
	RootMetadata PaperMetadata `json:"root_metadata" yaml:"root_metadata"`
	MaxNodes     int           `json:"max_nodes" yaml:"max_nodes"`
	MaxDepth     int           `json:"max_depth" yaml:"max_depth"`
}

// Validate checks the invariants every expansion request must satisfy.
func (r ExpansionRequest) Validate() error {
	if r.MaxNodes < 1 {
		return fmt.Errorf("%w: max_nodes must be at least 1, got %d", ErrInvalidRequest, r.MaxNodes)
	}
	if r.MaxDepth < 0 {
		return fmt.Errorf("%w: max_depth must not be negative, got %d", ErrInvalidRequest, r.MaxDepth)
	}
	if strings.TrimSpace(r.RootMetadata.Title) == "" {
		return fmt.Errorf("%w: root metadata requires a title", ErrInvalidRequest)
	}
	return nil
}

// CandidatePaper is one related paper returned by a discovery source.
type CandidatePaper struct {
	Metadata PaperMetadata `json:"metadata" yaml:"metadata"`

	// Signal is the discovery signal that produced the candidate.
	Signal EdgeType `json:"signal" yaml:"signal"`

	// Source names the adapter that returned the candidate.
	Source string `json:"source" yaml:"source"`

	// Citing marks a citation candidate that cites the queried paper. The
	// edge is then stored candidate -> paper. Otherwise the queried paper
	// is the edge source.
	Citing bool `json:"citing,omitempty" yaml:"citing,omitempty"`
}

// SourceError records a non-fatal discovery failure for one source and
// one paper.
type SourceError struct {
	Source  string   `json:"source" yaml:"source"`
	Signal  EdgeType `json:"signal" yaml:"signal"`
	PaperID string   `json:"paper_id" yaml:"paper_id"`
	Err     error    `json:"-" yaml:"-"`
}

// Error implements error.
func (e SourceError) Error() string {
	return fmt.Sprintf("source %s (%s) for paper %s: %v", e.Source, e.Signal, e.PaperID, e.Err)
}

// Unwrap returns the underlying error.
func (e SourceError) Unwrap() error { return e.Err }
