// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import "github.com/pdiddy/research-spider/pkg/types"

// DefaultContextLimit is the number of related papers used when the
// caller does not ask for a specific count.
const DefaultContextLimit = 10

// SelectContext picks the related papers passed to the chat backend for a
// question about focusedID: graph nodes in graph order, skipping the
// focused node, at most limit of them. A limit of zero or less means
// DefaultContextLimit.
func SelectContext(g types.GraphResponse, focusedID string, limit int) []types.PaperMetadata {
	if limit <= 0 {
		limit = DefaultContextLimit
	}
	out := make([]types.PaperMetadata, 0, min(limit, len(g.Nodes)))
	for _, n := range g.Nodes {
		if len(out) == limit {
			break
		}
		if n.ID == focusedID {
			continue
		}
		out = append(out, n.PaperMetadata)
	}
	return out
}
