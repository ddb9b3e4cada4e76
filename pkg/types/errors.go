// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Sentinel errors shared across packages. Callers match them with errors.Is;
// their text is safe to show to end users.
var (
	// ErrInvalidRequest rejects a request before any work starts.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInputUnresolvable means the input analyzer could not classify or
	// resolve the submitted text.
	ErrInputUnresolvable = errors.New("input could not be resolved to a paper")

	// ErrSuperseded marks an expansion result that arrived after a newer
	// request in the same session and was discarded.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrChatFailed is a conversational backend failure.
	ErrChatFailed = errors.New("chat backend failed")
)
