// Package domain holds the value and identity types shared by every layer
// of the daemon: typed identifiers, token/money/context-window accounting,
// and the small enums (model, agent type, status, hook event) that the
// registry and protocol layers exchange.
package domain

import (
	"strconv"
	"strings"
)

// SessionId is the agent's own UUID, taken verbatim from its status line.
// It is not interchangeable with ToolUseId or any other string-wrapping
// type -- the Go type system keeps them apart even though the underlying
// representation is the same.
type SessionId string

// Short returns the display "short form" of the id: its first 8 characters,
// or the whole string if it is shorter than that.
func (id SessionId) Short() string {
	s := string(id)
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func (id SessionId) String() string { return string(id) }

// IsPlaceholder reports whether id was synthesized by discovery rather than
// reported by a connected agent (see registry reconciliation, §4.5).
func (id SessionId) IsPlaceholder() bool {
	return strings.HasPrefix(string(id), "pending-")
}

// PlaceholderSessionId returns the placeholder id discovery assigns to a
// process it has found but has not yet heard a status line from.
func PlaceholderSessionId(pid int) SessionId {
	return SessionId("pending-" + strconv.Itoa(pid))
}

// ToolUseId identifies a single tool invocation ("toolu_...").
type ToolUseId string

func (id ToolUseId) String() string { return string(id) }

// TranscriptPath is a filesystem path to the agent's JSONL transcript. The
// daemon never parses its contents -- it is stored only for operational
// visibility.
type TranscriptPath string

func (p TranscriptPath) String() string { return string(p) }

// PanePlacement is an opaque pane handle supplied by the pane-resolution
// helper. The daemon forwards it unchanged and never interprets its format.
type PanePlacement string

func (p PanePlacement) String() string { return string(p) }
