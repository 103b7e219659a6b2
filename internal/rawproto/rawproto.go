// Package rawproto decodes the agent's native wire JSON -- status lines
// piped from the agent's status-bar command, and hook-event notifications
// fired at lifecycle points -- into the daemon's domain types. Both
// decoders are deliberately permissive: unknown fields are ignored and
// unknown enum strings degrade to an "unknown"/no-op value rather than an
// error, because the agent's own JSON shape is only loosely documented and
// changes out from under us. The one thing they do not tolerate is size:
// MaxMessageBytes is enforced by the caller before a decoder ever sees the
// bytes.
package rawproto

import (
	"encoding/json"
	"fmt"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
)

// MaxMessageBytes is the line-framing limit from the wire protocol. A
// message over this size is rejected before decoding is attempted.
const MaxMessageBytes = 1 << 20 // 1 MiB

// ErrMessageTooLarge is returned by CheckSize when a raw line exceeds
// MaxMessageBytes.
var ErrMessageTooLarge = fmt.Errorf("rawproto: message exceeds %d bytes", MaxMessageBytes)

// CheckSize enforces the framing limit ahead of any JSON decode.
func CheckSize(line []byte) error {
	if len(line) > MaxMessageBytes {
		return ErrMessageTooLarge
	}
	return nil
}

// rawModel mirrors the {"id": "..."} shape the agent sends for its model
// field; it is decoded separately so an absent or malformed model object
// never fails the whole status line.
type rawModel struct {
	ID string `json:"id"`
}

// rawCost mirrors the agent's cost block. All fields are optional; a
// missing field decodes to its zero value.
type rawCost struct {
	TotalCostUSD      float64 `json:"total_cost_usd"`
	TotalDurationMs   int64   `json:"total_duration_ms"`
	TotalAPIDurationMs int64  `json:"total_api_duration_ms"`
	TotalLinesAdded   int64   `json:"total_lines_added"`
	TotalLinesRemoved int64   `json:"total_lines_removed"`
}

// rawUsage mirrors a token-usage block, used both for the running totals
// and for the "current" window (which may be entirely absent).
type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// rawContextWindow mirrors the agent's context_window block. CurrentUsage
// is a pointer because its absence (or explicit null) is meaningful: it
// signals a context-clear, and must zero out the view's live percentage
// while leaving cumulative totals untouched.
type rawContextWindow struct {
	TotalInputTokens  int64     `json:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens"`
	ContextWindowSize int64     `json:"context_window_size"`
	CurrentUsage      *rawUsage `json:"current_usage"`
}

// rawStatusLine is the on-wire shape of a StatusUpdate payload.
type rawStatusLine struct {
	SessionID     string            `json:"session_id"`
	Model         *rawModel         `json:"model"`
	Cost          *rawCost          `json:"cost"`
	ContextWindow *rawContextWindow `json:"context_window"`
	Cwd           string            `json:"cwd"`
	ClaudeVersion string            `json:"claude_code_version"`
}

// StatusLine is the decoded, domain-typed result of a status-line message.
// ContextWindow is always populated (zero value if absent on the wire);
// ContextCleared distinguishes "no current_usage object" from "current
// usage of zero", which the registry needs to decide whether to call
// ContextUsage.ResetCurrent.
type StatusLine struct {
	SessionID      domain.SessionId
	Model          domain.Model
	Cost           domain.Money
	DurationMs     int64
	APIDurationMs  int64
	LinesChanged   domain.LinesChanged
	Context        domain.ContextUsage
	ContextCleared bool
	WorkingDir     string
	ClaudeVersion  string
}

// ParseStatusLine decodes a status-line message. It rejects only lines
// that are not valid JSON or that carry no recognisable session_id --
// everything else it fills in permissively.
func ParseStatusLine(line []byte) (StatusLine, error) {
	var raw rawStatusLine
	if err := json.Unmarshal(line, &raw); err != nil {
		return StatusLine{}, fmt.Errorf("rawproto: malformed status line: %w", err)
	}
	if raw.SessionID == "" {
		return StatusLine{}, fmt.Errorf("rawproto: status line missing session_id")
	}

	out := StatusLine{
		SessionID:     domain.SessionId(raw.SessionID),
		WorkingDir:    raw.Cwd,
		ClaudeVersion: raw.ClaudeVersion,
	}
	if raw.Model != nil {
		out.Model = domain.ParseModelID(raw.Model.ID)
	}
	if raw.Cost != nil {
		out.Cost = domain.USD(raw.Cost.TotalCostUSD)
		out.DurationMs = raw.Cost.TotalDurationMs
		out.APIDurationMs = raw.Cost.TotalAPIDurationMs
		out.LinesChanged = domain.LinesChanged{
			Added:   raw.Cost.TotalLinesAdded,
			Removed: raw.Cost.TotalLinesRemoved,
		}
	}
	if raw.ContextWindow != nil {
		out.Context.TotalInput = domain.TokenCount(raw.ContextWindow.TotalInputTokens)
		out.Context.TotalOutput = domain.TokenCount(raw.ContextWindow.TotalOutputTokens)
		out.Context.ContextWindowSize = domain.TokenCount(raw.ContextWindow.ContextWindowSize)
		if raw.ContextWindow.CurrentUsage != nil {
			u := raw.ContextWindow.CurrentUsage
			out.Context.CurrentInput = domain.TokenCount(u.InputTokens)
			out.Context.CurrentOutput = domain.TokenCount(u.OutputTokens)
			out.Context.CacheCreation = domain.TokenCount(u.CacheCreationInputTokens)
			out.Context.CacheRead = domain.TokenCount(u.CacheReadInputTokens)
		} else {
			out.ContextCleared = true
		}
	} else {
		out.ContextCleared = true
	}
	return out, nil
}

// rawHookEvent is the on-wire shape of a HookEvent payload.
type rawHookEvent struct {
	SessionID       string `json:"session_id"`
	HookEventName   string `json:"hook_event_name"`
	ToolName        string `json:"tool_name"`
	ToolUseID       string `json:"tool_use_id"`
	AgentType       string `json:"agent_type"`
	AgentID         string `json:"agent_id"`
	NotificationType string `json:"notification_type"`
}

// HookEvent is the decoded, domain-typed result of a hook-event message.
// Event.Kind is set to its zero value (PreToolUse) with Recognized=false
// when the wire name does not match a known hook -- callers must check
// Recognized and treat an unrecognized hook as a no-op, per the hook
// mapping's "unknown values leave status unchanged" rule.
type HookEvent struct {
	SessionID        domain.SessionId
	Kind             domain.HookEventType
	Recognized       bool
	ToolName         string
	ToolUseID        domain.ToolUseId
	AgentType        domain.AgentType
	AgentID          string
	NotificationType string
}

// ParseHookEvent decodes a hook-event message. It rejects only lines that
// are not valid JSON or that carry no recognisable session_id or
// hook_event_name; an unrecognized hook_event_name value decodes
// successfully with Recognized=false rather than being rejected, per
// §4.3's "unknown enum strings -> no-op" requirement.
func ParseHookEvent(line []byte) (HookEvent, error) {
	var raw rawHookEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return HookEvent{}, fmt.Errorf("rawproto: malformed hook event: %w", err)
	}
	if raw.SessionID == "" {
		return HookEvent{}, fmt.Errorf("rawproto: hook event missing session_id")
	}
	if raw.HookEventName == "" {
		return HookEvent{}, fmt.Errorf("rawproto: hook event missing hook_event_name")
	}

	out := HookEvent{
		SessionID:        domain.SessionId(raw.SessionID),
		ToolName:         raw.ToolName,
		ToolUseID:        domain.ToolUseId(raw.ToolUseID),
		AgentID:          raw.AgentID,
		NotificationType: raw.NotificationType,
	}
	if raw.AgentType != "" {
		out.AgentType = domain.ParseAgentType(raw.AgentType)
	}
	kind, ok := domain.ParseHookEventType(raw.HookEventName)
	out.Kind = kind
	out.Recognized = ok
	return out, nil
}
