// Package session holds the registry's per-session state: the pure domain
// model the registry actor mutates, the infrastructure bookkeeping kept
// alongside it for operational visibility, and the read-only view derived
// from both for subscribers.
package session

import (
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
)

// Domain is the pure per-session state. Only the registry actor mutates a
// Domain value; every other component receives read-only Views (see
// view.go). Field meanings mirror spec §3's SessionDomain exactly.
type Domain struct {
	ID                 domain.SessionId
	AgentType           domain.AgentType
	Model              domain.Model
	Status             domain.SessionStatus
	Context            domain.ContextUsage
	Cost               domain.Money
	Duration           domain.SessionDuration
	LinesChanged       domain.LinesChanged
	StartedAt          time.Time
	LastActivity       time.Time
	WorkingDirectory   string
	ClaudeCodeVersion  string
	ParentSessionID    domain.SessionId // empty for a top-level session
	AgentID            string           // non-empty only for subagents
}

// IsSubagent reports whether this session is a subagent of another.
func (d *Domain) IsSubagent() bool {
	return d.ParentSessionID != "" && d.AgentID != ""
}

// Clone returns a deep copy. Domain has no pointer or slice fields today,
// but Clone exists so callers never need to know that -- mirrors the
// defensive-copy idiom used throughout this codebase for anything handed
// to a subscriber outside the registry actor.
func (d *Domain) Clone() *Domain {
	c := *d
	return &c
}

// ToolUseRecord is one entry in a session's bounded recent-tool-use ring.
type ToolUseRecord struct {
	ToolUseID domain.ToolUseId
	ToolName  string
	At        time.Time
}

// MaxRecentTools is the ring buffer cap named in spec §3/§5 (tool-use
// history per session).
const MaxRecentTools = 50

// Infrastructure is co-owned with Domain but holds operational rather than
// domain state: PID, pane handle, transcript path, and a bounded ring of
// recent tool invocations. It exists solely for operator visibility and
// pane-jump resolution -- nothing in Domain depends on it.
type Infrastructure struct {
	PID            int // 0 means unknown
	Pane           domain.PanePlacement
	TranscriptPath domain.TranscriptPath
	RecentTools    []ToolUseRecord // ring buffer, len <= MaxRecentTools, oldest-drops-first
	UpdateCount    int64
	HookEventCount int64
	LastError      string
}

// PushTool appends a tool-use record, dropping the oldest entry once the
// ring reaches MaxRecentTools.
func (i *Infrastructure) PushTool(rec ToolUseRecord) {
	i.RecentTools = append(i.RecentTools, rec)
	if len(i.RecentTools) > MaxRecentTools {
		i.RecentTools = i.RecentTools[len(i.RecentTools)-MaxRecentTools:]
	}
}

// Clone returns a deep copy, duplicating the RecentTools slice so the copy
// can be mutated independently of the original.
func (i *Infrastructure) Clone() *Infrastructure {
	c := *i
	if len(i.RecentTools) > 0 {
		c.RecentTools = make([]ToolUseRecord, len(i.RecentTools))
		copy(c.RecentTools, i.RecentTools)
	}
	return &c
}
