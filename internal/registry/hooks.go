package registry

import (
	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/rawproto"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

// interactiveTools is the small hard-coded set of tools that put a session
// into AttentionNeeded rather than Working on PreToolUse. Per §9 open
// question (b), growing this set belongs in configuration, not code; it is
// inlined here because the set is currently fixed.
var interactiveTools = map[string]bool{
	"AskUserQuestion": true,
	"EnterPlanMode":   true,
	"ExitPlanMode":    true,
}

// handleApplyHookEvent applies the authoritative hook -> status mapping
// table (§4.2). An unrecognized hook_event_name was already reduced to
// Recognized=false by the parser and is a no-op here. Unrecognized
// notification_type values likewise leave status unchanged.
func (r *Registry) handleApplyHookEvent(he rawproto.HookEvent) error {
	e, ok := r.entryByID(he.SessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if !he.Recognized {
		return nil
	}

	e.infra.HookEventCount++
	if he.ToolUseID != "" {
		e.infra.PushTool(session.ToolUseRecord{
			ToolUseID: he.ToolUseID,
			ToolName:  he.ToolName,
		})
	}

	switch he.Kind {
	case domain.PreToolUse:
		if interactiveTools[he.ToolName] {
			e.domain.Status = domain.AttentionNeeded(he.ToolName)
		} else {
			e.domain.Status = domain.Working(he.ToolName)
		}
	case domain.PostToolUse, domain.PostToolUseFailure:
		e.domain.Status = domain.Working("Thinking")
	case domain.UserPromptSubmit:
		e.domain.Status = domain.Working("")
	case domain.Stop:
		e.domain.Status = domain.Idle()
	case domain.SubagentStart:
		agentType := he.AgentType
		e.domain.Status = domain.Working(agentType.String())
		r.createSubagent(he, agentType)
	case domain.SubagentStop:
		r.idleSubagent(he)
	case domain.SessionStart:
		e.domain.Status = domain.Idle()
	case domain.SessionEnd:
		r.remove(r.idIdx[he.SessionID], he.SessionID, ReasonEnded)
		return nil
	case domain.PreCompact:
		e.domain.Status = domain.Working("Compacting")
	case domain.Setup:
		e.domain.Status = domain.Working("Setup")
	case domain.Notification:
		switch he.NotificationType {
		case "permission_prompt":
			e.domain.Status = domain.AttentionNeeded("Permission")
		case "idle_prompt":
			e.domain.Status = domain.Idle()
		case "elicitation_dialog":
			e.domain.Status = domain.AttentionNeeded("MCP input")
		}
	}

	e.domain.LastActivity = r.now()
	r.emit(Event{Kind: EventUpdated, View: r.view(e)})
	return nil
}

// subagentKey returns the identity a subagent is tracked by: its hook's
// agent_id when present, falling back to the tool_use_id that started it.
func subagentKey(he rawproto.HookEvent) string {
	if he.AgentID != "" {
		return he.AgentID
	}
	return string(he.ToolUseID)
}

// createSubagent inserts a child session for a SubagentStart hook. The
// child shares the parent's working directory and model but tracks its own
// status and cost independently.
func (r *Registry) createSubagent(he rawproto.HookEvent, agentType domain.AgentType) {
	parent, ok := r.entryByID(he.SessionID)
	if !ok {
		return
	}
	now := r.now()
	key := subagentKey(he)
	childID := domain.SessionId(string(he.SessionID) + ":" + key)
	if _, exists := r.idIdx[childID]; exists {
		return
	}
	child := &session.Domain{
		ID:               childID,
		AgentType:        agentType,
		Model:            parent.domain.Model,
		Status:           domain.Working(agentType.String()),
		StartedAt:        now,
		LastActivity:     now,
		WorkingDirectory: parent.domain.WorkingDirectory,
		ParentSessionID:  he.SessionID,
		AgentID:          key,
	}
	pid := r.syntheticPID()
	e := &entry{domain: child, infra: &session.Infrastructure{}}
	r.byPID[pid] = e
	r.idIdx[childID] = pid
	r.emit(Event{Kind: EventRegistered, View: r.view(e)})
}

// idleSubagent transitions a subagent to Idle on SubagentStop. Per §9 open
// question (a), the child session is idled rather than removed, so it
// remains visible until the registry's own staleness sweep reclaims it.
func (r *Registry) idleSubagent(he rawproto.HookEvent) {
	key := subagentKey(he)
	childID := domain.SessionId(string(he.SessionID) + ":" + key)
	e, ok := r.entryByID(childID)
	if !ok {
		return
	}
	e.domain.Status = domain.Idle()
	e.domain.LastActivity = r.now()
	r.emit(Event{Kind: EventUpdated, View: r.view(e)})
}
