package domain

// StatusKind is the discriminant of SessionStatus's three fundamental
// states. Earlier designs in this space used parallel boolean flags
// (running_tool, waiting_for_permission, ...); those flags are
// unrepresentable in combination here by construction, which eliminates a
// whole class of inconsistent-UI bugs spec §9 calls out.
type StatusKind int

const (
	// StatusIdle: Claude finished and is waiting on the user.
	StatusIdle StatusKind = iota
	// StatusWorking: Claude is busy; Detail optionally names the current
	// tool or "Thinking".
	StatusWorking
	// StatusAttentionNeeded: blocked on the user -- a permission prompt, a
	// question, or plan-mode approval. Reason is always non-empty.
	StatusAttentionNeeded
)

// SessionStatus is a sum type, not a scalar: only one of its three states
// holds at a time, and state-specific data (Detail, Reason) only makes
// sense for its own state.
type SessionStatus struct {
	Kind   StatusKind
	Detail string // set only when Kind == StatusWorking; may be empty ("Thinking"-less working)
	Reason string // set only when Kind == StatusAttentionNeeded; always non-empty
}

// Idle returns the Idle status.
func Idle() SessionStatus { return SessionStatus{Kind: StatusIdle} }

// Working returns a Working status with the given detail ("" for none).
func Working(detail string) SessionStatus {
	return SessionStatus{Kind: StatusWorking, Detail: detail}
}

// AttentionNeeded returns an AttentionNeeded status. Panics in debug builds
// is not appropriate for a daemon that must never crash on bad input, so
// callers are expected to supply a non-empty reason; an empty reason here
// is replaced with "unknown" to preserve the domain invariant that
// AttentionNeeded always carries a reason.
func AttentionNeeded(reason string) SessionStatus {
	if reason == "" {
		reason = "unknown"
	}
	return SessionStatus{Kind: StatusAttentionNeeded, Reason: reason}
}

// IsActive reports whether Claude is doing work right now (Working).
func (s SessionStatus) IsActive() bool {
	return s.Kind == StatusWorking
}

// NeedsAttention reports whether the session is blocked on the user.
func (s SessionStatus) NeedsAttention() bool {
	return s.Kind == StatusAttentionNeeded
}

// DetailText returns the status's associated free-text detail for display:
// Detail when Working, Reason when AttentionNeeded, "" when Idle.
func (s SessionStatus) DetailText() string {
	switch s.Kind {
	case StatusWorking:
		return s.Detail
	case StatusAttentionNeeded:
		return s.Reason
	default:
		return ""
	}
}

// String renders the wire-level status tag: "idle", "working", or
// "attention_needed".
func (s SessionStatus) String() string {
	switch s.Kind {
	case StatusWorking:
		return "working"
	case StatusAttentionNeeded:
		return "attention_needed"
	default:
		return "idle"
	}
}
