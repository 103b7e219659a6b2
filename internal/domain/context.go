package domain

// ContextUsage tracks an agent's context-window consumption. TotalInput and
// TotalOutput are cumulative counters across the whole session; the
// Current* and Cache* fields describe the token mix actually occupying the
// model's context window right now. When the agent clears its context,
// the agent reports no current_usage at all -- the caller must reset
// Current*/Cache* to zero directly rather than deriving "in context" usage
// from the cumulative totals (spec §3, ContextUsage).
type ContextUsage struct {
	TotalInput        TokenCount
	TotalOutput       TokenCount
	ContextWindowSize TokenCount
	CurrentInput      TokenCount
	CurrentOutput     TokenCount
	CacheCreation     TokenCount
	CacheRead         TokenCount
}

const (
	// WarningThresholdPct is the usage percentage at which a session is
	// flagged as approaching its context window.
	WarningThresholdPct = 80.0
	// CriticalThresholdPct is the usage percentage at which a session is
	// flagged as nearly out of context window.
	CriticalThresholdPct = 90.0
)

// UsagePercentage returns (cache_read + current_input + cache_creation) /
// context_window_size as a percentage, clamped to [0, 100]. A zero or
// negative window size always yields 0 -- there is nothing to divide by.
func (c ContextUsage) UsagePercentage() float64 {
	if c.ContextWindowSize <= 0 {
		return 0
	}
	inContext := c.CacheRead + c.CurrentInput + c.CacheCreation
	pct := float64(inContext) / float64(c.ContextWindowSize) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// IsWarning reports whether usage has crossed WarningThresholdPct.
func (c ContextUsage) IsWarning() bool {
	return c.UsagePercentage() >= WarningThresholdPct
}

// IsCritical reports whether usage has crossed CriticalThresholdPct.
func (c ContextUsage) IsCritical() bool {
	return c.UsagePercentage() >= CriticalThresholdPct
}

// ResetCurrent clears the in-context fields, returning usage percentage to
// zero. This is the authoritative "context cleared" signal: it is called
// whenever a status update arrives with no current_usage block, regardless
// of what the cumulative totals say.
func (c *ContextUsage) ResetCurrent() {
	c.CurrentInput = 0
	c.CurrentOutput = 0
	c.CacheCreation = 0
	c.CacheRead = 0
}

// Display renders e.g. "5.1K/200K" for the session list view.
func (c ContextUsage) Display() string {
	inContext := c.CacheRead + c.CurrentInput + c.CacheCreation
	return inContext.Format() + "/" + c.ContextWindowSize.Format()
}
