package session

import (
	"fmt"
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
)

// maxDisplayPathLen is the cwd truncation width used by NewView. Chosen
// to keep a rendered row under 80 columns alongside the rest of a status
// line; long paths are elided in the middle so both the project root and
// the leaf directory stay legible.
const maxDisplayPathLen = 40

// View is the read-only snapshot handed to subscribers and CLI renderers.
// It never escapes the registry actor as a pointer into live state -- every
// View is built fresh from a Domain+Infrastructure pair at the moment of
// observation, so holding one never blocks a later mutation.
//
// JSON tags pin the wire shape to spec §6's documented session_list item
// exactly (field names, flattened status/cost/duration/lines, id_short,
// last_activity_display, tmux_pane, ...). Fields that exist for Go callers
// but have no place on the wire (the raw Status/Cost/Duration/LinesChanged
// structs, the untruncated WorkingDirectory, the infra-only PID and
// LastActivity) are tagged json:"-"; their display counterparts are
// computed once in NewView instead of via a MarshalJSON on each value
// type, so the wire shape lives in one place.
type View struct {
	ID                  domain.SessionId       `json:"id"`
	IDShort             string                 `json:"id_short"`
	AgentType           domain.AgentType       `json:"agent_type"`
	Model               domain.Model           `json:"model"`
	Status              domain.SessionStatus   `json:"-"`
	StatusDisplay       string                 `json:"status"`
	StatusDetail        string                 `json:"status_detail,omitempty"`
	ContextPercent      float64                `json:"context_percentage"`
	ContextDisplay      string                 `json:"context_display"`
	ContextWarning      bool                   `json:"context_warning"`
	ContextCritical     bool                   `json:"context_critical"`
	Cost                domain.Money           `json:"-"`
	CostDisplay         string                 `json:"cost_display"`
	CostUSD             float64                `json:"cost_usd"`
	Duration            domain.SessionDuration `json:"-"`
	DurationDisplay     string                 `json:"duration_display"`
	LinesChanged        domain.LinesChanged    `json:"-"`
	LinesDisplay        string                 `json:"lines_display"`
	StartedAt           time.Time              `json:"started_at"`
	LastActivity        time.Time              `json:"-"`
	LastActivityDisplay string                 `json:"last_activity_display"`
	WorkingDirectory    string                 `json:"-"`
	WorkingDirShort     string                 `json:"working_directory"`
	ParentSessionID     domain.SessionId       `json:"parent_session_id,omitempty"`
	AgentID             string                 `json:"agent_id,omitempty"`
	PID                 int                    `json:"-"`
	Pane                domain.PanePlacement   `json:"tmux_pane,omitempty"`
	IsStale             bool                   `json:"is_stale"`
	NeedsAttention      bool                   `json:"needs_attention"`
}

// StaleThreshold is the duration of inactivity after which a session is
// considered stale for display purposes. NewView always uses this constant
// for IsStale, for every View including those the registry builds; the
// registry's own cleanup sweep uses its configured threshold instead, which
// may differ.
const StaleThreshold = 90 * time.Second

// NewView builds a display snapshot from a session's domain and
// infrastructure state. now is passed in explicitly so staleness is
// computed relative to the caller's notion of "current time" rather than
// wall-clock time read inside the registry actor.
func NewView(d *Domain, infra *Infrastructure, now time.Time) View {
	v := View{
		ID:                  d.ID,
		IDShort:             d.ID.Short(),
		AgentType:           d.AgentType,
		Model:               d.Model,
		Status:              d.Status,
		StatusDisplay:       d.Status.String(),
		StatusDetail:        d.Status.DetailText(),
		ContextPercent:      d.Context.UsagePercentage(),
		ContextDisplay:      d.Context.Display(),
		ContextWarning:      d.Context.IsWarning(),
		ContextCritical:     d.Context.IsCritical(),
		Cost:                d.Cost,
		CostDisplay:         d.Cost.Display(),
		CostUSD:             d.Cost.USD(),
		Duration:            d.Duration,
		DurationDisplay:     d.Duration.Display(),
		LinesChanged:        d.LinesChanged,
		LinesDisplay:        d.LinesChanged.Display(),
		StartedAt:           d.StartedAt,
		LastActivity:        d.LastActivity,
		LastActivityDisplay: formatRelativeTime(now, d.LastActivity),
		WorkingDirectory:    d.WorkingDirectory,
		WorkingDirShort:     truncatePath(d.WorkingDirectory, maxDisplayPathLen),
		ParentSessionID:     d.ParentSessionID,
		AgentID:             d.AgentID,
		NeedsAttention:      d.Status.NeedsAttention(),
	}
	if infra != nil {
		v.PID = infra.PID
		v.Pane = infra.Pane
	}
	v.IsStale = now.Sub(d.LastActivity) > StaleThreshold
	return v
}

// formatRelativeTime renders the gap between now and t the way the session
// list displays "last activity": "now" for anything under two seconds (the
// status-line's own ~300ms report cadence means anything fresher than that
// reads as stale information anyway), then "Ns ago"/"Nm Ns ago"/"Nh Nm ago".
func formatRelativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 2*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
}

// truncatePath elides the middle of a long path, keeping the leading and
// trailing segments visible. Paths at or under max pass through unchanged.
func truncatePath(p string, max int) string {
	if len(p) <= max {
		return p
	}
	if max <= 3 {
		return p[:max]
	}
	keep := (max - 3) / 2
	return fmt.Sprintf("%s...%s", p[:keep], p[len(p)-keep:])
}
