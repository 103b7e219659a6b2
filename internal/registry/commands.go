package registry

import (
	"errors"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/rawproto"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

// Sentinel errors returned in command replies. These map directly onto the
// wire protocol's stable error codes (see internal/protocol).
var (
	ErrRegistryFull    = errors.New("registry_full")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrSessionExists   = errors.New("session_exists")
)

// command is the internal envelope every public Registry method builds and
// sends on cmdCh. Exactly one of the typed fields is populated; the actor
// loop sends exactly one value on reply (a buffered channel of size 1),
// which is what lets callers safely `<-cmd.reply` without the actor ever
// blocking on a reply nobody is waiting for.
type command struct {
	kind  commandKind
	reply chan any

	register       *session.Domain
	statusLine     *rawproto.StatusLine
	statusPID      int
	hookEvent      *rawproto.HookEvent
	contextID      domain.SessionId
	context        domain.ContextUsage
	paneID         domain.SessionId
	pane           domain.PanePlacement
	endID          domain.SessionId
	getID          domain.SessionId
	discovered     []DiscoveredSession
	subscribeFiler domain.SessionId
	unsubscribeSub *Subscriber
	newConfig      Config
}

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdUpsertFromStatus
	cmdApplyHookEvent
	cmdUpdateContext
	cmdSetPane
	cmdEndSession
	cmdGetSession
	cmdListSessions
	cmdDiscover
	cmdCleanupStale
	cmdSubscribe
	cmdUnsubscribe
	cmdUpdateConfig
)

// DiscoveredSession is the record produced by process discovery (§4.9) and
// submitted to the registry as a placeholder-creating Discover command.
type DiscoveredSession struct {
	PID  int
	Cwd  string
	Pane domain.PanePlacement
}

// send enqueues cmd on the registry's command channel and waits for the
// typed reply. It is the single chokepoint every exported method funnels
// through.
func (r *Registry) send(cmd command) any {
	cmd.reply = make(chan any, 1)
	r.cmdCh <- cmd
	return <-cmd.reply
}

// Register inserts a brand-new session. id must not already exist.
func (r *Registry) Register(d *session.Domain) error {
	reply := r.send(command{kind: cmdRegister, register: d})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// UpsertFromStatus creates or updates a session from a decoded status
// line, reconciling placeholder/pid identity per §4.5. pid is the OS
// process id the status line arrived over, if known (0 if not).
func (r *Registry) UpsertFromStatus(sl rawproto.StatusLine, pid int) error {
	reply := r.send(command{kind: cmdUpsertFromStatus, statusLine: &sl, statusPID: pid})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// ApplyHookEvent mutates session status per the hook mapping table,
// creating or idling subagent sessions as needed.
func (r *Registry) ApplyHookEvent(he rawproto.HookEvent) error {
	reply := r.send(command{kind: cmdApplyHookEvent, hookEvent: &he})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// UpdateContext merges a freshly computed ContextUsage into the named
// session.
func (r *Registry) UpdateContext(id domain.SessionId, ctx domain.ContextUsage) error {
	reply := r.send(command{kind: cmdUpdateContext, contextID: id, context: ctx})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// SetPane stores an opaque pane placement for the named session.
func (r *Registry) SetPane(id domain.SessionId, pane domain.PanePlacement) error {
	reply := r.send(command{kind: cmdSetPane, paneID: id, pane: pane})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// EndSession removes a session in response to an explicit end-of-session
// signal.
func (r *Registry) EndSession(id domain.SessionId) error {
	reply := r.send(command{kind: cmdEndSession, endID: id})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// GetSession returns a point-in-time view of one session.
func (r *Registry) GetSession(id domain.SessionId) (session.View, bool) {
	reply := r.send(command{kind: cmdGetSession, getID: id})
	if v, ok := reply.(session.View); ok {
		return v, true
	}
	return session.View{}, false
}

// ListSessions returns a point-in-time view of every session.
func (r *Registry) ListSessions() []session.View {
	reply := r.send(command{kind: cmdListSessions})
	views, _ := reply.([]session.View)
	return views
}

// Discover submits the result of a process-table scan. Each entry creates
// a placeholder session unless its pid is already tracked. Returns the
// number of new placeholders inserted.
func (r *Registry) Discover(found []DiscoveredSession) int {
	reply := r.send(command{kind: cmdDiscover, discovered: found})
	count, _ := reply.(int)
	return count
}

// CleanupStale runs the staleness sweep described in §4.10 and returns the
// number of sessions removed.
func (r *Registry) CleanupStale() int {
	reply := r.send(command{kind: cmdCleanupStale})
	count, _ := reply.(int)
	return count
}

// UpdateConfig replaces the registry's resource ceilings and timings with
// cfg. CommandQueueSize is not applied -- the command channel is already
// sized and cannot be resized without recreating the actor. Existing
// sessions are never evicted by a lowered MaxSessions; it only affects
// future Register and Discover calls.
func (r *Registry) UpdateConfig(cfg Config) {
	r.send(command{kind: cmdUpdateConfig, newConfig: cfg})
}

// Subscribe registers a new event subscriber. If filter is non-empty, the
// subscriber only receives events for that session id.
func (r *Registry) Subscribe(filter domain.SessionId) *Subscriber {
	reply := r.send(command{kind: cmdSubscribe, subscribeFiler: filter})
	sub, _ := reply.(*Subscriber)
	return sub
}
