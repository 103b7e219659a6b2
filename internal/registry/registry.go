// Package registry implements the daemon's single-owner session state
// machine. A Registry is an actor: the only way to read or mutate its
// sessions is to send it a command over a bounded channel and wait for a
// typed reply on a paired one-shot channel. There is no mutex over the
// session maps; every command is handled to completion, including event
// emission, before the actor looks at its channel again. This is what
// makes the two coupled indices (by pid, by session id) and their
// reconciliation rules trivially atomic.
package registry

import (
	"log"
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

// entry is the registry's internal storage unit: a session's pure domain
// state paired with its infrastructure bookkeeping.
type entry struct {
	domain *session.Domain
	infra  *session.Infrastructure
}

// Registry is the actor described above. Construct one with New and run it
// with Run in its own goroutine; every other method is a client of that
// goroutine and safe to call concurrently from many others.
type Registry struct {
	cfg   Config
	cmdCh chan command

	byPID map[int]*entry
	idIdx map[domain.SessionId]int // SessionId -> pid

	subscribers map[*Subscriber]struct{}

	nextSyntheticPID int

	now func() time.Time // overridable for tests; defaults to time.Now
}

// New constructs a Registry. Call Run in a goroutine to start processing
// commands; the zero value is not usable.
func New(cfg Config) *Registry {
	return &Registry{
		cfg:              cfg,
		cmdCh:            make(chan command, cfg.CommandQueueSize),
		byPID:            make(map[int]*entry),
		idIdx:            make(map[domain.SessionId]int),
		subscribers:      make(map[*Subscriber]struct{}),
		nextSyntheticPID: -1,
		now:              time.Now,
	}
}

// drainTimeout bounds how long Run keeps answering commands already queued
// in cmdCh once stop fires. Callers of Register/UpsertFromStatus/... block
// on a reply; abandoning the queue the instant stop closes would leave them
// hanging until their own connection gives up, so Run drains it briefly
// instead -- but a client that will never read its reply (e.g. already
// gone) must not wedge shutdown forever, hence the bound.
const drainTimeout = 5 * time.Second

// Run drains the command channel until stop is closed. It must run in
// exactly one goroutine for the lifetime of the Registry; this is what
// makes every handler's two-index mutation atomic with no lock.
func (r *Registry) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			r.drain()
			for sub := range r.subscribers {
				sub.close()
			}
			return
		case cmd := <-r.cmdCh:
			r.handle(cmd)
		}
	}
}

// drain answers any commands still sitting in cmdCh after shutdown begins,
// stopping as soon as the channel is empty or drainTimeout elapses.
func (r *Registry) drain() {
	deadline := time.NewTimer(drainTimeout)
	defer deadline.Stop()
	for {
		select {
		case cmd := <-r.cmdCh:
			r.handle(cmd)
		case <-deadline.C:
			return
		default:
			return
		}
	}
}

func (r *Registry) handle(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		cmd.reply <- r.handleRegister(cmd.register)
	case cmdUpsertFromStatus:
		cmd.reply <- r.handleUpsertFromStatus(*cmd.statusLine, cmd.statusPID)
	case cmdApplyHookEvent:
		cmd.reply <- r.handleApplyHookEvent(*cmd.hookEvent)
	case cmdUpdateContext:
		cmd.reply <- r.handleUpdateContext(cmd.contextID, cmd.context)
	case cmdSetPane:
		cmd.reply <- r.handleSetPane(cmd.paneID, cmd.pane)
	case cmdEndSession:
		cmd.reply <- r.handleEndSession(cmd.endID)
	case cmdGetSession:
		cmd.reply <- r.handleGetSession(cmd.getID)
	case cmdListSessions:
		cmd.reply <- r.handleListSessions()
	case cmdDiscover:
		cmd.reply <- r.handleDiscover(cmd.discovered)
	case cmdCleanupStale:
		cmd.reply <- r.handleCleanupStale()
	case cmdSubscribe:
		cmd.reply <- r.handleSubscribe(cmd.subscribeFiler)
	case cmdUnsubscribe:
		r.handleUnsubscribe(cmd.unsubscribeSub)
		cmd.reply <- struct{}{}
	case cmdUpdateConfig:
		r.handleUpdateConfig(cmd.newConfig)
		cmd.reply <- struct{}{}
	}
}

// handleUpdateConfig applies the reloadable subset of cfg. CommandQueueSize
// is left untouched since cmdCh is already allocated at its original size.
func (r *Registry) handleUpdateConfig(cfg Config) {
	queueSize := r.cfg.CommandQueueSize
	cfg.CommandQueueSize = queueSize
	r.cfg = cfg
}

func (r *Registry) handleRegister(d *session.Domain) error {
	if _, exists := r.idIdx[d.ID]; exists {
		return ErrSessionExists
	}
	if len(r.byPID) >= r.cfg.MaxSessions {
		r.handleCleanupStale()
		if len(r.byPID) >= r.cfg.MaxSessions {
			return ErrRegistryFull
		}
	}
	pid := r.syntheticPID()
	d.LastActivity = r.now()
	if d.StartedAt.IsZero() {
		d.StartedAt = d.LastActivity
	}
	e := &entry{domain: d, infra: &session.Infrastructure{}}
	r.byPID[pid] = e
	r.idIdx[d.ID] = pid
	r.emit(Event{Kind: EventRegistered, View: r.view(e)})
	return nil
}

func (r *Registry) handleGetSession(id domain.SessionId) any {
	e, ok := r.entryByID(id)
	if !ok {
		return nil
	}
	return r.view(e)
}

func (r *Registry) handleListSessions() []session.View {
	views := make([]session.View, 0, len(r.byPID))
	for _, e := range r.byPID {
		views = append(views, r.view(e))
	}
	return views
}

func (r *Registry) handleSetPane(id domain.SessionId, pane domain.PanePlacement) error {
	e, ok := r.entryByID(id)
	if !ok {
		return ErrSessionNotFound
	}
	e.infra.Pane = pane
	e.domain.LastActivity = r.now()
	r.emit(Event{Kind: EventUpdated, View: r.view(e)})
	return nil
}

func (r *Registry) handleUpdateContext(id domain.SessionId, ctx domain.ContextUsage) error {
	e, ok := r.entryByID(id)
	if !ok {
		return ErrSessionNotFound
	}
	e.domain.Context = ctx
	e.domain.LastActivity = r.now()
	r.emit(Event{Kind: EventUpdated, View: r.view(e)})
	return nil
}

func (r *Registry) handleEndSession(id domain.SessionId) error {
	pid, ok := r.idIdx[id]
	if !ok {
		return ErrSessionNotFound
	}
	r.remove(pid, id, ReasonEnded)
	return nil
}

// entryByID looks up an entry through the secondary index.
func (r *Registry) entryByID(id domain.SessionId) (*entry, bool) {
	pid, ok := r.idIdx[id]
	if !ok {
		return nil, false
	}
	e, ok := r.byPID[pid]
	return e, ok
}

// remove deletes the entry at pid from both indices and emits Removed. The
// caller must already hold the correct id for that pid.
func (r *Registry) remove(pid int, id domain.SessionId, reason RemovalReason) {
	delete(r.byPID, pid)
	delete(r.idIdx, id)
	r.emit(Event{Kind: EventRemoved, ID: id, Reason: reason})
}

func (r *Registry) view(e *entry) session.View {
	return session.NewView(e.domain, e.infra, r.now())
}

func (r *Registry) emit(ev Event) {
	for sub := range r.subscribers {
		sub.deliver(ev)
	}
}

func (r *Registry) syntheticPID() int {
	p := r.nextSyntheticPID
	r.nextSyntheticPID--
	return p
}

func (r *Registry) handleSubscribe(filter domain.SessionId) *Subscriber {
	sub := newSubscriber(filter)
	r.subscribers[sub] = struct{}{}
	logf("subscriber %s added (filter=%q, total=%d)", sub.ID, filter, len(r.subscribers))
	return sub
}

// Unsubscribe removes a subscriber and closes its event channel. Safe to
// call even if the subscriber was already removed.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	r.send(command{kind: cmdUnsubscribe, unsubscribeSub: sub})
}

func (r *Registry) handleUnsubscribe(sub *Subscriber) {
	if _, ok := r.subscribers[sub]; ok {
		delete(r.subscribers, sub)
		sub.close()
		logf("subscriber %s removed (total=%d)", sub.ID, len(r.subscribers))
	}
}

// handleCleanupStale implements §4.10: a pid whose process has exited is
// removed immediately; otherwise a session past the inactivity threshold
// is Stale and one past the absolute age ceiling is Expired. It doubles as
// the capacity-driven eviction sweep that Register runs when the registry
// is full.
func (r *Registry) handleCleanupStale() int {
	now := r.now()
	removed := 0
	for pid, e := range r.byPID {
		if pid >= 0 && !processAlive(pid) {
			r.remove(pid, e.domain.ID, ReasonProcessGone)
			removed++
			continue
		}
		sinceActivity := now.Sub(e.domain.LastActivity)
		sinceStart := now.Sub(e.domain.StartedAt)
		switch {
		case sinceActivity > r.cfg.StaleThreshold:
			r.remove(pid, e.domain.ID, ReasonStale)
			removed++
		case sinceStart > r.cfg.MaxSessionAge:
			r.remove(pid, e.domain.ID, ReasonExpired)
			removed++
		}
	}
	return removed
}

// handleDiscover inserts a placeholder entry for every discovered pid not
// already tracked. Re-running discovery against an unchanged process table
// is therefore a no-op (§8 idempotence property).
func (r *Registry) handleDiscover(found []DiscoveredSession) int {
	inserted := 0
	for _, d := range found {
		if _, exists := r.byPID[d.PID]; exists {
			continue
		}
		if len(r.byPID) >= r.cfg.MaxSessions {
			r.handleCleanupStale()
			if len(r.byPID) >= r.cfg.MaxSessions {
				break
			}
		}
		now := r.now()
		dom := &session.Domain{
			ID:               domain.PlaceholderSessionId(d.PID),
			Status:           domain.Idle(),
			StartedAt:        now,
			LastActivity:     now,
			WorkingDirectory: d.Cwd,
		}
		e := &entry{domain: dom, infra: &session.Infrastructure{PID: d.PID, Pane: d.Pane}}
		r.byPID[d.PID] = e
		r.idIdx[dom.ID] = d.PID
		r.emit(Event{Kind: EventRegistered, View: r.view(e)})
		inserted++
	}
	return inserted
}

// processAlive is swapped out in tests; in production it consults /proc
// (see process_unix.go).
var processAlive = checkProcessAlive

func logf(format string, args ...any) {
	log.Printf("registry: "+format, args...)
}
