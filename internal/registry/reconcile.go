package registry

import (
	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/rawproto"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

// handleUpsertFromStatus implements the four reconciliation rules of §4.5.
// pid is the OS process id the status line arrived over; 0 means unknown
// (e.g. a status line relayed through a connection that never reported a
// pid).
func (r *Registry) handleUpsertFromStatus(sl rawproto.StatusLine, pid int) error {
	if len(r.byPID) >= r.cfg.MaxSessions {
		if _, exists := r.byPID[pid]; pid == 0 || !exists {
			if _, exists := r.idIdx[sl.SessionID]; !exists {
				r.handleCleanupStale()
				if len(r.byPID) >= r.cfg.MaxSessions {
					return ErrRegistryFull
				}
			}
		}
	}

	if pid != 0 {
		if e, ok := r.byPID[pid]; ok {
			// Rule 2/4: this pid is already tracked. If the status line's
			// real id differs from what we have (almost always true the
			// first time, since discovery seeds a pending-<pid>
			// placeholder), reconcile the secondary index.
			if e.domain.ID != sl.SessionID {
				if otherPID, claimed := r.idIdx[sl.SessionID]; claimed && otherPID != pid {
					// Two placeholders raced to the same real id,
					// probably from a delayed status update. The one
					// arriving now (second) wins; discard the earlier
					// placeholder entry.
					if other, ok := r.byPID[otherPID]; ok {
						r.remove(otherPID, other.domain.ID, ReasonProcessGone)
					}
				}
				delete(r.idIdx, e.domain.ID)
				e.domain.ID = sl.SessionID
				r.idIdx[sl.SessionID] = pid
			}
			e.infra.UpdateCount++
			r.applyStatusLine(e.domain, sl)
			r.emit(Event{Kind: EventUpdated, View: r.view(e)})
			return nil
		}

		// Rule 3: unknown pid. If the real id is already tracked under a
		// different (stale or racing) pid, this is the §9(c) "same id,
		// different pid" case: last write wins, move the entry.
		if otherPID, ok := r.idIdx[sl.SessionID]; ok {
			e := r.byPID[otherPID]
			delete(r.byPID, otherPID)
			r.byPID[pid] = e
			r.idIdx[sl.SessionID] = pid
			e.infra.PID = pid
			logf("session %s reassigned from pid %d to pid %d (concurrent status updates)", sl.SessionID.Short(), otherPID, pid)
			e.infra.UpdateCount++
			r.applyStatusLine(e.domain, sl)
			r.emit(Event{Kind: EventUpdated, View: r.view(e)})
			return nil
		}

		e := r.newEntryFromStatus(sl)
		e.infra.PID = pid
		r.byPID[pid] = e
		r.idIdx[sl.SessionID] = pid
		r.emit(Event{Kind: EventRegistered, View: r.view(e)})
		return nil
	}

	// pid unknown: key purely off the session id.
	if e, ok := r.entryByID(sl.SessionID); ok {
		e.infra.UpdateCount++
		r.applyStatusLine(e.domain, sl)
		r.emit(Event{Kind: EventUpdated, View: r.view(e)})
		return nil
	}
	e := r.newEntryFromStatus(sl)
	synthetic := r.syntheticPID()
	r.byPID[synthetic] = e
	r.idIdx[sl.SessionID] = synthetic
	r.emit(Event{Kind: EventRegistered, View: r.view(e)})
	return nil
}

func (r *Registry) newEntryFromStatus(sl rawproto.StatusLine) *entry {
	now := r.now()
	dom := &session.Domain{
		ID:           sl.SessionID,
		Status:       domain.Idle(),
		StartedAt:    now,
		LastActivity: now,
	}
	e := &entry{domain: dom, infra: &session.Infrastructure{UpdateCount: 1}}
	r.applyStatusLine(dom, sl)
	return e
}

// applyStatusLine merges a decoded status line into a session's domain
// state. ContextCleared resets the live percentage to zero while leaving
// cumulative totals alone, per the context-reset testable property.
func (r *Registry) applyStatusLine(d *session.Domain, sl rawproto.StatusLine) {
	if sl.Model != domain.ModelUnknown {
		d.Model = sl.Model
	}
	d.Cost = sl.Cost
	d.Duration = domain.SessionDuration{TotalMs: sl.DurationMs, APIMs: sl.APIDurationMs}
	d.LinesChanged = sl.LinesChanged
	if sl.WorkingDir != "" {
		d.WorkingDirectory = sl.WorkingDir
	}
	if sl.ClaudeVersion != "" {
		d.ClaudeCodeVersion = sl.ClaudeVersion
	}
	d.Context = sl.Context
	if sl.ContextCleared {
		d.Context.ResetCurrent()
	}
	d.LastActivity = r.now()
}
