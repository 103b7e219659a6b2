package registry

import (
	"testing"
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/rawproto"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

// testRegistry starts a Registry actor with a controllable clock and
// process-liveness stub, returning the registry and a stop func.
func testRegistry(t *testing.T, cfg Config) (*Registry, func(time.Time)) {
	t.Helper()
	r := New(cfg)
	clock := time.Now()
	r.now = func() time.Time { return clock }

	origAlive := processAlive
	processAlive = func(pid int) bool { return true }
	t.Cleanup(func() { processAlive = origAlive })

	stop := make(chan struct{})
	go r.Run(stop)
	t.Cleanup(func() { close(stop) })

	return r, func(t2 time.Time) { clock = t2; r.now = func() time.Time { return clock } }
}

func TestRegisterAndGetSession(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	d := &session.Domain{ID: "s1", Status: domain.Idle()}
	if err := r.Register(d); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	v, ok := r.GetSession("s1")
	if !ok {
		t.Fatal("GetSession() ok=false after Register")
	}
	if v.ID != "s1" {
		t.Errorf("View.ID = %v, want s1", v.ID)
	}
}

func TestRegisterDuplicateIDRejected(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})
	if err := r.Register(&session.Domain{ID: "s1"}); err != ErrSessionExists {
		t.Errorf("Register() on duplicate id = %v, want ErrSessionExists", err)
	}
}

// TestContextResetOnClear is testable-properties scenario 1.
func TestContextResetOnClear(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})

	sl := rawproto.StatusLine{
		SessionID: "s1",
		Context: domain.ContextUsage{
			TotalInput:        5141,
			TotalOutput:       1453,
			ContextWindowSize: 200000,
			CurrentInput:      100,
			CacheRead:         5000,
		},
	}
	if err := r.UpsertFromStatus(sl, 0); err != nil {
		t.Fatal(err)
	}
	v, _ := r.GetSession("s1")
	if v.ContextPercent < 2.54 || v.ContextPercent > 2.56 {
		t.Errorf("ContextPercent = %v, want ~2.55", v.ContextPercent)
	}

	sl2 := rawproto.StatusLine{
		SessionID:      "s1",
		Context:        domain.ContextUsage{TotalInput: 5141, TotalOutput: 1453, ContextWindowSize: 200000},
		ContextCleared: true,
	}
	r.UpsertFromStatus(sl2, 0)
	v2, _ := r.GetSession("s1")
	if v2.ContextPercent != 0 {
		t.Errorf("ContextPercent after clear = %v, want 0", v2.ContextPercent)
	}
}

// TestPermissionWaiting is testable-properties scenario 2.
func TestPermissionWaiting(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "A"})

	sub := r.Subscribe("")
	defer r.Unsubscribe(sub)

	he := rawproto.HookEvent{SessionID: "A", Kind: domain.PreToolUse, Recognized: true, ToolName: "AskUserQuestion"}
	if err := r.ApplyHookEvent(he); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-sub.Events():
		if ev.View.Status.Kind != domain.StatusAttentionNeeded {
			t.Errorf("status = %v, want AttentionNeeded", ev.View.Status.Kind)
		}
		if ev.View.Status.Reason != "AskUserQuestion" {
			t.Errorf("reason = %q, want AskUserQuestion", ev.View.Status.Reason)
		}
		if !ev.View.NeedsAttention {
			t.Error("NeedsAttention must be true")
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

// TestCapacityRejectionAndStaleSweep is testable-properties scenario 3.
func TestCapacityRejectionAndStaleSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 2
	r, advance := testRegistry(t, cfg)

	r.Register(&session.Domain{ID: "s1"})
	r.Register(&session.Domain{ID: "s2"})

	if err := r.Register(&session.Domain{ID: "s3"}); err != ErrRegistryFull {
		t.Fatalf("Register(s3) = %v, want ErrRegistryFull", err)
	}
	if got := len(r.ListSessions()); got != 2 {
		t.Fatalf("ListSessions() = %d, want 2", got)
	}

	advance(time.Now().Add(2 * time.Minute))
	if got := r.CleanupStale(); got != 2 {
		t.Errorf("CleanupStale() = %d, want 2", got)
	}

	if err := r.Register(&session.Domain{ID: "s3"}); err != nil {
		t.Errorf("Register(s3) after sweep = %v, want nil", err)
	}
}

// TestDiscoveryThenStatusReconciliation is testable-properties scenario 5.
func TestDiscoveryThenStatusReconciliation(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	sub := r.Subscribe("")
	defer r.Unsubscribe(sub)

	n := r.Discover([]DiscoveredSession{{PID: 4711, Cwd: "/p"}})
	if n != 1 {
		t.Fatalf("Discover() = %d, want 1", n)
	}
	drainOne(t, sub) // Registered for the placeholder

	placeholderID := domain.PlaceholderSessionId(4711)
	if _, ok := r.GetSession(placeholderID); !ok {
		t.Fatalf("placeholder session %v not found", placeholderID)
	}

	if err := r.UpsertFromStatus(rawproto.StatusLine{SessionID: "8e11"}, 4711); err != nil {
		t.Fatal(err)
	}
	ev := drainOne(t, sub)
	if ev.Kind != EventUpdated {
		t.Errorf("event kind = %v, want EventUpdated", ev.Kind)
	}

	if _, ok := r.GetSession(placeholderID); ok {
		t.Error("placeholder id must no longer resolve after reconciliation")
	}
	v, ok := r.GetSession("8e11")
	if !ok {
		t.Fatal("real session id not found after reconciliation")
	}
	if v.PID != 4711 {
		t.Errorf("PID = %d, want 4711", v.PID)
	}
	if len(r.ListSessions()) != 1 {
		t.Errorf("ListSessions() = %d, want 1", len(r.ListSessions()))
	}
}

// TestDiscoverIsIdempotent is the §8 round-trip property for Discover.
func TestDiscoverIsIdempotent(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Discover([]DiscoveredSession{{PID: 1, Cwd: "/a"}, {PID: 2, Cwd: "/b"}})
	second := r.Discover([]DiscoveredSession{{PID: 1, Cwd: "/a"}, {PID: 2, Cwd: "/b"}})
	if second != 0 {
		t.Errorf("second Discover() inserted %d, want 0", second)
	}
	if len(r.ListSessions()) != 2 {
		t.Errorf("ListSessions() = %d, want 2", len(r.ListSessions()))
	}
}

// TestLossyBroadcast is testable-properties scenario 6.
func TestLossyBroadcast(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})
	sub := r.Subscribe("")
	defer r.Unsubscribe(sub)

	for i := 0; i < 150; i++ {
		r.UpdateContext("s1", domain.ContextUsage{ContextWindowSize: 100, CurrentInput: domain.TokenCount(i)})
	}

	time.Sleep(50 * time.Millisecond)
	count := 0
	for {
		select {
		case <-sub.Events():
			count++
		default:
			goto done
		}
	}
done:
	if count != SubscriberQueueCapacity {
		t.Errorf("observed %d events, want %d", count, SubscriberQueueCapacity)
	}
	if sub.Dropped.Load() != 50 {
		t.Errorf("Dropped = %d, want 50", sub.Dropped.Load())
	}
}

// TestPostToolUseAfterPreToolUseLeavesThinking is a §8 idempotence property.
func TestPostToolUseAfterPreToolUseLeavesThinking(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})

	r.ApplyHookEvent(rawproto.HookEvent{SessionID: "s1", Kind: domain.PreToolUse, Recognized: true, ToolName: "Bash"})
	r.ApplyHookEvent(rawproto.HookEvent{SessionID: "s1", Kind: domain.PostToolUse, Recognized: true})

	v, _ := r.GetSession("s1")
	if v.Status.Kind != domain.StatusWorking || v.Status.Detail != "Thinking" {
		t.Errorf("status = %+v, want Working{Thinking}", v.Status)
	}
}

func TestSubagentStartAndStop(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "parent"})

	he := rawproto.HookEvent{SessionID: "parent", Kind: domain.SubagentStart, Recognized: true, AgentID: "tool-1", AgentType: domain.NewCustomAgentType("explore")}
	if err := r.ApplyHookEvent(he); err != nil {
		t.Fatal(err)
	}

	views := r.ListSessions()
	if len(views) != 2 {
		t.Fatalf("ListSessions() = %d, want 2 (parent + subagent)", len(views))
	}

	var child session.View
	found := false
	for _, v := range views {
		if v.ParentSessionID == "parent" {
			child = v
			found = true
		}
	}
	if !found {
		t.Fatal("no child session found with ParentSessionID == parent")
	}
	if child.Status.Kind != domain.StatusWorking {
		t.Errorf("child status = %v, want Working", child.Status.Kind)
	}

	stopEv := rawproto.HookEvent{SessionID: "parent", Kind: domain.SubagentStop, Recognized: true, AgentID: "tool-1"}
	if err := r.ApplyHookEvent(stopEv); err != nil {
		t.Fatal(err)
	}
	childView, ok := r.GetSession(child.ID)
	if !ok {
		t.Fatal("child session removed on SubagentStop; spec requires idling, not removal")
	}
	if childView.Status.Kind != domain.StatusIdle {
		t.Errorf("child status after stop = %v, want Idle", childView.Status.Kind)
	}
}

func TestSessionEndRemovesSession(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})
	r.ApplyHookEvent(rawproto.HookEvent{SessionID: "s1", Kind: domain.SessionEnd, Recognized: true})
	if _, ok := r.GetSession("s1"); ok {
		t.Error("session must be removed after SessionEnd")
	}
}

func TestUnknownHookEventIsNoOp(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})
	before, _ := r.GetSession("s1")

	r.ApplyHookEvent(rawproto.HookEvent{SessionID: "s1", Recognized: false})

	after, _ := r.GetSession("s1")
	if after.Status != before.Status {
		t.Errorf("status changed on unrecognized hook: %v -> %v", before.Status, after.Status)
	}
}

func TestSetPaneThenGetSession(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	r.Register(&session.Domain{ID: "s1"})
	if err := r.SetPane("s1", "%42"); err != nil {
		t.Fatal(err)
	}
	v, _ := r.GetSession("s1")
	if v.Pane != "%42" {
		t.Errorf("Pane = %v, want %%42", v.Pane)
	}
}

func TestSubscribeAssignsDistinctIDs(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	a := r.Subscribe("")
	b := r.Subscribe("")
	defer r.Unsubscribe(a)
	defer r.Unsubscribe(b)

	if a.ID == "" || b.ID == "" {
		t.Fatal("Subscribe() must assign a non-empty ID")
	}
	if a.ID == b.ID {
		t.Error("two subscribers must not share an ID")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r, _ := testRegistry(t, DefaultConfig())
	if _, ok := r.GetSession("missing"); ok {
		t.Error("GetSession() for missing id returned ok=true")
	}
}

func TestUpdateConfigLowerMaxSessionsDoesNotEvictExisting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 5
	r, _ := testRegistry(t, cfg)

	for i := 0; i < 3; i++ {
		r.Register(&session.Domain{ID: domain.SessionId(string(rune('a' + i)))})
	}

	smaller := cfg
	smaller.MaxSessions = 1
	r.UpdateConfig(smaller)

	if got := len(r.ListSessions()); got != 3 {
		t.Errorf("ListSessions() after lowering MaxSessions = %d, want 3 (no eviction)", got)
	}

	if err := r.Register(&session.Domain{ID: "new"}); err != ErrRegistryFull {
		t.Errorf("Register() after lowering MaxSessions = %v, want ErrRegistryFull", err)
	}
}

func drainOne(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered within 1s")
		return Event{}
	}
}
