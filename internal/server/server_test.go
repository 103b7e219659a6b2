package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/config"
	"github.com/agent-tmux-monitor/daemon/internal/protocol"
	"github.com/agent-tmux-monitor/daemon/internal/registry"
	"github.com/agent-tmux-monitor/daemon/internal/session"
)

func defaultTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{
			SocketPath:     filepath.Join(dir, "atm.sock"),
			MaxConnections: 10,
		},
		Registry: registryDefaults(),
		Models:   map[string]int{"default": config.DefaultContextWindow},
		Discovery: config.DiscoveryConfig{
			Enabled: false,
		},
		Self: config.SelfConfig{
			MetricsInterval: time.Hour,
			MemoryWarnMiB:   100,
		},
	}
}

func registryDefaults() config.RegistryConfig {
	d := registry.DefaultConfig()
	return config.RegistryConfig{
		MaxSessions:      d.MaxSessions,
		StaleThreshold:   d.StaleThreshold,
		CleanupInterval:  d.CleanupInterval,
		MaxSessionAge:    d.MaxSessionAge,
		QueueCapacity:    d.CommandQueueSize,
		ToolHistoryLimit: d.ToolHistoryLimit,
	}
}

func TestBindSocketRemovesStaleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stale.sock")
	if err := os.WriteFile(path, []byte("not a socket"), 0o644); err != nil {
		t.Fatal(err)
	}

	ln, err := bindSocket(path)
	if err != nil {
		t.Fatalf("bindSocket() with stale file error = %v", err)
	}
	ln.Close()
}

func TestBindSocketRejectsLiveSocket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.sock")

	first, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()

	if _, err := bindSocket(path); err == nil {
		t.Error("bindSocket() on a live socket should fail")
	}
}

func TestRunAcceptsConnectionAndShutsDownCleanly(t *testing.T) {
	cfg := defaultTestConfig(t)
	reg := registry.New(registry.DefaultConfig())
	s := New(cfg, reg)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(runDone)
	}()

	var nc net.Conn
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var dialErr error
		nc, dialErr = net.Dial("unix", cfg.Server.SocketPath)
		if dialErr == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if nc == nil {
		t.Fatal("could not dial socket after Run started")
	}
	defer nc.Close()

	reader := bufio.NewReader(nc)
	send(t, nc, protocol.ClientMessage{Type: protocol.TypeConnect, ClientType: protocol.ClientCli})
	var reply protocol.DaemonMessage
	recv(t, reader, &reply)
	if reply.Type != protocol.TypeConnected || !reply.Accepted {
		t.Fatalf("handshake reply = %+v", reply)
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if _, err := os.Stat(cfg.Server.SocketPath); err == nil {
		t.Error("socket file still present after shutdown")
	}
}

func TestReloadAppliesRegistryCeilingsAndKeepsExistingSessions(t *testing.T) {
	cfg := defaultTestConfig(t)
	cfg.Registry.MaxSessions = 50
	reg := registry.New(registry.Config{
		MaxSessions:      50,
		StaleThreshold:   cfg.Registry.StaleThreshold,
		CleanupInterval:  cfg.Registry.CleanupInterval,
		MaxSessionAge:    cfg.Registry.MaxSessionAge,
		CommandQueueSize: registry.DefaultConfig().CommandQueueSize,
		ToolHistoryLimit: cfg.Registry.ToolHistoryLimit,
	})
	stop := make(chan struct{})
	go reg.Run(stop)
	defer close(stop)

	for _, d := range []*session.Domain{{ID: "a"}, {ID: "b"}, {ID: "c"}} {
		if err := reg.Register(d); err != nil {
			t.Fatal(err)
		}
	}

	s := New(cfg, reg)

	yamlPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(yamlPath, []byte("registry:\n  max_sessions: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Reload(yamlPath); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if s.cfg.Registry.MaxSessions != 2 {
		t.Errorf("cfg.Registry.MaxSessions after reload = %d, want 2", s.cfg.Registry.MaxSessions)
	}
	if got := len(reg.ListSessions()); got != 3 {
		t.Errorf("ListSessions() after reload = %d, want 3 (no eviction)", got)
	}
}

func TestReloadReturnsErrorOnMissingFile(t *testing.T) {
	cfg := defaultTestConfig(t)
	reg := registry.New(registry.DefaultConfig())
	s := New(cfg, reg)

	if err := s.Reload(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Reload() with a missing file should return an error")
	}
}

func send(t *testing.T, c net.Conn, m protocol.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	data = append(data, '\n')
	c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Write(data); err != nil {
		t.Fatal(err)
	}
}

func recv(t *testing.T, r *bufio.Reader, out *protocol.DaemonMessage) {
	t.Helper()
	line, err := r.ReadBytes('\n')
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(line, out); err != nil {
		t.Fatal(err)
	}
}
