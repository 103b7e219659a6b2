// Package server owns the daemon's process lifecycle: the Unix domain
// socket listener and its admission control, the registry actor's cleanup
// ticker, the self-metrics sampler, optional startup discovery, and
// configuration reload. It is the composition root the rest of the daemon
// is wired from; cmd/atmd only constructs a Server and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/agent-tmux-monitor/daemon/internal/config"
	"github.com/agent-tmux-monitor/daemon/internal/connection"
	"github.com/agent-tmux-monitor/daemon/internal/discovery"
	"github.com/agent-tmux-monitor/daemon/internal/paneresolve"
	"github.com/agent-tmux-monitor/daemon/internal/protocol"
	"github.com/agent-tmux-monitor/daemon/internal/registry"
	"github.com/agent-tmux-monitor/daemon/internal/selfmetrics"
)

// acceptBackoff is how long the accept loop sleeps after a transient accept
// error before retrying, so a persistent error can't spin the CPU.
const acceptBackoff = 100 * time.Millisecond

// shutdownDrainTimeout bounds how long Run waits for live connections to
// close on their own (each reacting to ctx cancellation by closing its
// socket) before it proceeds to stop the registry anyway. A client that
// ignores its closed socket must not wedge the daemon's shutdown forever.
const shutdownDrainTimeout = 5 * time.Second

// Server binds the daemon's Unix socket and drives every connection
// accepted on it through the registry.
type Server struct {
	cfg *config.Config
	reg *registry.Registry

	sem *semaphore.Weighted

	panes *paneresolve.Resolver

	reconfigureMu sync.Mutex
}

// New constructs a Server bound to reg. Call Run to bind the socket and
// start serving.
func New(cfg *config.Config, reg *registry.Registry) *Server {
	return &Server{
		cfg:   cfg,
		reg:   reg,
		sem:   semaphore.NewWeighted(int64(cfg.Server.MaxConnections)),
		panes: paneresolve.New(),
	}
}

// Run binds the socket, launches the background tickers, and serves
// connections until ctx is canceled. It always removes the socket file on
// the way out.
func (s *Server) Run(ctx context.Context) error {
	ln, err := bindSocket(s.cfg.Server.SocketPath)
	if err != nil {
		return fmt.Errorf("server: bind socket: %w", err)
	}
	defer os.Remove(s.cfg.Server.SocketPath)
	defer ln.Close()

	var wg sync.WaitGroup

	registryStop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.reg.Run(registryStop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runCleanupTicker(ctx)
	}()

	if sampler, err := selfmetrics.New(s.cfg.Self.MetricsInterval, s.cfg.Self.MemoryWarnMiB); err != nil {
		log.Printf("server: self-metrics sampler disabled: %v", err)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sampler.Run(ctx)
		}()
	}

	if s.cfg.Discovery.Enabled {
		s.runStartupDiscovery()
	}

	connDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx, ln)
		close(connDone)
	}()

	<-ctx.Done()
	ln.Close()
	select {
	case <-connDone:
	case <-time.After(shutdownDrainTimeout):
		log.Printf("server: %s elapsed waiting for connections to close, shutting down anyway", shutdownDrainTimeout)
	}
	close(registryStop)
	wg.Wait()
	return nil
}

// bindSocket listens on path, removing a stale socket file left behind by a
// prior crashed instance. If the path is already bound by a live listener,
// connecting to it first would tell us so; here we take the simpler route
// used by most Unix-socket daemons: attempt a dial, and only remove the
// file when nothing answers.
func bindSocket(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if conn, dialErr := net.Dial("unix", path); dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("socket %s already in use by a running daemon", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("removing stale socket: %w", err)
		}
	}
	return net.Listen("unix", path)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	var conns sync.WaitGroup
	defer conns.Wait()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("server: accept error: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}

		if !s.sem.TryAcquire(1) {
			rejectTooManyClients(nc)
			continue
		}

		conns.Add(1)
		go func() {
			defer conns.Done()
			defer s.sem.Release(1)
			connection.New(ctx, nc, s.reg).Serve()
		}()
	}
}

func (s *Server) runCleanupTicker(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Registry.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.reg.CleanupStale(); n > 0 {
				log.Printf("server: cleanup swept %d stale sessions", n)
			}
		}
	}
}

func (s *Server) runStartupDiscovery() {
	candidates, err := discovery.Scan(s.cfg.Discovery.ExecutableNames)
	if err != nil {
		log.Printf("server: startup discovery failed: %v", err)
		return
	}
	if len(candidates) == 0 {
		return
	}
	found := make([]registry.DiscoveredSession, 0, len(candidates))
	for _, c := range candidates {
		ds := registry.DiscoveredSession{PID: c.PID, Cwd: c.WorkingDir}
		if pane, ok := s.panes.Resolve(c.PID); ok {
			ds.Pane = pane
		}
		found = append(found, ds)
	}
	n := s.reg.Discover(found)
	log.Printf("server: startup discovery found %d candidate(s), %d new placeholder(s)", len(candidates), n)
}

// Reload re-reads the YAML config at path, logs what changed via
// config.Diff, and applies the reloadable fields to the registry. Load
// errors are returned so the caller can log and keep running on the prior
// configuration, per the daemon's reload error handling.
func (s *Server) Reload(path string) error {
	s.reconfigureMu.Lock()
	defer s.reconfigureMu.Unlock()

	next, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("server: reload: %w", err)
	}

	changes := config.Diff(s.cfg, next)
	for _, c := range changes {
		log.Printf("server: config reload: %s", c)
	}
	if len(changes) == 0 {
		log.Print("server: config reload: no reloadable changes")
	}

	s.reg.UpdateConfig(registry.Config{
		MaxSessions:      next.Registry.MaxSessions,
		StaleThreshold:   next.Registry.StaleThreshold,
		CleanupInterval:  next.Registry.CleanupInterval,
		MaxSessionAge:    next.Registry.MaxSessionAge,
		ToolHistoryLimit: next.Registry.ToolHistoryLimit,
	})
	s.cfg = next
	return nil
}

func rejectTooManyClients(nc net.Conn) {
	defer nc.Close()
	data, err := protocol.EncodeDaemonMessage(protocol.NewError(protocol.ErrTooManyClients, "too many clients"))
	if err != nil {
		return
	}
	nc.SetWriteDeadline(time.Now().Add(2 * time.Second))
	nc.Write(data)
}
