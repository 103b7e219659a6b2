// Package connection implements the per-connection state machine described
// in §4.7: one goroutine owns the read half, a send-mutex guards the write
// half (shared between replies to client commands and broadcast delivery),
// and the connection moves through AwaitingHello -> Connected ->
// Dispatching/Subscribed -> Closed.
package connection

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/protocol"
	"github.com/agent-tmux-monitor/daemon/internal/rawproto"
	"github.com/agent-tmux-monitor/daemon/internal/registry"
)

// HandshakeTimeout is how long a connection may sit in AwaitingHello
// before it is closed.
const HandshakeTimeout = 5 * time.Second

// IdleTimeout closes a connection that sends nothing for this long.
const IdleTimeout = 5 * time.Minute

// State names the connection's position in the §4.7 state machine.
type State int

const (
	StateAwaitingHello State = iota
	StateConnected
	StateSubscribed
	StateClosed
)

// Conn drives one accepted connection end to end: handshake, dispatch
// loop, and broadcast forwarding while subscribed.
type Conn struct {
	nc  net.Conn
	reg *registry.Registry

	writeMu sync.Mutex
	state   State

	negotiated protocol.Version
	clientType protocol.ClientType

	sub *registry.Subscriber

	pid int // peer pid from SO_PEERCRED, 0 if unavailable

	done chan struct{}
}

// New wraps an accepted net.Conn. Call Serve to run its lifecycle; Serve
// blocks until the connection closes. ctx is the server's shutdown handle:
// a goroutine watches it for the lifetime of the connection and closes nc
// the moment it fires, which unblocks whatever read Serve/dispatchLoop is
// currently sitting in -- the same way every other long-running task in
// this daemon reacts to shutdown, just applied to a blocking syscall
// instead of a select loop.
func New(ctx context.Context, nc net.Conn, reg *registry.Registry) *Conn {
	pid, _ := peerPID(nc)
	c := &Conn{nc: nc, reg: reg, state: StateAwaitingHello, pid: pid, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			nc.Close()
		case <-c.done:
		}
	}()
	return c
}

// Done is closed once the connection has fully shut down. The server uses
// it to know when it is safe to stop waiting on a connection during
// graceful shutdown.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Serve runs the handshake and then the dispatch loop. It always closes
// the underlying connection before returning.
func (c *Conn) Serve() {
	defer c.close()

	c.nc.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	reader := bufio.NewReaderSize(c.nc, 64*1024)
	line, err := readLine(reader)
	if err != nil {
		return
	}
	if err := rawproto.CheckSize(line); err != nil {
		c.writeDaemon(protocol.NewError(protocol.ErrMessageTooLarge, err.Error()))
		return
	}
	msg, err := protocol.DecodeClientMessage(line)
	if err != nil {
		c.writeDaemon(protocol.NewError(protocol.ErrMalformed, err.Error()))
		return
	}
	reply, ok := protocol.Handshake(msg)
	c.writeDaemon(reply)
	if !ok {
		return
	}
	c.negotiated = protocol.CurrentVersion
	if msg.ProtocolVersion != nil {
		c.negotiated = *msg.ProtocolVersion
	}
	c.clientType = msg.ClientType
	c.state = StateConnected

	c.dispatchLoop(reader)
}

// dispatchLoop reads one message at a time, forwarding it to the registry
// and writing the reply, until EOF, an error, or Unsubscribe/Disconnect.
// While c.sub is non-nil, a second goroutine is simultaneously forwarding
// broadcast events to the same write half; writeDaemon's mutex keeps the
// two interleavings from corrupting a frame.
func (c *Conn) dispatchLoop(reader *bufio.Reader) {
	for {
		c.nc.SetReadDeadline(time.Now().Add(IdleTimeout))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		if err := rawproto.CheckSize(line); err != nil {
			c.writeDaemon(protocol.NewError(protocol.ErrMessageTooLarge, err.Error()))
			return
		}
		msg, err := protocol.DecodeClientMessage(line)
		if err != nil {
			c.writeDaemon(protocol.NewError(protocol.ErrMalformed, err.Error()))
			continue
		}
		if msg.Type == protocol.TypeDisconnect {
			return
		}
		reply := c.handle(msg)
		if !c.writeDaemon(reply) {
			return
		}
		if msg.Type == protocol.TypeUnsubscribe {
			return
		}
	}
}

func (c *Conn) handle(msg protocol.ClientMessage) protocol.DaemonMessage {
	switch msg.Type {
	case protocol.TypeStatusUpdate:
		return c.handleStatusUpdate(msg)
	case protocol.TypeHookEvent:
		return c.handleHookEvent(msg)
	case protocol.TypeListSessions:
		views := c.reg.ListSessions()
		return protocol.DaemonMessage{Type: protocol.TypeSessionList, Sessions: views}
	case protocol.TypeGetSession:
		v, ok := c.reg.GetSession(domain.SessionId(msg.ID))
		if !ok {
			return protocol.NewError(protocol.ErrSessionNotFound, "no such session")
		}
		return protocol.DaemonMessage{Type: protocol.TypeSession, Session: v}
	case protocol.TypeSubscribe:
		if c.sub != nil {
			c.reg.Unsubscribe(c.sub)
		}
		c.sub = c.reg.Subscribe(domain.SessionId(msg.Filter))
		c.state = StateSubscribed
		go c.forwardEvents(c.sub)
		return protocol.NewOk()
	case protocol.TypeUnsubscribe:
		if c.sub != nil {
			c.reg.Unsubscribe(c.sub)
			c.sub = nil
			c.state = StateConnected
		}
		return protocol.NewOk()
	case protocol.TypeDiscover:
		return protocol.NewOk()
	case protocol.TypePing:
		return protocol.DaemonMessage{Type: protocol.TypePong, Seq: msg.Seq}
	default:
		return protocol.NewError(protocol.ErrMalformed, "unrecognized message type")
	}
}

func (c *Conn) handleStatusUpdate(msg protocol.ClientMessage) protocol.DaemonMessage {
	if err := rawproto.CheckSize(msg.Data); err != nil {
		return protocol.NewError(protocol.ErrMessageTooLarge, err.Error())
	}
	sl, err := rawproto.ParseStatusLine(msg.Data)
	if err != nil {
		return protocol.NewError(protocol.ErrMalformed, err.Error())
	}
	if err := c.reg.UpsertFromStatus(sl, c.pid); err != nil {
		return errorReply(err)
	}
	return protocol.NewOk()
}

func (c *Conn) handleHookEvent(msg protocol.ClientMessage) protocol.DaemonMessage {
	he, err := rawproto.ParseHookEvent(msg.Data)
	if err != nil {
		return protocol.NewError(protocol.ErrMalformed, err.Error())
	}
	if err := c.reg.ApplyHookEvent(he); err != nil {
		return errorReply(err)
	}
	return protocol.NewOk()
}

func errorReply(err error) protocol.DaemonMessage {
	switch {
	case errors.Is(err, registry.ErrRegistryFull):
		return protocol.NewError(protocol.ErrRegistryFull, err.Error())
	case errors.Is(err, registry.ErrSessionNotFound):
		return protocol.NewError(protocol.ErrSessionNotFound, err.Error())
	case errors.Is(err, registry.ErrSessionExists):
		return protocol.NewError(protocol.ErrSessionExists, err.Error())
	default:
		return protocol.NewError(protocol.ErrInternal, err.Error())
	}
}

// forwardEvents runs in its own goroutine for the lifetime of a
// subscription, translating registry events into daemon messages. It exits
// when the subscriber's channel is closed (on Unsubscribe or connection
// close) or when a write fails.
func (c *Conn) forwardEvents(sub *registry.Subscriber) {
	for ev := range sub.Events() {
		var m protocol.DaemonMessage
		switch ev.Kind {
		case registry.EventRegistered, registry.EventUpdated:
			m = protocol.DaemonMessage{Type: protocol.TypeSessionUpdated, Session: ev.View}
		case registry.EventRemoved:
			m = protocol.DaemonMessage{Type: protocol.TypeSessionRemoved, RemovedID: string(ev.ID), Reason: ev.Reason.String()}
		}
		if !c.writeDaemon(m) {
			return
		}
	}
}

// writeDaemon serializes and writes one message under the send-mutex.
// Returns false if the write failed, signalling the caller to close up.
func (c *Conn) writeDaemon(m protocol.DaemonMessage) bool {
	data, err := protocol.EncodeDaemonMessage(m)
	if err != nil {
		log.Printf("connection: encode failed: %v", err)
		return false
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.nc.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err = c.nc.Write(data)
	return err == nil
}

func (c *Conn) close() {
	c.state = StateClosed
	if c.sub != nil {
		c.reg.Unsubscribe(c.sub)
	}
	c.nc.Close()
	close(c.done)
}

// readLine reads one \n-terminated line, trimming the delimiter. It
// tolerates a final line with no trailing newline (EOF right after data)
// the same way bufio.Scanner does, by treating io.EOF with a non-empty
// partial read as a successful last line; any read error with no data is
// propagated.
func readLine(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return line[:len(line)-1], nil
}
