//go:build linux

package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
	"github.com/agent-tmux-monitor/daemon/internal/protocol"
)

// TestStatusUpdateOverUnixSocketCapturesPeerPID exercises the real
// SO_PEERCRED path: net.Pipe has no underlying socket, so the other tests
// never touch peerPID. Here both ends of an actual Unix domain socket live
// in this test process, so the kernel-reported peer pid must equal our own.
func TestStatusUpdateOverUnixSocketCapturesPeerPID(t *testing.T) {
	reg := newTestRegistry(t)
	sockPath := filepath.Join(t.TempDir(), "atm-test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	acceptedCh := make(chan net.Conn, 1)
	go func() {
		nc, err := ln.Accept()
		if err == nil {
			acceptedCh <- nc
		}
	}()

	client, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	server := <-acceptedCh

	go New(context.Background(), server, reg).Serve()
	clientReader := bufio.NewReader(client)

	write(t, client, protocol.ClientMessage{
		ProtocolVersion: &protocol.Version{Major: 1, Minor: 0},
		Type:            protocol.TypeConnect,
		ClientID:        "test",
		ClientType:      protocol.ClientSession,
	})
	var connected protocol.DaemonMessage
	readInto(t, clientReader, &connected)
	if !connected.Accepted {
		t.Fatalf("handshake rejected: %+v", connected)
	}

	statusData, err := json.Marshal(map[string]any{"session_id": "peer-pid-test"})
	if err != nil {
		t.Fatal(err)
	}
	write(t, client, protocol.ClientMessage{Type: protocol.TypeStatusUpdate, Data: statusData})
	var ok protocol.DaemonMessage
	readInto(t, clientReader, &ok)
	if ok.Type != protocol.TypeOk {
		t.Fatalf("status_update reply = %+v", ok)
	}

	view, found := reg.GetSession(domain.SessionId("peer-pid-test"))
	if !found {
		t.Fatal("session not found after status update")
	}
	if view.PID != os.Getpid() {
		t.Errorf("view.PID = %d, want %d (this process's own pid via SO_PEERCRED)", view.PID, os.Getpid())
	}
}
