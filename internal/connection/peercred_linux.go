//go:build linux

package connection

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerPID asks the kernel for the PID on the other end of a Unix domain
// socket via SO_PEERCRED. This is how a StatusUpdate gets reconciled
// against the pid a discovery placeholder was seeded with (§4.5) without
// the agent having to self-report its own pid on the wire. Any failure
// (not a Unix socket, credentials unavailable) degrades to "unknown",
// which is handled the same as a status line from a non-OS client: keyed
// purely by session id.
func peerPID(nc net.Conn) (int, bool) {
	uc, ok := nc.(*net.UnixConn)
	if !ok {
		return 0, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var pid int
	var found bool
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			return
		}
		pid = int(cred.Pid)
		found = true
	})
	if ctrlErr != nil {
		return 0, false
	}
	return pid, found
}
