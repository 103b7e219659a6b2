//go:build !linux

package connection

import "net"

// peerPID has no portable non-Linux implementation here; SO_PEERCRED is a
// Linux-ism (BSDs use LOCAL_PEERCRED / getpeereid, which this daemon does
// not target). A StatusUpdate on these platforms is keyed purely by
// session id, same as a pid-less one on Linux.
func peerPID(nc net.Conn) (int, bool) {
	return 0, false
}
