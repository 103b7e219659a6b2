package protocol

import "fmt"

// Handshake validates a client's Connect message and produces the
// Connected reply. It does not touch the network; the connection handler
// calls it once per connection and then acts on Accepted.
func Handshake(connect ClientMessage) (DaemonMessage, bool) {
	if connect.Type != TypeConnect {
		return NewError(ErrHandshakeRequired, "first message must be connect"), false
	}
	clientVersion := CurrentVersion
	if connect.ProtocolVersion != nil {
		clientVersion = *connect.ProtocolVersion
	}
	if !CurrentVersion.Compatible(clientVersion) {
		return DaemonMessage{
			ProtocolVersion: &CurrentVersion,
			Type:            TypeConnected,
			Accepted:        false,
			Reason:          "incompatible",
		}, false
	}
	switch connect.ClientType {
	case ClientSession, ClientTui, ClientCli:
	default:
		return DaemonMessage{
			ProtocolVersion: &CurrentVersion,
			Type:            TypeConnected,
			Accepted:        false,
			Reason:          fmt.Sprintf("unknown client_type %q", connect.ClientType),
		}, false
	}
	return DaemonMessage{
		ProtocolVersion: &CurrentVersion,
		Type:            TypeConnected,
		Accepted:        true,
	}, true
}
