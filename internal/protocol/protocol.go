// Package protocol implements the daemon's wire format: line-delimited
// UTF-8 JSON, one message per line, every message tagged with a "type"
// field. Version negotiation happens once, at handshake; after that the
// connection remembers the negotiated version and omits it from
// subsequent messages.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is a protocol_version{major,minor} pair.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// CurrentVersion is the version this daemon speaks.
var CurrentVersion = Version{Major: 1, Minor: 0}

// Compatible reports whether a client's requested version can be served
// by this daemon: same major, and the daemon's minor is at least the
// client's minor (the daemon is always a superset of older minors).
func (v Version) Compatible(client Version) bool {
	return v.Major == client.Major && v.Minor >= client.Minor
}

// ClientType enumerates the client_type values the handshake accepts.
type ClientType string

const (
	ClientSession ClientType = "session"
	ClientTui     ClientType = "tui"
	ClientCli     ClientType = "cli"
)

// MessageType tags every envelope.
type MessageType string

const (
	TypeConnect       MessageType = "connect"
	TypeStatusUpdate  MessageType = "status_update"
	TypeHookEvent     MessageType = "hook_event"
	TypeListSessions  MessageType = "list_sessions"
	TypeGetSession    MessageType = "get_session"
	TypeSubscribe     MessageType = "subscribe"
	TypeUnsubscribe   MessageType = "unsubscribe"
	TypeDiscover      MessageType = "discover"
	TypePing          MessageType = "ping"
	TypeDisconnect    MessageType = "disconnect"

	TypeConnected      MessageType = "connected"
	TypeOk             MessageType = "ok"
	TypeError          MessageType = "error"
	TypeSession        MessageType = "session"
	TypeSessionList    MessageType = "session_list"
	TypeSessionUpdated MessageType = "session_updated"
	TypeSessionRemoved MessageType = "session_removed"
	TypePong           MessageType = "pong"
)

// ErrorCode enumerates the stable error codes from §7.
type ErrorCode string

const (
	ErrRegistryFull      ErrorCode = "registry_full"
	ErrSessionNotFound   ErrorCode = "session_not_found"
	ErrSessionExists     ErrorCode = "session_exists"
	ErrProtocolMismatch  ErrorCode = "protocol_mismatch"
	ErrHandshakeRequired ErrorCode = "handshake_required"
	ErrMessageTooLarge   ErrorCode = "message_too_large"
	ErrMalformed         ErrorCode = "malformed"
	ErrTooManyClients    ErrorCode = "too_many_clients"
	ErrInternal          ErrorCode = "internal"
)

// ClientMessage is the flat envelope for every client -> daemon message.
// Only the fields relevant to Type are populated; the rest are their zero
// value and omitted from the wire via omitempty.
type ClientMessage struct {
	ProtocolVersion *Version    `json:"protocol_version,omitempty"`
	Type            MessageType `json:"type"`

	// connect
	ClientID   string     `json:"client_id,omitempty"`
	ClientType ClientType `json:"client_type,omitempty"`

	// status_update / hook_event
	Data json.RawMessage `json:"data,omitempty"`

	// get_session
	ID string `json:"id,omitempty"`

	// subscribe
	Filter string `json:"filter,omitempty"`

	// ping
	Seq int64 `json:"seq,omitempty"`
}

// DaemonMessage is the flat envelope for every daemon -> client message.
type DaemonMessage struct {
	ProtocolVersion *Version    `json:"protocol_version,omitempty"`
	Type            MessageType `json:"type"`

	// connected
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`

	// error
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`

	// session / session_updated
	Session any `json:"session,omitempty"`

	// session_list
	Sessions any `json:"sessions,omitempty"`

	// session_removed
	RemovedID string `json:"id,omitempty"`

	// pong
	Seq int64 `json:"seq,omitempty"`
}

// DecodeClientMessage parses one line of client input. The caller is
// responsible for enforcing the size limit before calling this.
func DecodeClientMessage(line []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(line, &m); err != nil {
		return ClientMessage{}, fmt.Errorf("protocol: malformed message: %w", err)
	}
	if m.Type == "" {
		return ClientMessage{}, fmt.Errorf("protocol: message missing type")
	}
	return m, nil
}

// EncodeDaemonMessage serializes a daemon message with a trailing newline,
// ready to write directly to a connection.
func EncodeDaemonMessage(m DaemonMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode failed: %w", err)
	}
	return append(data, '\n'), nil
}

// NewError builds an Error reply.
func NewError(code ErrorCode, message string) DaemonMessage {
	return DaemonMessage{Type: TypeError, Code: code, Message: message}
}

// NewOk builds a bare Ok reply.
func NewOk() DaemonMessage {
	return DaemonMessage{Type: TypeOk}
}
