package server

import "github.com/mr-karan/rosterdb/pkg/proto"

// connState is the per-peer FSM state.
type connState uint8

const (
	// stateAwaitingHello is the state right after accept; only a HelloReq
	// with a matching protocol version is valid here.
	stateAwaitingHello connState = iota

	// stateReady accepts request messages after a successful hello.
	stateReady

	// stateClosed marks the connection for removal from the table.
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingHello:
		return "AwaitingHello"
	case stateReady:
		return "Ready"
	case stateClosed:
		return "Closed"
	}
	return "Unknown"
}

// conn tracks one accepted peer: its socket, FSM state and the reassembly
// buffer for the in-flight message.
type conn struct {
	fd    int
	state connState

	buf [proto.MaxMessageSize]byte
	pos int // write cursor into buf

	// expected caches the total length of the in-flight message once its
	// 6-byte header has arrived; 0 while the header is still incomplete.
	expected int
}
