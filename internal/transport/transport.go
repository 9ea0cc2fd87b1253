// Package transport moves protocol messages over a connection.
//
// A Conn exchanges one protocol.Message per line (TCP) or per text frame
// (WebSocket).  A Listener hands out accepted Conns.  Receive errors come in
// two kinds: recoverable parse failures (protocol.ErrEmpty and
// protocol.ErrMalformed), after which the connection is still usable, and
// everything else, which means the peer is gone.
package transport

import (
	"errors"

	"roomchat/internal/protocol"
)

// MaxLineBytes caps one inbound line or frame.  Anything larger is treated
// as a broken connection, not as a long message.
const MaxLineBytes = 64 * 1024

// ErrClosed wraps every fatal transport failure.
var ErrClosed = errors.New("transport: connection closed")

// Conn is one client connection.
type Conn interface {
	// Send writes msg.  Any error means the connection is unusable.
	Send(msg protocol.Message) error
	// Receive blocks for the next message.
	Receive() (protocol.Message, error)
	Close() error
	RemoteAddr() string
}

// Listener accepts client connections.
type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() string
}

// IsRecoverable reports whether err came from a message that failed to parse
// on an otherwise healthy connection.
func IsRecoverable(err error) bool {
	return errors.Is(err, protocol.ErrEmpty) || errors.Is(err, protocol.ErrMalformed)
}
