package session

import (
	"errors"
	"fmt"

	"github.com/riftsql/mysql/protocol"
)

// ClientError reports misuse of the API or an unmet environmental
// precondition: bad arguments, a closed session, a DSN the server refused
// because of a client-side capability gap. The session survives a
// ClientError unless it is returned alongside a force-close.
type ClientError struct {
	Op  string
	Err error
}

func (e *ClientError) Error() string { return fmt.Sprintf("mysql: %s: %v", e.Op, e.Err) }
func (e *ClientError) Unwrap() error { return e.Err }

// ServerError wraps a MySQL ERR_Packet. It is non-fatal: the session that
// produced it remains usable for the next command.
type ServerError struct {
	Code    uint16
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("mysql: server error %d: %s", e.Code, e.Message)
}

func serverErrorFromPacket(p *protocol.ErrorPacket) *ServerError {
	return &ServerError{Code: p.Code, Message: p.Message}
}

// ProtocolError indicates the wire stream could not be parsed or violated an
// invariant the client relies on (framing, an unexpected response tag, a
// handshake the client cannot continue). It is always fatal: the session
// that produced it force-closes the socket and refuses further commands.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("mysql: protocol error: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrSessionClosed is returned by any command issued after the session has
// force-closed or after Quit, wrapped in a ClientError.
var ErrSessionClosed = errors.New("session is closed")

// ErrNestedTransaction is returned when Begin is called while the session is
// already inside a transaction.
var ErrNestedTransaction = errors.New("transaction already in progress")

// ErrNoTransaction is returned by Commit/Rollback outside a transaction.
var ErrNoTransaction = errors.New("no transaction in progress")

// ErrStatementClosed is returned by operations on a PreparedStatement after
// Close has been called on it.
var ErrStatementClosed = errors.New("prepared statement is closed")

// ErrArityMismatch is returned when the number of bound parameters does not
// match a prepared statement's declared parameter count.
var ErrArityMismatch = errors.New("parameter count does not match statement arity")
