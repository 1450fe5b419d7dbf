package mysql

import "github.com/riftsql/mysql/session"

// Re-exported for callers that only import the root package: the error
// taxonomy itself lives in session, since the session state machine is what
// produces it.
type (
	ClientError   = session.ClientError
	ServerError   = session.ServerError
	ProtocolError = session.ProtocolError
)
