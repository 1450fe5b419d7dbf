package session

import (
	"context"
	"time"

	"github.com/riftsql/mysql/protocol"
)

// PreparedStatement is a server-side prepared statement bound to one
// Session. It is not safe for concurrent use.
type PreparedStatement struct {
	s          *Session
	sql        string
	stmtID     uint32
	paramCount int
	columns    []*protocol.ColumnDefinition
	closed     bool
}

// SQL returns the text the statement was prepared from.
func (p *PreparedStatement) SQL() string { return p.sql }

// ParamCount returns the number of parameters the server reported.
func (p *PreparedStatement) ParamCount() int { return p.paramCount }

// Prepare sends COM_STMT_PREPARE for sql and returns the resulting
// statement.
func (s *Session) Prepare(ctx context.Context, sql string) (*PreparedStatement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, &ClientError{Op: "prepare", Err: ErrSessionClosed}
	}
	deadline := deadlineFromContext(ctx, s.cfg.Timeout)
	return s.prepareLocked(sql, deadline)
}

func (s *Session) prepareLocked(sql string, deadline time.Time) (*PreparedStatement, error) {
	s.startCommand()
	if err := s.writePacketRaw(protocol.EncodeComStmtPrepare(sql), deadline); err != nil {
		s.forceClose(err)
		return nil, err
	}

	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		s.forceClose(err)
		return nil, err
	}
	if protocol.ClassifyResponse(pkt.Payload) == protocol.ResponseError {
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			perr := &ProtocolError{Op: "decode prepare error", Err: derr}
			s.forceClose(perr)
			return nil, perr
		}
		return nil, serverErrorFromPacket(ep)
	}

	ok, err := protocol.DecodePrepareOK(pkt.Payload)
	if err != nil {
		perr := &ProtocolError{Op: "decode prepare OK", Err: err}
		s.forceClose(perr)
		return nil, perr
	}

	stmt := &PreparedStatement{s: s, sql: sql, stmtID: ok.StatementID, paramCount: int(ok.ParamCount)}

	if ok.ParamCount > 0 {
		if _, err := s.readColumnDefinitions(int(ok.ParamCount), deadline); err != nil {
			return nil, err
		}
		if _, err := s.readEOF(deadline); err != nil {
			return nil, err
		}
	}
	if ok.ColumnCount > 0 {
		cols, err := s.readColumnDefinitions(int(ok.ColumnCount), deadline)
		if err != nil {
			return nil, err
		}
		if _, err := s.readEOF(deadline); err != nil {
			return nil, err
		}
		stmt.columns = cols
	}

	return stmt, nil
}

// Execute binds params positionally and runs COM_STMT_EXECUTE, returning
// the resulting StatementResult.
func (p *PreparedStatement) Execute(ctx context.Context, params ...any) (StatementResult, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.closed {
		return nil, &ClientError{Op: "execute", Err: ErrStatementClosed}
	}
	if p.s.state == StateClosed {
		return nil, &ClientError{Op: "execute", Err: ErrSessionClosed}
	}
	if len(params) != p.paramCount {
		return nil, &ClientError{Op: "execute", Err: ErrArityMismatch}
	}

	bound := make([]protocol.BoundParam, len(params))
	for i, v := range params {
		bp, err := protocol.InferParamType(v)
		if err != nil {
			return nil, &ClientError{Op: "execute", Err: err}
		}
		bound[i] = bp
	}

	deadline := deadlineFromContext(ctx, p.s.cfg.Timeout)
	p.s.startCommand()
	if err := p.s.writePacketRaw(protocol.EncodeComStmtExecute(p.stmtID, bound), deadline); err != nil {
		p.s.forceClose(err)
		return nil, err
	}

	pkt, err := p.s.readPacketRaw(deadline)
	if err != nil {
		p.s.forceClose(err)
		return nil, err
	}

	switch protocol.ClassifyResponse(pkt.Payload) {
	case protocol.ResponseOK:
		ok, err := protocol.DecodeOK(pkt.Payload)
		if err != nil {
			perr := &ProtocolError{Op: "decode execute OK", Err: err}
			p.s.forceClose(perr)
			return nil, perr
		}
		return &Result{AffectedRows: ok.AffectedRows, LastInsertID: ok.LastInsertID, Status: okStatusFlags(pkt.Payload)}, nil

	case protocol.ResponseError:
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			perr := &ProtocolError{Op: "decode execute error", Err: derr}
			p.s.forceClose(perr)
			return nil, perr
		}
		return nil, serverErrorFromPacket(ep)

	default:
		count, err := protocol.ColumnCount(pkt.Payload)
		if err != nil {
			perr := &ProtocolError{Op: "decode execute column count", Err: err}
			p.s.forceClose(perr)
			return nil, perr
		}
		return p.readBinaryResultSet(int(count), deadline)
	}
}

func (p *PreparedStatement) readBinaryResultSet(columnCount int, deadline time.Time) (*ResultSet, error) {
	columns, err := p.s.readColumnDefinitions(columnCount, deadline)
	if err != nil {
		return nil, err
	}
	if _, err := p.s.readEOF(deadline); err != nil {
		return nil, err
	}

	index := columnIndex(columns)
	rs := &ResultSet{Columns: columns}

	for {
		pkt, err := p.s.readPacketRaw(deadline)
		if err != nil {
			p.s.forceClose(err)
			return nil, err
		}
		if len(pkt.Payload) > 0 && pkt.Payload[0] == 0xfe && len(pkt.Payload) < 9 {
			eof, err := protocol.DecodeEOF(pkt.Payload)
			if err != nil {
				perr := &ProtocolError{Op: "decode binary row EOF", Err: err}
				p.s.forceClose(perr)
				return nil, perr
			}
			rs.Warnings = eof.Warnings
			rs.Status = eof.StatusFlags
			return rs, nil
		}
		if len(pkt.Payload) > 0 && pkt.Payload[0] == 0xff {
			ep, derr := protocol.DecodeError(pkt.Payload)
			if derr != nil {
				perr := &ProtocolError{Op: "decode binary row error", Err: derr}
				p.s.forceClose(perr)
				return nil, perr
			}
			return rs, serverErrorFromPacket(ep)
		}
		if len(pkt.Payload) == 0 || pkt.Payload[0] != protocol.BinaryRowTag {
			perr := &ProtocolError{Op: "decode binary row", Err: protocol.ErrUnexpectedPacket}
			p.s.forceClose(perr)
			return nil, perr
		}
		cells, err := protocol.DecodeBinaryRow(pkt.Payload[1:], columns)
		if err != nil {
			perr := &ProtocolError{Op: "decode binary row", Err: err}
			p.s.forceClose(perr)
			return nil, perr
		}
		rs.Rows = append(rs.Rows, newRow(columns, index, cells))
	}
}

// Close sends COM_STMT_CLOSE, which the server never acknowledges.
func (p *PreparedStatement) Close() error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.s.state == StateClosed {
		return nil
	}
	p.s.startCommand()
	return p.s.writePacketRaw(protocol.EncodeComStmtClose(p.stmtID), p.s.commandDeadline())
}
