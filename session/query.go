package session

import (
	"context"
	"fmt"
	"time"

	"github.com/riftsql/mysql/protocol"
	"github.com/riftsql/mysql/wire"
)

// Query executes sql as one or more semicolon-separated statements using the
// text protocol (COM_QUERY) and returns one StatementResult per statement,
// in order. The session must advertise CLIENT_MULTI_STATEMENTS /
// CLIENT_MULTI_RESULTS for more than one statement to be accepted by the
// server; this client always does.
func (s *Session) Query(ctx context.Context, sql string) ([]StatementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, &ClientError{Op: "query", Err: ErrSessionClosed}
	}

	deadline := deadlineFromContext(ctx, s.cfg.Timeout)
	s.startCommand()
	if err := s.writePacketRaw(protocol.EncodeComQuery(sql), deadline); err != nil {
		s.forceClose(err)
		return nil, err
	}
	return s.readStatementResults(deadline)
}

// QueryNamed rewrites :name placeholders in sql to positional ?
// placeholders and, when the statement has any, runs it as a cached
// prepared statement with the corresponding arguments bound through the
// binary protocol (protocol.BoundParam), so values such as arbitrary binary
// blobs never pass through a quoted text literal. A statement with no
// :name placeholders runs as a plain COM_QUERY.
func (s *Session) QueryNamed(ctx context.Context, sql string, args map[string]any) ([]StatementResult, error) {
	rewritten, bound, err := rewriteNamedParams(sql, args)
	if err != nil {
		return nil, &ClientError{Op: "query named", Err: err}
	}
	if len(bound) == 0 {
		return s.Query(ctx, rewritten)
	}
	result, err := s.QueryPrepared(ctx, rewritten, bound...)
	if err != nil {
		return nil, err
	}
	return []StatementResult{result}, nil
}

// execSimple runs a single statement expected to return OK, not a result
// set, and returns the decoded OKPacket. It is used internally for
// connection-setup statements like SET NAMES.
func (s *Session) execSimple(sql string, deadline time.Time) (*protocol.OKPacket, error) {
	s.startCommand()
	if err := s.writePacketRaw(protocol.EncodeComQuery(sql), deadline); err != nil {
		return nil, err
	}
	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		return nil, err
	}
	switch protocol.ClassifyResponse(pkt.Payload) {
	case protocol.ResponseOK:
		return protocol.DecodeOK(pkt.Payload)
	case protocol.ResponseError:
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			return nil, &ProtocolError{Op: "decode error", Err: derr}
		}
		return nil, serverErrorFromPacket(ep)
	default:
		return nil, &ProtocolError{Op: "execSimple", Err: protocol.ErrUnexpectedPacket}
	}
}

// UseDatabase switches the session's default database with COM_INIT_DB,
// separate from the database named at connect time via Options.Database
// (which is selected during the handshake itself).
func (s *Session) UseDatabase(ctx context.Context, dbName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return &ClientError{Op: "use database", Err: ErrSessionClosed}
	}

	deadline := deadlineFromContext(ctx, s.cfg.Timeout)
	s.startCommand()
	if err := s.writePacketRaw(protocol.EncodeComInitDB(dbName), deadline); err != nil {
		s.forceClose(err)
		return err
	}
	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		s.forceClose(err)
		return err
	}
	switch protocol.ClassifyResponse(pkt.Payload) {
	case protocol.ResponseOK:
		s.cfg.Database = dbName
		return nil
	case protocol.ResponseError:
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			return &ProtocolError{Op: "decode error", Err: derr}
		}
		return serverErrorFromPacket(ep)
	default:
		return &ProtocolError{Op: "use database", Err: protocol.ErrUnexpectedPacket}
	}
}

// readStatementResults reads every statement's response in a (possibly
// multi-statement) COM_QUERY reply, following the SERVER_MORE_RESULTS_EXISTS
// status flag chain.
func (s *Session) readStatementResults(deadline time.Time) ([]StatementResult, error) {
	var results []StatementResult
	for {
		pkt, err := s.readPacketRaw(deadline)
		if err != nil {
			s.forceClose(err)
			return nil, err
		}

		switch protocol.ClassifyResponse(pkt.Payload) {
		case protocol.ResponseOK:
			ok, err := protocol.DecodeOK(pkt.Payload)
			if err != nil {
				perr := &ProtocolError{Op: "decode OK", Err: err}
				s.forceClose(perr)
				return nil, perr
			}
			status := okStatusFlags(pkt.Payload)
			results = append(results, &Result{AffectedRows: ok.AffectedRows, LastInsertID: ok.LastInsertID, Status: status})
			if !status.Has(protocol.ServerMoreResultsExists) {
				return results, nil
			}

		case protocol.ResponseError:
			ep, derr := protocol.DecodeError(pkt.Payload)
			if derr != nil {
				perr := &ProtocolError{Op: "decode error", Err: derr}
				s.forceClose(perr)
				return nil, perr
			}
			return results, serverErrorFromPacket(ep)

		default:
			count, err := protocol.ColumnCount(pkt.Payload)
			if err != nil {
				perr := &ProtocolError{Op: "decode column count", Err: err}
				s.forceClose(perr)
				return nil, perr
			}
			rs, more, err := s.readResultSet(int(count), deadline)
			if err != nil {
				return nil, err
			}
			results = append(results, rs)
			if !more {
				return results, nil
			}
		}
	}
}

// readResultSet reads columnCount column-definition packets, the EOF that
// terminates them, every row until the closing EOF, and reports whether the
// EOF's status flags indicate another statement's result follows.
func (s *Session) readResultSet(columnCount int, deadline time.Time) (*ResultSet, bool, error) {
	columns, err := s.readColumnDefinitions(columnCount, deadline)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.readEOF(deadline); err != nil {
		return nil, false, err
	}

	index := columnIndex(columns)
	rs := &ResultSet{Columns: columns}

	for {
		pkt, err := s.readPacketRaw(deadline)
		if err != nil {
			s.forceClose(err)
			return nil, false, err
		}
		switch protocol.ClassifyResponse(pkt.Payload) {
		case protocol.ResponseEOF:
			eof, err := protocol.DecodeEOF(pkt.Payload)
			if err != nil {
				perr := &ProtocolError{Op: "decode row EOF", Err: err}
				s.forceClose(perr)
				return nil, false, perr
			}
			rs.Warnings = eof.Warnings
			rs.Status = eof.StatusFlags
			return rs, eof.StatusFlags.Has(protocol.ServerMoreResultsExists), nil

		case protocol.ResponseError:
			ep, derr := protocol.DecodeError(pkt.Payload)
			if derr != nil {
				perr := &ProtocolError{Op: "decode row error", Err: derr}
				s.forceClose(perr)
				return nil, false, perr
			}
			return rs, false, serverErrorFromPacket(ep)

		default:
			raw, err := protocol.DecodeTextRow(pkt.Payload, columnCount)
			if err != nil {
				perr := &ProtocolError{Op: "decode text row", Err: err}
				s.forceClose(perr)
				return nil, false, perr
			}
			cells := make([]any, len(raw))
			for i, cell := range raw {
				if cell == nil {
					continue
				}
				if columns[i].ColumnShouldBeBinary() {
					cells[i] = append([]byte(nil), cell...)
				} else {
					cells[i] = string(cell)
				}
			}
			rs.Rows = append(rs.Rows, newRow(columns, index, cells))
		}
	}
}

func (s *Session) readColumnDefinitions(count int, deadline time.Time) ([]*protocol.ColumnDefinition, error) {
	columns := make([]*protocol.ColumnDefinition, count)
	for i := 0; i < count; i++ {
		pkt, err := s.readPacketRaw(deadline)
		if err != nil {
			s.forceClose(err)
			return nil, err
		}
		col, err := protocol.DecodeColumnDefinition(pkt.Payload)
		if err != nil {
			perr := &ProtocolError{Op: "decode column definition", Err: err}
			s.forceClose(perr)
			return nil, perr
		}
		columns[i] = col
	}
	return columns, nil
}

func (s *Session) readEOF(deadline time.Time) (*protocol.EOFPacket, error) {
	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		s.forceClose(err)
		return nil, err
	}
	if protocol.ClassifyResponse(pkt.Payload) == protocol.ResponseError {
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			perr := &ProtocolError{Op: "decode error", Err: derr}
			s.forceClose(perr)
			return nil, perr
		}
		return nil, serverErrorFromPacket(ep)
	}
	eof, err := protocol.DecodeEOF(pkt.Payload)
	if err != nil {
		perr := &ProtocolError{Op: "decode EOF", Err: fmt.Errorf("expected EOF after column definitions: %w", err)}
		s.forceClose(perr)
		return nil, perr
	}
	return eof, nil
}

// okStatusFlags pulls the status-flags field out of an OK packet payload
// without a full decode: tag(1) + affected_rows(lenenc) + last_insert_id
// (lenenc) + status_flags:u16.
func okStatusFlags(payload []byte) protocol.StatusFlag {
	pos := 1
	_, _, n, ok := wire.ReadLengthEncodedInteger(payload[pos:])
	if !ok {
		return 0
	}
	pos += n
	_, _, n, ok = wire.ReadLengthEncodedInteger(payload[pos:])
	if !ok {
		return 0
	}
	pos += n
	if len(payload) < pos+2 {
		return 0
	}
	return protocol.StatusFlag(wire.Uint16(payload[pos : pos+2]))
}
