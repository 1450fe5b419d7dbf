package protocol

import (
	"github.com/riftsql/mysql/wire"
)

// ResponseKind classifies the first byte of a generic server response
// packet, dispatch table.
type ResponseKind int

const (
	ResponseOK ResponseKind = iota
	ResponseEOF
	ResponseError
	ResponseAuthMoreData
	ResponseOther // column count / column definition / row: caller-specific
)

// ClassifyResponse implements "Generic response dispatch": 0x00 with
// payload length >= 7 is OK; 0xfe with payload length < 9 is EOF (this also
// catches the short "0xFE OK variant" some servers send); 0xff is ERROR;
// 0x01 is ExtraAuthData (only meaningful mid-authentication); anything else
// is command-specific.
func ClassifyResponse(payload []byte) ResponseKind {
	if len(payload) == 0 {
		return ResponseOther
	}
	switch payload[0] {
	case tagOK:
		if len(payload) >= 7 {
			return ResponseOK
		}
	case tagEOF:
		if len(payload) < 9 {
			return ResponseEOF
		}
	case tagErr:
		return ResponseError
	case tagAuthMoreData:
		return ResponseAuthMoreData
	}
	return ResponseOther
}

// OKPacket is the decoded generic OK response.
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
}

// DecodeOK decodes an OK packet. Status flags, warnings, and the message
// are read by the caller from the session's EOF handling where relevant;
// they are "tolerated but not exposed" here.
func DecodeOK(payload []byte) (*OKPacket, error) {
	if len(payload) < 1 || payload[0] != tagOK {
		return nil, ErrUnexpectedPacket
	}
	pos := 1
	affected, _, n, ok := wire.ReadLengthEncodedInteger(payload[pos:])
	if !ok {
		return nil, ErrMalformedPacket
	}
	pos += n
	insertID, _, n, ok := wire.ReadLengthEncodedInteger(payload[pos:])
	if !ok {
		return nil, ErrMalformedPacket
	}
	return &OKPacket{AffectedRows: affected, LastInsertID: insertID}, nil
}

// EOFPacket is the decoded generic EOF response.
type EOFPacket struct {
	Warnings    uint16
	StatusFlags StatusFlag
}

// DecodeEOF decodes an EOF packet. It accepts both the 5-byte modern form
// and the 1-byte bare-tag form some servers emit (status flags default to
// zero in that case).
func DecodeEOF(payload []byte) (*EOFPacket, error) {
	if len(payload) < 1 || payload[0] != tagEOF {
		return nil, ErrUnexpectedPacket
	}
	if len(payload) == 1 {
		return &EOFPacket{}, nil
	}
	if len(payload) < 5 {
		return nil, ErrMalformedPacket
	}
	return &EOFPacket{
		Warnings:    wire.Uint16(payload[1:3]),
		StatusFlags: StatusFlag(wire.Uint16(payload[3:5])),
	}, nil
}

// ErrorPacket is the decoded generic ERROR response.
type ErrorPacket struct {
	Code    uint16
	Message string
}

// DecodeError decodes an ERROR packet: tag, 2-byte code, 1-byte SQL-state
// marker + 5-byte SQL state (both discarded), then the message.
func DecodeError(payload []byte) (*ErrorPacket, error) {
	if len(payload) < 3 || payload[0] != tagErr {
		return nil, ErrUnexpectedPacket
	}
	code := wire.Uint16(payload[1:3])
	pos := 3
	if len(payload) >= pos+6 && payload[pos] == '#' {
		pos += 6 // '#' marker + 5-byte SQL state
	}
	return &ErrorPacket{Code: code, Message: string(wire.EOFString(payload[pos:]))}, nil
}

// ColumnCount decodes the column-count packet sent at the start of a
// text-protocol result set (a bare length-encoded integer).
func ColumnCount(payload []byte) (uint64, error) {
	n, isNull, _, ok := wire.ReadLengthEncodedInteger(payload)
	if !ok || isNull {
		return 0, ErrMalformedPacket
	}
	return n, nil
}
