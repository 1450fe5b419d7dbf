package protocol

import (
	"fmt"

	"github.com/riftsql/mysql/wire"
)

// DateTime is a decoded binary-protocol DATE/DATETIME/TIMESTAMP value.
// Zero dates (all fields zero) decode from a zero-length frame.
type DateTime struct {
	Year        uint16
	Month       byte
	Day         byte
	Hour        byte
	Minute      byte
	Second      byte
	Microsecond uint32
}

// Time is a decoded binary-protocol TIME value.
type Time struct {
	Negative    bool
	Days        uint32
	Hour        byte
	Minute      byte
	Second      byte
	Microsecond uint32
}

// DecodeBinaryDateTime decodes a DATE/DATETIME/TIMESTAMP value per its
// 1-byte length prefix scheme: 0 = zero date; 4 = Y(2) M(1) D(1);
// 7 = +H M S; 11 = +µs(4 LE).
func DecodeBinaryDateTime(data []byte) (DateTime, int, error) {
	if len(data) < 1 {
		return DateTime{}, 0, ErrMalformedPacket
	}
	length := int(data[0])
	if len(data) < 1+length {
		return DateTime{}, 0, ErrMalformedPacket
	}
	var dt DateTime
	switch length {
	case 0:
	case 4, 7, 11:
		b := data[1:]
		dt.Year = wire.Uint16(b[0:2])
		dt.Month = b[2]
		dt.Day = b[3]
		if length >= 7 {
			dt.Hour = b[4]
			dt.Minute = b[5]
			dt.Second = b[6]
		}
		if length == 11 {
			dt.Microsecond = wire.Uint32(b[7:11])
		}
	default:
		return DateTime{}, 0, fmt.Errorf("protocol: illegal datetime length %d: %w", length, ErrMalformedPacket)
	}
	return dt, 1 + length, nil
}

// DecodeBinaryTime decodes a TIME value per its 1-byte length prefix
// scheme: 0 = zero time; 8 = sign(1) days(4 LE) H M S; 12 = +µs(4 LE).
func DecodeBinaryTime(data []byte) (Time, int, error) {
	if len(data) < 1 {
		return Time{}, 0, ErrMalformedPacket
	}
	length := int(data[0])
	if len(data) < 1+length {
		return Time{}, 0, ErrMalformedPacket
	}
	var t Time
	switch length {
	case 0:
	case 8, 12:
		b := data[1:]
		t.Negative = b[0] != 0
		t.Days = wire.Uint32(b[1:5])
		t.Hour = b[5]
		t.Minute = b[6]
		t.Second = b[7]
		if length == 12 {
			t.Microsecond = wire.Uint32(b[8:12])
		}
	default:
		return Time{}, 0, fmt.Errorf("protocol: illegal time length %d: %w", length, ErrMalformedPacket)
	}
	return t, 1 + length, nil
}

// EncodeBinaryDateTime encodes dt using the shortest length variant that
// losslessly represents it (used when binding a date/time parameter).
func EncodeBinaryDateTime(dt DateTime) []byte {
	if dt == (DateTime{}) {
		return []byte{0}
	}
	length := byte(4)
	if dt.Hour != 0 || dt.Minute != 0 || dt.Second != 0 {
		length = 7
	}
	if dt.Microsecond != 0 {
		length = 11
	}
	b := make([]byte, 0, 1+length)
	b = append(b, length)
	b = wire.PutUint16(b, dt.Year)
	b = append(b, dt.Month, dt.Day)
	if length >= 7 {
		b = append(b, dt.Hour, dt.Minute, dt.Second)
	}
	if length == 11 {
		b = wire.PutUint32(b, dt.Microsecond)
	}
	return b
}
