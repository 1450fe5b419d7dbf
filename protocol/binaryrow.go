package protocol

import (
	"math"

	"github.com/riftsql/mysql/wire"
)

// DecodeBinaryRow decodes a binary-protocol result row. payload must
// have had the leading 0x00 tag byte already verified by the caller. Cells
// come back as one of: nil (NULL), int64, uint64, float32, float64, string,
// []byte, DateTime, or Time: textual columns (and textually-classified blob
// columns) decode to string, everything else that isn't numeric or
// date/time stays as raw bytes.
func DecodeBinaryRow(payload []byte, columns []*ColumnDefinition) ([]any, error) {
	n := len(columns)
	bitmapSize := wire.NullBitmapSize(n)
	if len(payload) < bitmapSize {
		return nil, ErrMalformedPacket
	}
	nullBitmap := payload[:bitmapSize]
	pos := bitmapSize

	cells := make([]any, n)
	for i, col := range columns {
		if wire.NullBitmapGet(nullBitmap, i) {
			cells[i] = nil
			continue
		}

		rest := payload[pos:]
		switch col.Type {
		case TypeTiny:
			if len(rest) < 1 {
				return nil, ErrMalformedPacket
			}
			if col.Flags&FlagUnsigned != 0 {
				cells[i] = int64(rest[0])
			} else {
				cells[i] = int64(int8(rest[0]))
			}
			pos++

		case TypeShort, TypeYear:
			if len(rest) < 2 {
				return nil, ErrMalformedPacket
			}
			v := wire.Uint16(rest[:2])
			if col.Flags&FlagUnsigned != 0 {
				cells[i] = int64(v)
			} else {
				cells[i] = int64(int16(v))
			}
			pos += 2

		case TypeLong, TypeInt24:
			if len(rest) < 4 {
				return nil, ErrMalformedPacket
			}
			v := wire.Uint32(rest[:4])
			if col.Flags&FlagUnsigned != 0 {
				cells[i] = int64(v)
			} else {
				cells[i] = int64(int32(v))
			}
			pos += 4

		case TypeLongLong:
			if len(rest) < 8 {
				return nil, ErrMalformedPacket
			}
			v := wire.Uint64(rest[:8])
			if col.Flags&FlagUnsigned != 0 {
				cells[i] = v
			} else {
				cells[i] = int64(v)
			}
			pos += 8

		case TypeFloat:
			if len(rest) < 4 {
				return nil, ErrMalformedPacket
			}
			cells[i] = math.Float32frombits(wire.Uint32(rest[:4]))
			pos += 4

		case TypeDouble:
			if len(rest) < 8 {
				return nil, ErrMalformedPacket
			}
			cells[i] = math.Float64frombits(wire.Uint64(rest[:8]))
			pos += 8

		case TypeDate, TypeNewDate, TypeDateTime, TypeTimestamp:
			dt, n, err := DecodeBinaryDateTime(rest)
			if err != nil {
				return nil, err
			}
			cells[i] = dt
			pos += n

		case TypeTime:
			t, n, err := DecodeBinaryTime(rest)
			if err != nil {
				return nil, err
			}
			cells[i] = t
			pos += n

		default:
			// All string/blob/decimal/enum/set/bit/geometry/json types:
			// length-encoded bytes. textual classification
			// decides whether callers see a string or raw bytes.
			s, isNull, consumed, err := wire.ReadLengthEncodedString(rest)
			if err != nil {
				return nil, err
			}
			pos += consumed
			if isNull {
				cells[i] = nil
				continue
			}
			if col.ColumnShouldBeBinary() {
				cells[i] = append([]byte(nil), s...)
			} else {
				cells[i] = string(s)
			}
		}
	}
	return cells, nil
}
