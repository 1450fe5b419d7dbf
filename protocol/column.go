package protocol

import "github.com/riftsql/mysql/wire"

// ColumnDefinition carries the fields of a Protocol::ColumnDefinition41
// packet. It is immutable once decoded.
type ColumnDefinition struct {
	Catalog      string
	Schema       string
	Table        string
	OrigTable    string
	Name         string
	OrigName     string
	Collation    uint16
	Length       uint32
	Type         FieldType
	Flags        ColumnFlag
	Decimals     byte
}

// DecodeColumnDefinition decodes a single column-definition packet: six
// length-encoded strings, a length-encoded "fixed-field length" (always
// 0x0c), then charset:u16, column_length:u32, type:u8, flags:u16,
// decimals:u8, and two filler bytes.
func DecodeColumnDefinition(payload []byte) (*ColumnDefinition, error) {
	var (
		col ColumnDefinition
		pos int
		err error
	)

	strs := make([][]byte, 6)
	for i := range strs {
		var s []byte
		var n int
		s, _, n, err = wire.ReadLengthEncodedString(payload[pos:])
		if err != nil {
			return nil, err
		}
		strs[i] = s
		pos += n
	}
	col.Catalog = string(strs[0])
	col.Schema = string(strs[1])
	col.Table = string(strs[2])
	col.OrigTable = string(strs[3])
	col.Name = string(strs[4])
	col.OrigName = string(strs[5])

	// Length-encoded "fixed-field length", conventionally 0x0c; the fixed
	// fields that follow have a constant size regardless of its value.
	_, _, n, ok := wire.ReadLengthEncodedInteger(payload[pos:])
	if !ok {
		return nil, ErrMalformedPacket
	}
	pos += n

	if len(payload) < pos+2+4+1+2+1+2 {
		return nil, ErrMalformedPacket
	}
	col.Collation = wire.Uint16(payload[pos : pos+2])
	pos += 2
	col.Length = wire.Uint32(payload[pos : pos+4])
	pos += 4
	col.Type = FieldType(payload[pos])
	pos++
	col.Flags = ColumnFlag(wire.Uint16(payload[pos : pos+2]))
	pos += 2
	col.Decimals = payload[pos]
	pos++
	// two filler bytes, discarded

	return &col, nil
}

// ColumnShouldBeBinary reports whether this column's values should be
// delivered as opaque bytes rather than decoded UTF-8 strings.
func (c *ColumnDefinition) ColumnShouldBeBinary() bool {
	return ColumnShouldBeBinary(c.Type, c.Collation, c.Flags)
}

// BestNativeKind selects the "best native type" for a value of this column.
func (c *ColumnDefinition) BestNativeKind() NativeKind {
	return BestNativeKind(c.Type, c.Collation, c.Flags)
}
