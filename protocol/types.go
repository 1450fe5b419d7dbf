package protocol

// FieldType is a MySQL wire column-type code, 0x00..0x13 and 0xf5..0xff.
type FieldType byte

const (
	TypeDecimal    FieldType = 0x00
	TypeTiny       FieldType = 0x01
	TypeShort      FieldType = 0x02
	TypeLong       FieldType = 0x03
	TypeFloat      FieldType = 0x04
	TypeDouble     FieldType = 0x05
	TypeNull       FieldType = 0x06
	TypeTimestamp  FieldType = 0x07
	TypeLongLong   FieldType = 0x08
	TypeInt24      FieldType = 0x09
	TypeDate       FieldType = 0x0a
	TypeTime       FieldType = 0x0b
	TypeDateTime   FieldType = 0x0c
	TypeYear       FieldType = 0x0d
	TypeNewDate    FieldType = 0x0e
	TypeVarChar    FieldType = 0x0f
	TypeBit        FieldType = 0x10
	TypeJSON       FieldType = 0xf5
	TypeNewDecimal FieldType = 0xf6
	TypeEnum       FieldType = 0xf7
	TypeSet        FieldType = 0xf8
	TypeTinyBLOB   FieldType = 0xf9
	TypeMediumBLOB FieldType = 0xfa
	TypeLongBLOB   FieldType = 0xfb
	TypeBLOB       FieldType = 0xfc
	TypeVarString  FieldType = 0xfd
	TypeString     FieldType = 0xfe
	TypeGeometry   FieldType = 0xff
)

// ColumnFlag is the column-definition flag bitset.
type ColumnFlag uint16

const (
	FlagUnsigned ColumnFlag = 0x0020
	FlagBinary   ColumnFlag = 0x0080
)

// NativeKind is the language-neutral classification of a column's decoded
// Go representation, chosen by the column-type bridge from (protocol
// variant, column type, collation, flags).
type NativeKind int

const (
	KindString NativeKind = iota
	KindBytes
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindDateTime
	KindDate
	KindTime
	KindNull
)

// IsBlobFamily reports whether t is one of the TINY/MEDIUM/LONG/BLOB types,
// which need special handling when deciding text-vs-binary classification.
func (t FieldType) IsBlobFamily() bool {
	switch t {
	case TypeTinyBLOB, TypeMediumBLOB, TypeLongBLOB, TypeBLOB:
		return true
	}
	return false
}

// ColumnShouldBeBinary implements columnShouldBeBinary predicate:
// always binary for GEOMETRY/BIT; blob-family types are binary iff the
// collation is the reserved binary collation (63) or the binary flag bit is
// set.
func ColumnShouldBeBinary(t FieldType, collation uint16, flags ColumnFlag) bool {
	switch t {
	case TypeGeometry, TypeBit:
		return true
	}
	if t.IsBlobFamily() {
		return collation == BinaryCollationID || flags&FlagBinary != 0
	}
	return false
}

// BestNativeKind selects the "best native type" for a text-protocol value of
// column type t, following : blob-family/geometry/bit columns that
// classify as binary stay opaque bytes; DECIMAL/NEW_DECIMAL always stay
// strings to preserve precision; numeric types convert; everything else is
// a string.
func BestNativeKind(t FieldType, collation uint16, flags ColumnFlag) NativeKind {
	if ColumnShouldBeBinary(t, collation, flags) {
		return KindBytes
	}
	switch t {
	case TypeDecimal, TypeNewDecimal:
		return KindString
	case TypeTiny, TypeShort, TypeLong, TypeInt24, TypeYear:
		return KindInt64
	case TypeLongLong:
		if flags&FlagUnsigned != 0 {
			return KindUint64
		}
		return KindInt64
	case TypeFloat:
		return KindFloat32
	case TypeDouble:
		return KindFloat64
	case TypeDate, TypeNewDate:
		return KindDate
	case TypeDateTime, TypeTimestamp:
		return KindDateTime
	case TypeTime:
		return KindTime
	default:
		return KindString
	}
}
