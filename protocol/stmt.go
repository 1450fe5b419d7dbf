package protocol

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/riftsql/mysql/wire"
)

// ErrUnsupportedParamType is returned by InferParamType when a caller-passed
// native value has no defined binary-protocol encoding.
var ErrUnsupportedParamType = errors.New("protocol: unsupported parameter type")

// PrepareOK is the decoded COM_STMT_PREPARE response header.
type PrepareOK struct {
	StatementID   uint32
	ColumnCount   uint16
	ParamCount    uint16
	WarningCount  uint16
}

// DecodePrepareOK decodes the COM_STMT_PREPARE_OK packet: tag, stmt_id:u32,
// col_count:u16, param_count:u16, reserved:u8, warning_count:u16.
func DecodePrepareOK(payload []byte) (*PrepareOK, error) {
	if len(payload) < 12 || payload[0] != tagOK {
		return nil, ErrUnexpectedPacket
	}
	return &PrepareOK{
		StatementID:  wire.Uint32(payload[1:5]),
		ColumnCount:  wire.Uint16(payload[5:7]),
		ParamCount:   wire.Uint16(payload[7:9]),
		WarningCount: wire.Uint16(payload[10:12]),
	}, nil
}

// BoundParam is a single COM_STMT_EXECUTE parameter, already reduced to its
// wire type code and binary-protocol encoded value.
type BoundParam struct {
	IsNull   bool
	Type     FieldType
	Unsigned bool
	Value    []byte
}

// EncodeComStmtExecute encodes a COM_STMT_EXECUTE payload for stmtID
// executing with the given already-typed parameters. The caller must
// have already validated len(params) == the statement's param count.
func EncodeComStmtExecute(stmtID uint32, params []BoundParam) []byte {
	b := make([]byte, 0, 10+len(params)*8)
	b = append(b, ComStmtExecute)
	b = wire.PutUint32(b, stmtID)
	b = append(b, 0x00)       // flags: CURSOR_TYPE_NO_CURSOR
	b = wire.PutUint32(b, 1) // iteration_count

	if len(params) == 0 {
		return b
	}

	nullBitmap := make([]byte, wire.ParamNullBitmapSize(len(params)))
	for i, p := range params {
		if p.IsNull {
			wire.ParamNullBitmapSet(nullBitmap, i)
		}
	}
	b = append(b, nullBitmap...)
	b = append(b, 0x01) // new-params-bound flag

	for _, p := range params {
		typeByte := byte(p.Type)
		signedByte := byte(0x00)
		if p.Unsigned {
			signedByte = 0x80
		}
		b = append(b, typeByte, signedByte)
	}
	for _, p := range params {
		if !p.IsNull {
			b = append(b, p.Value...)
		}
	}
	return b
}

// InferParamType chooses the wire type and binary encoding for a caller
// native Go value, following type-inference rules.
func InferParamType(v any) (BoundParam, error) {
	if v == nil {
		return BoundParam{IsNull: true, Type: TypeNull}, nil
	}
	switch x := v.(type) {
	case bool:
		val := byte(0)
		if x {
			val = 1
		}
		return BoundParam{Type: TypeTiny, Value: []byte{val}}, nil

	case int:
		return intParam(int64(x))
	case int8:
		return intParam(int64(x))
	case int16:
		return intParam(int64(x))
	case int32:
		return intParam(int64(x))
	case int64:
		return intParam(x)

	case uint:
		return uintParam(uint64(x))
	case uint8:
		return uintParam(uint64(x))
	case uint16:
		return uintParam(uint64(x))
	case uint32:
		return uintParam(uint64(x))
	case uint64:
		return uintParam(x)

	case float32:
		return BoundParam{Type: TypeDouble, Value: wire.PutUint64(nil, math.Float64bits(float64(x)))}, nil
	case float64:
		return BoundParam{Type: TypeDouble, Value: wire.PutUint64(nil, math.Float64bits(x))}, nil

	case string:
		return BoundParam{Type: TypeVarString, Value: wire.AppendLengthEncodedString(nil, []byte(x))}, nil

	case time.Time:
		dt := DateTime{
			Year: uint16(x.Year()), Month: byte(x.Month()), Day: byte(x.Day()),
			Hour: byte(x.Hour()), Minute: byte(x.Minute()), Second: byte(x.Second()),
			Microsecond: uint32(x.Nanosecond() / 1000),
		}
		return BoundParam{Type: TypeDateTime, Value: EncodeBinaryDateTime(dt)}, nil

	case []byte:
		blobType := blobTypeForLength(len(x))
		return BoundParam{Type: blobType, Value: wire.AppendLengthEncodedString(nil, x)}, nil

	default:
		return BoundParam{}, fmt.Errorf("protocol: cannot infer parameter type for %T: %w", v, ErrUnsupportedParamType)
	}
}

func intParam(v int64) (BoundParam, error) {
	var t FieldType
	var b []byte
	switch {
	case v >= -128 && v <= 127:
		t = TypeTiny
		b = []byte{byte(int8(v))}
	case v >= -1<<15 && v < 1<<15:
		t = TypeShort
		b = wire.PutUint16(nil, uint16(int16(v)))
	case v >= -1<<31 && v < 1<<31:
		t = TypeLong
		b = wire.PutUint32(nil, uint32(int32(v)))
	default:
		t = TypeLongLong
		b = wire.PutUint64(nil, uint64(v))
	}
	return BoundParam{Type: t, Value: b}, nil
}

func uintParam(v uint64) (BoundParam, error) {
	switch {
	case v <= 127:
		return BoundParam{Type: TypeTiny, Value: []byte{byte(v)}}, nil
	case v < 1<<15:
		return BoundParam{Type: TypeShort, Value: wire.PutUint16(nil, uint16(v))}, nil
	case v < 1<<31:
		return BoundParam{Type: TypeLong, Value: wire.PutUint32(nil, uint32(v))}, nil
	case v <= uint64(1)<<63-1:
		return BoundParam{Type: TypeLongLong, Value: wire.PutUint64(nil, v)}, nil
	default:
		return BoundParam{Type: TypeLongLong, Unsigned: true, Value: wire.PutUint64(nil, v)}, nil
	}
}

func blobTypeForLength(n int) FieldType {
	switch {
	case n <= 255:
		return TypeTinyBLOB
	case n <= 65535:
		return TypeMediumBLOB
	case n <= 16777215:
		return TypeLongBLOB
	default:
		return TypeBLOB
	}
}
