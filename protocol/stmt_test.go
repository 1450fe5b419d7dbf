package protocol

import (
	"testing"

	"github.com/riftsql/mysql/wire"
)

func TestDecodePrepareOK(t *testing.T) {
	var payload []byte
	payload = append(payload, tagOK)
	payload = wire.PutUint32(payload, 7)
	payload = wire.PutUint16(payload, 2)
	payload = wire.PutUint16(payload, 1)
	payload = append(payload, 0)
	payload = wire.PutUint16(payload, 0)

	ok, err := DecodePrepareOK(payload)
	if err != nil {
		t.Fatalf("DecodePrepareOK: %v", err)
	}
	if ok.StatementID != 7 || ok.ColumnCount != 2 || ok.ParamCount != 1 {
		t.Errorf("got %+v", ok)
	}
}

func TestInferParamTypeInteger(t *testing.T) {
	cases := []struct {
		v    int64
		want FieldType
	}{
		{0, TypeTiny},
		{127, TypeTiny},
		{128, TypeShort},
		{32767, TypeShort},
		{32768, TypeLong},
		{1<<31 - 1, TypeLong},
		{1 << 31, TypeLongLong},
		{-129, TypeShort},
	}
	for _, c := range cases {
		p, err := InferParamType(c.v)
		if err != nil {
			t.Fatalf("InferParamType(%d): %v", c.v, err)
		}
		if p.Type != c.want {
			t.Errorf("InferParamType(%d) type = %v, want %v", c.v, p.Type, c.want)
		}
	}
}

func TestInferParamTypeNullAndUnsupported(t *testing.T) {
	p, err := InferParamType(nil)
	if err != nil || !p.IsNull || p.Type != TypeNull {
		t.Fatalf("got %+v, %v", p, err)
	}

	type weird struct{}
	if _, err := InferParamType(weird{}); err == nil {
		t.Fatal("expected ErrUnsupportedParamType")
	}
}

func TestInferParamTypeBlobThresholds(t *testing.T) {
	small := make([]byte, 10)
	p, _ := InferParamType(small)
	if p.Type != TypeTinyBLOB {
		t.Errorf("got %v, want TypeTinyBLOB", p.Type)
	}

	medium := make([]byte, 300)
	p, _ = InferParamType(medium)
	if p.Type != TypeMediumBLOB {
		t.Errorf("got %v, want TypeMediumBLOB", p.Type)
	}
}

func TestEncodeComStmtExecuteNoParams(t *testing.T) {
	b := EncodeComStmtExecute(42, nil)
	if b[0] != ComStmtExecute {
		t.Fatal("expected command byte")
	}
	if wire.Uint32(b[1:5]) != 42 {
		t.Fatalf("stmt id = %d, want 42", wire.Uint32(b[1:5]))
	}
	if len(b) != 10 {
		t.Fatalf("expected 10-byte payload with no params, got %d", len(b))
	}
}

func TestEncodeComStmtExecuteWithNullParam(t *testing.T) {
	params := []BoundParam{
		{IsNull: true, Type: TypeNull},
		{Type: TypeVarString, Value: wire.AppendLengthEncodedString(nil, []byte("hi"))},
	}
	b := EncodeComStmtExecute(1, params)
	bitmapStart := 10
	nullBitmap := b[bitmapStart : bitmapStart+wire.ParamNullBitmapSize(2)]
	if nullBitmap[0]&1 == 0 {
		t.Fatal("expected param 0 marked NULL")
	}
}
