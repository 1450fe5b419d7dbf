package protocol

import (
	"testing"

	"github.com/riftsql/mysql/wire"
)

func buildColumnDefPayload(c ColumnDefinition) []byte {
	var b []byte
	b = wire.AppendLengthEncodedString(b, []byte(c.Catalog))
	b = wire.AppendLengthEncodedString(b, []byte(c.Schema))
	b = wire.AppendLengthEncodedString(b, []byte(c.Table))
	b = wire.AppendLengthEncodedString(b, []byte(c.OrigTable))
	b = wire.AppendLengthEncodedString(b, []byte(c.Name))
	b = wire.AppendLengthEncodedString(b, []byte(c.OrigName))
	b = wire.AppendLengthEncodedInteger(b, 0x0c)
	b = wire.PutUint16(b, c.Collation)
	b = wire.PutUint32(b, c.Length)
	b = append(b, byte(c.Type))
	b = wire.PutUint16(b, uint16(c.Flags))
	b = append(b, c.Decimals)
	b = append(b, 0, 0) // filler
	return b
}

func TestDecodeColumnDefinition(t *testing.T) {
	want := ColumnDefinition{
		Catalog: "def", Schema: "mydb", Table: "t", OrigTable: "t",
		Name: "test", OrigName: "test", Collation: 33, Length: 20,
		Type: TypeVarString, Flags: 0, Decimals: 0,
	}
	got, err := DecodeColumnDefinition(buildColumnDefPayload(want))
	if err != nil {
		t.Fatalf("DecodeColumnDefinition: %v", err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}
}

func TestColumnShouldBeBinary(t *testing.T) {
	cases := []struct {
		name      string
		t         FieldType
		collation uint16
		flags     ColumnFlag
		want      bool
	}{
		{"geometry always binary", TypeGeometry, 33, 0, true},
		{"bit always binary", TypeBit, 33, 0, true},
		{"blob with binary collation", TypeBLOB, BinaryCollationID, 0, true},
		{"blob with binary flag", TypeBLOB, 33, FlagBinary, true},
		{"blob textual", TypeBLOB, 33, 0, false},
		{"varchar never binary", TypeVarChar, BinaryCollationID, FlagBinary, false},
	}
	for _, c := range cases {
		if got := ColumnShouldBeBinary(c.t, c.collation, c.flags); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestBestNativeKindDecimalStaysString(t *testing.T) {
	if BestNativeKind(TypeNewDecimal, 33, 0) != KindString {
		t.Error("DECIMAL must stay a string to preserve precision")
	}
}

func TestBestNativeKindUnsignedLongLong(t *testing.T) {
	if BestNativeKind(TypeLongLong, 33, FlagUnsigned) != KindUint64 {
		t.Error("unsigned BIGINT should map to KindUint64")
	}
	if BestNativeKind(TypeLongLong, 33, 0) != KindInt64 {
		t.Error("signed BIGINT should map to KindInt64")
	}
}
