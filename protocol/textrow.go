package protocol

import "github.com/riftsql/mysql/wire"

// DecodeTextRow decodes a text-protocol result row: each column value is
// either the single byte 0xfb (NULL) or a length-encoded byte string.
// The returned cells alias payload; callers that retain them past
// the packet's lifetime must copy.
func DecodeTextRow(payload []byte, columnCount int) ([][]byte, error) {
	cells := make([][]byte, columnCount)
	pos := 0
	for i := 0; i < columnCount; i++ {
		s, isNull, n, err := wire.ReadLengthEncodedString(payload[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if isNull {
			cells[i] = nil
			continue
		}
		cells[i] = s
	}
	return cells, nil
}
