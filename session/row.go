package session

import (
	"fmt"
	"strconv"

	"github.com/riftsql/mysql/protocol"
)

// Row is one decoded result-set row. Cells are addressable positionally or
// by column name. Text-protocol rows store each non-NULL cell as the raw
// string (or []byte, for binary-classified columns) the server sent;
// binary-protocol rows already carry each cell in its native Go type,
// since the binary protocol encodes values rather than ASCII text. Typed
// accessors (Int64, Typed, TypedAssoc) convert on demand via the
// column-type bridge; Value and Assoc never parse.
type Row struct {
	columns []*protocol.ColumnDefinition
	index   map[string]int
	cells   []any
}

func newRow(columns []*protocol.ColumnDefinition, index map[string]int, cells []any) *Row {
	return &Row{columns: columns, index: index, cells: cells}
}

// Len returns the number of columns in the row.
func (r *Row) Len() int { return len(r.cells) }

// Value returns the raw cell at position i: a string or []byte for
// text-protocol rows, the column's native Go type for binary-protocol
// rows, or nil for NULL.
func (r *Row) Value(i int) any { return r.cells[i] }

// Named returns the raw cell for the named column, or (nil, false) if no
// such column exists. Ambiguous duplicate names resolve to the first
// occurrence, matching the order columns were returned by the server.
func (r *Row) Named(name string) (any, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.cells[i], true
}

// Assoc returns the row as a name-to-value map of raw cells (see Value);
// positional duplicates last writer wins.
func (r *Row) Assoc() map[string]any {
	m := make(map[string]any, len(r.cells))
	for i, col := range r.columns {
		m[col.Name] = r.cells[i]
	}
	return m
}

// Typed returns the cell at position i converted to its "best native type"
// per the column-type bridge. A cell already in native form (binary-protocol
// rows, or NULL) passes through unchanged.
func (r *Row) Typed(i int) (any, error) {
	switch raw := r.cells[i].(type) {
	case nil:
		return nil, nil
	case string:
		return convertTypedCell([]byte(raw), r.columns[i])
	case []byte:
		return convertTypedCell(raw, r.columns[i])
	default:
		return raw, nil
	}
}

// TypedAssoc returns the row as a name-to-value map with every cell
// converted to its best native Go type. A cell that fails conversion falls
// back to its raw value.
func (r *Row) TypedAssoc() map[string]any {
	m := make(map[string]any, len(r.cells))
	for i, col := range r.columns {
		v, err := r.Typed(i)
		if err != nil {
			v = r.cells[i]
		}
		m[col.Name] = v
	}
	return m
}

// Int64 returns the cell at i converted to an int64.
func (r *Row) Int64(i int) (int64, error) {
	v, err := r.Typed(i)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case uint64:
		return int64(x), nil
	case nil:
		return 0, fmt.Errorf("session: column %d is NULL", i)
	default:
		return 0, fmt.Errorf("session: column %d is %T, not an integer", i, x)
	}
}

// String returns the cell at i as a string. Byte-typed cells decode as
// UTF-8; other kinds format with fmt.Sprint.
func (r *Row) String(i int) (string, error) {
	switch v := r.cells[i].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("session: column %d is NULL", i)
	default:
		return fmt.Sprint(v), nil
	}
}

// convertTypedCell converts one raw text-protocol byte string to its best
// native Go type for col.
func convertTypedCell(raw []byte, col *protocol.ColumnDefinition) (any, error) {
	kind := col.BestNativeKind()
	switch kind {
	case protocol.KindBytes:
		return append([]byte(nil), raw...), nil
	case protocol.KindInt64:
		v, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session: column %q: %w", col.Name, err)
		}
		return v, nil
	case protocol.KindUint64:
		v, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("session: column %q: %w", col.Name, err)
		}
		return v, nil
	case protocol.KindFloat32:
		v, err := strconv.ParseFloat(string(raw), 32)
		if err != nil {
			return nil, fmt.Errorf("session: column %q: %w", col.Name, err)
		}
		return float32(v), nil
	case protocol.KindFloat64:
		v, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("session: column %q: %w", col.Name, err)
		}
		return v, nil
	case protocol.KindDateTime, protocol.KindDate, protocol.KindTime, protocol.KindString:
		return string(raw), nil
	default:
		return string(raw), nil
	}
}

func columnIndex(columns []*protocol.ColumnDefinition) map[string]int {
	idx := make(map[string]int, len(columns))
	for i, col := range columns {
		if _, exists := idx[col.Name]; !exists {
			idx[col.Name] = i
		}
	}
	return idx
}
