package session

import "github.com/riftsql/mysql/protocol"

// StatementResult is produced by executing one statement: either a Result
// (no result set: INSERT/UPDATE/DELETE/DDL/SET) or a ResultSet (SELECT and
// friends). A multi-statement COM_QUERY, and the MULTI_STATEMENTS /
// MULTI_RESULTS capability this client always advertises, can interleave
// both kinds across calls to Query.
type StatementResult interface {
	isStatementResult()
}

// Result is the outcome of a statement that does not return rows.
type Result struct {
	AffectedRows uint64
	LastInsertID uint64
	Warnings     uint16
	Status       protocol.StatusFlag
}

func (*Result) isStatementResult() {}

// ResultSet is the outcome of a statement that returns rows, fully buffered.
// Streaming callers that want row-at-a-time delivery without buffering the
// whole set should use QueryIter instead of Query.
type ResultSet struct {
	Columns  []*protocol.ColumnDefinition
	Rows     []*Row
	Warnings uint16
	Status   protocol.StatusFlag
}

func (*ResultSet) isStatementResult() {}

// ColumnNames returns the result set's column names in positional order.
func (rs *ResultSet) ColumnNames() []string {
	names := make([]string, len(rs.Columns))
	for i, c := range rs.Columns {
		names[i] = c.Name
	}
	return names
}
