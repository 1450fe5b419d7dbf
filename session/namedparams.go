package session

import (
	"fmt"
	"strings"
)

// rewriteNamedParams rewrites :name tokens in sql to positional ?
// placeholders, left to right, skipping over single/double-quoted string
// literals and backtick-quoted identifiers so a colon inside a string is
// left alone. It returns the rewritten SQL and the ordered argument list to
// bind against it via the binary protocol. This is not a general SQL
// parser.
func rewriteNamedParams(sql string, args map[string]any) (string, []any, error) {
	var out strings.Builder
	var bound []any
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch c {
		case '\'', '"', '`':
			j := skipQuoted(sql, i, c)
			out.WriteString(sql[i:j])
			i = j
		case ':':
			name, j, ok := scanIdent(sql, i+1)
			if !ok {
				out.WriteByte(c)
				i++
				continue
			}
			v, present := args[name]
			if !present {
				return "", nil, fmt.Errorf("session: no value supplied for :%s", name)
			}
			out.WriteByte('?')
			bound = append(bound, v)
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), bound, nil
}

// skipQuoted returns the index just past the quoted run starting at i (whose
// byte is quote), honoring the SQL convention of doubling the quote
// character to escape it and backslash-escaping inside '...' strings.
func skipQuoted(sql string, i int, quote byte) int {
	j := i + 1
	for j < len(sql) {
		if sql[j] == '\\' && quote != '`' && j+1 < len(sql) {
			j += 2
			continue
		}
		if sql[j] == quote {
			if j+1 < len(sql) && sql[j+1] == quote {
				j += 2
				continue
			}
			return j + 1
		}
		j++
	}
	return j
}

func scanIdent(sql string, start int) (string, int, bool) {
	j := start
	for j < len(sql) && isIdentByte(sql[j]) {
		j++
	}
	if j == start {
		return "", start, false
	}
	return sql[start:j], j, true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
