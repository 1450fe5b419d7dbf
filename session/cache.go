package session

import (
	"container/list"
	"context"
)

const defaultStmtCacheCapacity = 32

// stmtCache is an LRU cache of server-prepared statements keyed by SQL text,
// so that repeatedly executing the same parameterized query through
// QueryPrepared does not re-prepare it on every call. Eviction closes the evicted statement server-side.
type stmtCache struct {
	s        *Session
	capacity int
	ll       *list.List
	index    map[string]*list.Element
}

type stmtCacheEntry struct {
	sql  string
	stmt *PreparedStatement
}

func newStmtCache(capacity int, s *Session) *stmtCache {
	if capacity <= 0 {
		capacity = defaultStmtCacheCapacity
	}
	return &stmtCache{s: s, capacity: capacity, ll: list.New(), index: make(map[string]*list.Element)}
}

// getOrPrepare returns a cached statement for sql, preparing and caching one
// if not already present.
func (c *stmtCache) getOrPrepare(ctx context.Context, sql string) (*PreparedStatement, error) {
	if el, ok := c.index[sql]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*stmtCacheEntry).stmt, nil
	}

	stmt, err := c.s.Prepare(ctx, sql)
	if err != nil {
		return nil, err
	}

	el := c.ll.PushFront(&stmtCacheEntry{sql: sql, stmt: stmt})
	c.index[sql] = el

	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
	return stmt, nil
}

func (c *stmtCache) evictOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	entry := el.Value.(*stmtCacheEntry)
	c.ll.Remove(el)
	delete(c.index, entry.sql)
	_ = entry.stmt.Close()
}

// closeAll closes every cached statement, best-effort. It is called when the
// owning session closes.
func (c *stmtCache) closeAll() {
	for el := c.ll.Front(); el != nil; el = el.Next() {
		_ = el.Value.(*stmtCacheEntry).stmt.Close()
	}
	c.ll.Init()
	c.index = make(map[string]*list.Element)
}

// QueryPrepared executes sql against the session's auto-prepare cache,
// preparing it on first use and reusing the server-side statement on
// subsequent calls with the same SQL text.
func (s *Session) QueryPrepared(ctx context.Context, sql string, params ...any) (StatementResult, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, &ClientError{Op: "query prepared", Err: ErrSessionClosed}
	}
	cache := s.stmtCache
	s.mu.Unlock()

	stmt, err := cache.getOrPrepare(ctx, sql)
	if err != nil {
		return nil, err
	}
	return stmt.Execute(ctx, params...)
}
