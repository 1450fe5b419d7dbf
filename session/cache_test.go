package session

import (
	"context"
	"testing"
)

func TestStmtCacheEvictsLeastRecentlyUsed(t *testing.T) {
	s, fs := newEstablishedPair(t)
	s.stmtCache = newStmtCache(2, s)

	go func() {
		for i := uint32(1); ; i++ {
			_ = fs.recv() // COM_STMT_PREPARE
			fs.send(prepareOKPayload(i, 0, 0))
		}
	}()

	ctx := context.Background()
	a, err := s.stmtCache.getOrPrepare(ctx, "A")
	if err != nil {
		t.Fatalf("prepare A: %v", err)
	}
	if _, err := s.stmtCache.getOrPrepare(ctx, "B"); err != nil {
		t.Fatalf("prepare B: %v", err)
	}
	// Touch A so it is not the least recently used.
	if again, err := s.stmtCache.getOrPrepare(ctx, "A"); err != nil || again != a {
		t.Fatalf("expected cached A, got %v, %v", again, err)
	}
	if _, err := s.stmtCache.getOrPrepare(ctx, "C"); err != nil {
		t.Fatalf("prepare C: %v", err)
	}

	if _, ok := s.stmtCache.index["B"]; ok {
		t.Error("expected B to be evicted")
	}
	if _, ok := s.stmtCache.index["A"]; !ok {
		t.Error("expected A to remain cached")
	}
	fs.close()
}
