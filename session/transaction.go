package session

import "context"

// Begin starts a transaction with START TRANSACTION. It returns
// ErrNestedTransaction (wrapped in a ClientError) if one is already open;
// this client does not emulate savepoint-based nesting.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	if s.inTransaction {
		s.mu.Unlock()
		return &ClientError{Op: "begin", Err: ErrNestedTransaction}
	}
	s.mu.Unlock()

	if _, err := s.Query(ctx, "START TRANSACTION"); err != nil {
		return err
	}
	s.mu.Lock()
	s.inTransaction = true
	s.mu.Unlock()
	return nil
}

// Commit issues COMMIT and clears the in-transaction flag.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if !s.inTransaction {
		s.mu.Unlock()
		return &ClientError{Op: "commit", Err: ErrNoTransaction}
	}
	s.mu.Unlock()

	_, err := s.Query(ctx, "COMMIT")
	s.mu.Lock()
	s.inTransaction = false
	s.mu.Unlock()
	return err
}

// Rollback issues ROLLBACK and clears the in-transaction flag.
func (s *Session) Rollback(ctx context.Context) error {
	s.mu.Lock()
	if !s.inTransaction {
		s.mu.Unlock()
		return &ClientError{Op: "rollback", Err: ErrNoTransaction}
	}
	s.mu.Unlock()

	_, err := s.Query(ctx, "ROLLBACK")
	s.mu.Lock()
	s.inTransaction = false
	s.mu.Unlock()
	return err
}

// WithTransaction runs fn inside a transaction, committing if fn returns nil
// and rolling back otherwise. The rollback error, if any, is joined with
// fn's original error so callers can see both.
func (s *Session) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			return &ClientError{Op: "with transaction", Err: err}
		}
		return err
	}
	return s.Commit(ctx)
}
