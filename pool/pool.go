// Package pool implements a bounded connection pool of *session.Session
// values: idle/active bookkeeping behind a mutex and sync.Cond, a
// background reaper that closes idle connections past their idle timeout or
// max lifetime, a warm-up pass at startup, and a retry policy for transient
// dial/health-check failures.
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/riftsql/mysql/session"
)

// Dialer opens the transport a new Session is built on top of. The default
// dials TCP or Unix depending on Config.Network.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// RetryPolicy governs whether and how long to wait before retrying a failed
// Acquire dial/handshake, and is reused by WithSession/Transactional to
// retry the caller's callback.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

func defaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 50 * time.Millisecond
		},
		Retryable: func(err error) bool {
			var netErr net.Error
			return errors.As(err, &netErr)
		},
	}
}

// Config configures a Pool.
type Config struct {
	Network string // "tcp" or "unix"
	Address string

	SessionOptions session.Options

	MinConns       int
	MaxConns       int
	IdleTimeout    time.Duration // also the idle_test_threshold for Acquire's health check
	MaxLifetime    time.Duration
	MaxSessionUse  int64 // recycle a session after this many Acquire checkouts
	MaxErrorCount  int64 // recycle a session after this many observed errors
	AcquireTimeout time.Duration
	DialTimeout    time.Duration
	ReapInterval   time.Duration

	Retry RetryPolicy

	Dialer Dialer
}

func (c *Config) setDefaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = 10
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = 30 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = defaultRetryPolicy()
	}
	if c.Dialer == nil {
		c.Dialer = func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: c.DialTimeout}
			return d.DialContext(ctx, network, address)
		}
	}
	if c.Network == "" {
		c.Network = "tcp"
	}
}

// pooledSession tracks pool-private bookkeeping alongside a *session.Session.
type pooledSession struct {
	sess      *session.Session
	createdAt time.Time
	lastUsed  time.Time
	useCount  int64
	errCount  int64
}

// needsRecycle reports whether ps has aged out by any of the three
// recycling triggers: max connection age, total usage, or accumulated
// errors.
func (p *pooledSession) needsRecycle(cfg Config) bool {
	if cfg.MaxLifetime > 0 && time.Since(p.createdAt) > cfg.MaxLifetime {
		return true
	}
	if cfg.MaxSessionUse > 0 && p.useCount >= cfg.MaxSessionUse {
		return true
	}
	if cfg.MaxErrorCount > 0 && p.errCount >= cfg.MaxErrorCount {
		return true
	}
	return false
}

func (p *pooledSession) isIdleTooLong(idleTimeout time.Duration) bool {
	return idleTimeout > 0 && time.Since(p.lastUsed) > idleTimeout
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	Active    int
	Idle      int
	Total     int
	Waiting   int
	MaxConns  int
	MinConns  int
	Exhausted int64
}

// Pool hands out authenticated, health-checked *session.Session values,
// bounding the number of live connections to Config.MaxConns.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg Config
	sem *semaphore.Weighted

	idle    []*pooledSession
	active  map[*session.Session]*pooledSession
	total   int
	waiting int

	exhausted int64
	closed    bool
	stopCh    chan struct{}
}

// Open constructs a Pool and starts its background reaper and warm-up pass.
// It does not block for the warm-up connections to be established.
func Open(cfg Config) (*Pool, error) {
	cfg.setDefaults()
	if cfg.Address == "" {
		return nil, errors.New("pool: Config.Address is required")
	}

	p := &Pool{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConns)),
		active: make(map[*session.Session]*pooledSession),
		stopCh: make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	go p.reapLoop()
	if cfg.MinConns > 0 {
		go p.warmUp()
	}
	return p, nil
}

func (p *Pool) warmUp() {
	for i := 0; i < p.cfg.MinConns; i++ {
		p.mu.Lock()
		if p.closed || p.total >= p.cfg.MinConns {
			p.mu.Unlock()
			return
		}
		p.total++
		p.mu.Unlock()

		if !p.sem.TryAcquire(1) {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}

		ps, err := p.dialWithRetry(context.Background())
		if err != nil {
			p.sem.Release(1)
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			_ = ps.sess.Quit()
			p.sem.Release(1)
			return
		}
		p.idle = append(p.idle, ps)
		p.mu.Unlock()
	}
}

// Acquire returns a live Session from the pool, dialing and handshaking a
// new one if none is idle and the pool is under its connection cap. It
// blocks until a Session becomes available, ctx is done, or
// Config.AcquireTimeout elapses, whichever comes first.
func (p *Pool) Acquire(ctx context.Context) (*session.Session, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	p.mu.Lock()
	for {
		select {
		case <-ctx.Done():
			p.mu.Unlock()
			return nil, ctx.Err()
		default:
		}

		if p.closed {
			p.mu.Unlock()
			return nil, errors.New("pool: closed")
		}

		for len(p.idle) > 0 {
			ps := p.idle[0]
			p.idle = p.idle[1:]

			if ps.needsRecycle(p.cfg) {
				p.mu.Unlock()
				_ = ps.sess.Quit()
				p.sem.Release(1)
				p.mu.Lock()
				p.total--
				continue
			}

			if ps.isIdleTooLong(p.cfg.IdleTimeout) {
				p.mu.Unlock()
				if err := p.healthCheck(ctx, ps); err != nil {
					_ = ps.sess.Quit()
					p.sem.Release(1)
					p.mu.Lock()
					p.total--
					continue
				}
				p.mu.Lock()
			}

			ps.lastUsed = time.Now()
			ps.useCount++
			p.active[ps.sess] = ps
			p.mu.Unlock()
			return ps.sess, nil
		}

		if p.total < p.cfg.MaxConns {
			p.total++
			p.mu.Unlock()

			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, err
			}

			ps, err := p.dialWithRetry(ctx)
			if err != nil {
				p.sem.Release(1)
				p.mu.Lock()
				p.total--
				p.mu.Unlock()
				return nil, fmt.Errorf("pool: connecting to %s: %w", p.cfg.Address, err)
			}

			ps.lastUsed = time.Now()
			ps.useCount++
			p.mu.Lock()
			p.active[ps.sess] = ps
			p.mu.Unlock()
			return ps.sess, nil
		}

		p.waiting++
		p.exhausted++

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.waiting--
			p.mu.Unlock()
			return nil, fmt.Errorf("pool: acquire timeout after %s", p.cfg.AcquireTimeout)
		}
		timer := time.AfterFunc(remaining, func() { p.cond.Broadcast() })
		p.cond.Wait()
		timer.Stop()
		p.waiting--

		if p.closed {
			p.mu.Unlock()
			return nil, errors.New("pool: closing")
		}
		if time.Now().After(deadline) {
			p.mu.Unlock()
			return nil, fmt.Errorf("pool: acquire timeout after %s", p.cfg.AcquireTimeout)
		}
		// Retry from the top of the loop; mu is held.
	}
}

// healthCheck validates an idle Session is still usable with a minimal
// round trip before handing it to a caller.
func (p *Pool) healthCheck(ctx context.Context, ps *pooledSession) error {
	results, err := ps.sess.Query(ctx, "SELECT 1")
	if err != nil {
		ps.errCount++
		return err
	}
	_ = results
	return nil
}

// Release returns sess to the pool. hadError reports whether the caller's
// use of sess ended in an error, which increments the session's error count
// before the recycling decision is made. A session that has force-closed,
// aged out by max lifetime/usage/error count, or is still inside a
// transaction is discarded instead of being returned to the idle list.
func (p *Pool) Release(sess *session.Session, hadError bool) {
	p.mu.Lock()
	ps, ok := p.active[sess]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, sess)

	if hadError {
		ps.errCount++
	}

	if p.closed || sess.State() == session.StateClosed || ps.needsRecycle(p.cfg) || sess.InTransaction() {
		p.mu.Unlock()
		_ = sess.Quit()
		p.sem.Release(1)
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.cond.Signal()
		return
	}

	ps.lastUsed = time.Now()
	p.idle = append(p.idle, ps)
	p.mu.Unlock()
	p.cond.Signal()
}

// Stats returns a snapshot of current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:    len(p.active),
		Idle:      len(p.idle),
		Total:     p.total,
		Waiting:   p.waiting,
		MaxConns:  p.cfg.MaxConns,
		MinConns:  p.cfg.MinConns,
		Exhausted: p.exhausted,
	}
}

// Close stops the reaper, closes every idle Session, and waits briefly for
// active ones to be released before force-closing whatever remains.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopCh)
	p.cond.Broadcast()

	for _, ps := range p.idle {
		_ = ps.sess.Quit()
		p.total--
	}
	p.idle = nil
	active := len(p.active)
	p.mu.Unlock()

	if active == 0 {
		return
	}

	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			if len(p.active) == 0 {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
		case <-deadline:
			p.mu.Lock()
			for _, ps := range p.active {
				_ = ps.sess.Quit()
			}
			p.active = make(map[*session.Session]*pooledSession)
			p.mu.Unlock()
			return
		}
	}
}

func (p *Pool) reapLoop() {
	ticker := time.NewTicker(p.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.reapIdle()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) <= p.cfg.MinConns {
		return
	}

	kept := make([]*pooledSession, 0, len(p.idle))
	excess := len(p.idle) - p.cfg.MinConns
	for i, ps := range p.idle {
		if i < excess && (ps.isIdleTooLong(p.cfg.IdleTimeout) || ps.needsRecycle(p.cfg)) {
			_ = ps.sess.Quit()
			p.total--
			p.sem.Release(1)
		} else {
			kept = append(kept, ps)
		}
	}
	p.idle = kept
}

// dialWithRetry dials and handshakes a new Session, retrying per
// Config.Retry when the failure looks transient.
func (p *Pool) dialWithRetry(ctx context.Context) (*pooledSession, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Retry.MaxAttempts; attempt++ {
		conn, err := p.cfg.Dialer(ctx, p.cfg.Network, p.cfg.Address)
		if err == nil {
			sess, serr := session.Connect(ctx, conn, p.cfg.SessionOptions)
			if serr == nil {
				now := time.Now()
				return &pooledSession{sess: sess, createdAt: now, lastUsed: now}, nil
			}
			err = serr
		}
		lastErr = err
		if p.cfg.Retry.Retryable == nil || !p.cfg.Retry.Retryable(err) || attempt == p.cfg.Retry.MaxAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.cfg.Retry.Backoff(attempt)):
		}
	}
	return nil, lastErr
}

// WithSession acquires a Session, runs fn with it, and releases it back to
// the pool afterward. If fn returns an error that Config.Retry.Retryable
// accepts, WithSession re-acquires a Session and retries fn, up to
// Config.Retry.MaxAttempts total invocations, backing off between attempts
// per Config.Retry.Backoff.
func (p *Pool) WithSession(ctx context.Context, fn func(ctx context.Context, sess *session.Session) error) error {
	maxAttempts := p.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sess, err := p.Acquire(ctx)
		if err != nil {
			return err
		}
		err = fn(ctx, sess)
		p.Release(sess, err != nil)
		if err == nil {
			return nil
		}

		lastErr = err
		if p.cfg.Retry.Retryable == nil || !p.cfg.Retry.Retryable(err) || attempt == maxAttempts {
			return err
		}
		if p.cfg.Retry.Backoff != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.Retry.Backoff(attempt)):
			}
		}
	}
	return lastErr
}

// Execute acquires a Session, runs sql through the text protocol, and
// releases the Session back to the pool.
func (p *Pool) Execute(ctx context.Context, sql string) ([]session.StatementResult, error) {
	sess, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	results, err := sess.Query(ctx, sql)
	p.Release(sess, err != nil)
	return results, err
}

// PooledStatement is a server-side prepared statement bound to a Session
// checked out of a Pool. Close closes the statement and returns the
// underlying Session to the pool; callers must call Close exactly once.
type PooledStatement struct {
	*session.PreparedStatement
	pool *Pool
	sess *session.Session
}

// Close closes the statement server-side and releases the underlying
// Session back to the pool.
func (ps *PooledStatement) Close() error {
	err := ps.PreparedStatement.Close()
	ps.pool.Release(ps.sess, err != nil)
	return err
}

// Prepare acquires a Session and prepares sql server-side. The Session
// stays checked out of the pool until the returned statement is closed.
func (p *Pool) Prepare(ctx context.Context, sql string) (*PooledStatement, error) {
	sess, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	stmt, err := sess.Prepare(ctx, sql)
	if err != nil {
		p.Release(sess, true)
		return nil, err
	}
	return &PooledStatement{PreparedStatement: stmt, pool: p, sess: sess}, nil
}

// Transactional acquires a Session, runs fn inside a transaction (BEGIN,
// then COMMIT on success or ROLLBACK on any error), and releases the
// Session back to the pool, composing with WithSession's retry policy.
func (p *Pool) Transactional(ctx context.Context, fn func(ctx context.Context, sess *session.Session) error) error {
	return p.WithSession(ctx, func(ctx context.Context, sess *session.Session) error {
		return sess.WithTransaction(ctx, func(ctx context.Context) error {
			return fn(ctx, sess)
		})
	})
}
