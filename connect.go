package mysql

import (
	"context"
	"net"

	"github.com/riftsql/mysql/session"
)

// Connect dials cfg.Net/cfg.Addr and runs the handshake, returning an
// established *session.Session. Callers that need a bounded pool of
// connections should use the pool package instead of calling Connect
// directly per command.
func Connect(ctx context.Context, cfg *Config) (*session.Session, error) {
	cfg.setDefaults()
	var d net.Dialer
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	conn, err := d.DialContext(ctx, cfg.Net, cfg.Addr)
	if err != nil {
		return nil, &session.ClientError{Op: "dial", Err: err}
	}
	return session.Connect(ctx, conn, cfg.sessionOptions())
}
