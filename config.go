// Package mysql is a native Go implementation of the MySQL/MariaDB
// client/server wire protocol: packet framing, the handshake and its two
// supported auth plugins, text- and binary-protocol query execution, and a
// bounded connection pool, with no cgo and no dependency on libmysqlclient.
//
// http://dev.mysql.com/doc/internals/en/client-server-protocol.html
package mysql

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/riftsql/mysql/session"
)

var (
	errInvalidDSNNoSlash = errors.New("mysql: invalid DSN: missing the slash separating the database name")
	errInvalidDSNAddr    = errors.New("mysql: invalid DSN: network address not terminated (missing closing paren)")
)

// Config describes how to reach and authenticate against a server. It is
// the decoded form of a DSN string; build one directly or via ParseDSN.
type Config struct {
	User     string
	Passwd   string
	Net      string // "tcp" or "unix", defaults to "tcp"
	Addr     string
	DBName   string

	Collation string
	TLSConfig *tls.Config
	Secure    bool
	Timeout   time.Duration
}

func (c *Config) setDefaults() {
	if c.Net == "" {
		c.Net = "tcp"
	}
	if c.Addr == "" {
		if c.Net == "unix" {
			c.Addr = "/tmp/mysql.sock"
		} else {
			c.Addr = "127.0.0.1:3306"
		}
	}
}

// sessionOptions converts Config to the session package's Options.
func (c *Config) sessionOptions() session.Options {
	return session.Options{
		User:      c.User,
		Password:  c.Passwd,
		Database:  c.DBName,
		Secure:    c.Secure,
		TLSConfig: c.TLSConfig,
		Collation: c.Collation,
		Timeout:   c.Timeout,
	}
}

// FormatDSN renders cfg back into a DSN string of the form
// "user[:passwd]@net(addr)/dbname[?param=value&...]".
func (c *Config) FormatDSN() string {
	var b strings.Builder
	if c.User != "" {
		b.WriteString(c.User)
		if c.Passwd != "" {
			b.WriteByte(':')
			b.WriteString(c.Passwd)
		}
		b.WriteByte('@')
	}
	net := c.Net
	if net == "" {
		net = "tcp"
	}
	b.WriteString(net)
	b.WriteByte('(')
	b.WriteString(c.Addr)
	b.WriteByte(')')
	b.WriteByte('/')
	b.WriteString(c.DBName)

	params := url.Values{}
	if c.Collation != "" {
		params.Set("collation", c.Collation)
	}
	if c.Secure {
		params.Set("tls", "true")
	}
	if c.Timeout > 0 {
		params.Set("timeout", c.Timeout.String())
	}
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(params.Encode())
	}
	return b.String()
}

// ParseDSN parses a DSN of the form
// "user[:passwd]@[net[(addr)]]/dbname[?param1=value1&paramN=valueN]"
// (grounded on the upstream driver's own dsn.go scanning strategy: scan
// right to left from the last unescaped '/' to find the database name
// boundary, since the password or address may themselves contain '/').
func ParseDSN(dsn string) (*Config, error) {
	cfg := &Config{}

	foundSlash := false
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] != '/' {
			continue
		}
		foundSlash = true

		var j, k int
		if i > 0 {
			for j = i; j >= 0; j-- {
				if dsn[j] == '@' {
					for k = 0; k < j; k++ {
						if dsn[k] == ':' {
							cfg.Passwd = dsn[k+1 : j]
							break
						}
					}
					cfg.User = dsn[:k]
					break
				}
			}

			for k = j + 1; k < i; k++ {
				if dsn[k] == '(' {
					if dsn[i-1] != ')' {
						return nil, errInvalidDSNAddr
					}
					cfg.Addr = dsn[k+1 : i-1]
					break
				}
			}
			cfg.Net = dsn[j+1 : k]
		}

		q := i + 1
		for ; q < len(dsn); q++ {
			if dsn[q] == '?' {
				if err := parseDSNParams(cfg, dsn[q+1:]); err != nil {
					return nil, err
				}
				break
			}
		}
		cfg.DBName = dsn[i+1 : q]
		break
	}

	if !foundSlash && len(dsn) > 0 {
		return nil, errInvalidDSNNoSlash
	}
	cfg.setDefaults()
	return cfg, nil
}

func parseDSNParams(cfg *Config, params string) error {
	for _, v := range strings.Split(params, "&") {
		if v == "" {
			continue
		}
		key, value, ok := strings.Cut(v, "=")
		if !ok {
			return fmt.Errorf("mysql: invalid DSN parameter %q", v)
		}
		value, err := url.QueryUnescape(value)
		if err != nil {
			return fmt.Errorf("mysql: invalid DSN parameter %q: %w", v, err)
		}
		switch key {
		case "collation":
			cfg.Collation = value
		case "tls":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("mysql: invalid tls parameter: %w", err)
			}
			cfg.Secure = b
			if b && cfg.TLSConfig == nil {
				cfg.TLSConfig = &tls.Config{}
			}
		case "timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("mysql: invalid timeout parameter: %w", err)
			}
			cfg.Timeout = d
		}
	}
	return nil
}
