package session

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riftsql/mysql/protocol"
	"github.com/riftsql/mysql/wire"
)

// State is the session's position in the protocol state machine.
type State int

const (
	StateFresh State = iota
	StateAwaitInitialHandshake
	StateHandshakeResponseSent
	StateEstablished
	StateAwaitingCommandResponse
	StateQuitSent
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateAwaitInitialHandshake:
		return "await-initial-handshake"
	case StateHandshakeResponseSent:
		return "handshake-response-sent"
	case StateEstablished:
		return "established"
	case StateAwaitingCommandResponse:
		return "awaiting-command-response"
	case StateQuitSent:
		return "quit-sent"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a session at connect time.
type Options struct {
	User     string
	Password string
	Database string

	// Secure, when true, requires the server to advertise CLIENT_SSL and
	// upgrades the connection before sending the handshake response.
	Secure    bool
	TLSConfig *tls.Config

	// Collation names the connection collation applied after the handshake
	// completes. Defaults to protocol.DefaultCollation.
	Collation string

	// Timeout bounds the handshake and, when non-zero, every subsequent
	// command's wait for a response. A command timeout produces a
	// ClientError and leaves the session open; a handshake timeout forces
	// the session closed, since the protocol state cannot be trusted.
	Timeout time.Duration

	Logger Logger
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return DefaultLogger
}

func (o Options) collation() string {
	if o.Collation != "" {
		return o.Collation
	}
	return protocol.DefaultCollation
}

// CloseObserver is invoked once, after the session transitions to
// StateClosed. err is nil for a graceful Quit, non-nil for a force-close.
type CloseObserver func(err error)

// Session is one authenticated MySQL/MariaDB connection and its protocol
// state machine. A Session is not safe for concurrent use by multiple
// goroutines issuing overlapping commands; the pool package serializes
// access to each Session it hands out.
type Session struct {
	mu sync.Mutex

	id   uuid.UUID
	conn net.Conn
	br   *bufio.Reader
	seq  byte

	state        State
	capabilities protocol.CapabilityFlag
	authPlugin   string
	serverStatus protocol.StatusFlag

	inTransaction bool
	stmtCache     *stmtCache

	cfg   Options
	log   Logger
	closeObservers []CloseObserver
	closeErr       error
}

// ID returns the session's client-generated identifier, stable for the
// lifetime of the TCP connection. It has no meaning to the server; it
// exists so logs and pool diagnostics can correlate events to one socket.
func (s *Session) ID() uuid.UUID { return s.id }

// State reports the session's current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InTransaction reports whether a transaction is currently open.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTransaction
}

// OnClose registers fn to run once the session closes, gracefully or not.
func (s *Session) OnClose(fn CloseObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		fn(s.closeErr)
		return
	}
	s.closeObservers = append(s.closeObservers, fn)
}

// Connect performs the handshake over an already-dialed conn and returns an
// established session. The caller owns dialing (TCP or Unix) and passing the
// right transport in; Connect never dials itself.
func Connect(ctx context.Context, conn net.Conn, opts Options) (*Session, error) {
	s := &Session{
		id:    uuid.New(),
		conn:  conn,
		br:    bufio.NewReaderSize(conn, 4096),
		state: StateFresh,
		cfg:   opts,
		log:   opts.logger(),
	}
	s.stmtCache = newStmtCache(32, s)

	deadline := deadlineFromContext(ctx, opts.Timeout)
	if err := s.handshake(ctx, deadline); err != nil {
		s.forceClose(err)
		return nil, err
	}
	return s, nil
}

func deadlineFromContext(ctx context.Context, timeout time.Duration) time.Time {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok {
		if deadline.IsZero() || ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
	}
	return deadline
}

// handshake runs the full Protocol::Handshake exchange: read the server
// greeting, optionally upgrade to TLS, send the handshake response, and
// drive auth to completion.
func (s *Session) handshake(ctx context.Context, deadline time.Time) error {
	s.state = StateAwaitInitialHandshake
	s.seq = 0

	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		return err
	}
	if protocol.ClassifyResponse(pkt.Payload) == protocol.ResponseError {
		ep, derr := protocol.DecodeError(pkt.Payload)
		if derr != nil {
			return &ProtocolError{Op: "decode initial handshake error", Err: derr}
		}
		return serverErrorFromPacket(ep)
	}

	hs, err := protocol.DecodeInitialHandshake(pkt.Payload)
	if err != nil {
		return &ProtocolError{Op: "decode initial handshake", Err: err}
	}
	s.log.Print("mysql: server ", hs.ServerVersion, " connection id ", hs.ConnectionID)

	wantCaps := protocol.ClientCapabilities
	if s.cfg.Database != "" {
		wantCaps |= protocol.ClientConnectWithDB
	}

	if s.cfg.Secure {
		if !hs.Capabilities.Has(protocol.ClientSSL) {
			return &ClientError{Op: "handshake", Err: errors.New("server does not support TLS")}
		}
		wantCaps |= protocol.ClientSSL

		req := protocol.SSLRequest{Capabilities: wantCaps, MaxPacketSize: protocol.MaxPacketSize, Charset: 0x2d}
		if err := s.writePacketRaw(req.Encode(), deadline); err != nil {
			return err
		}

		tlsConfig := s.cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		tlsConn := tls.Client(s.conn, tlsConfig)
		if !deadline.IsZero() {
			tlsConn.SetDeadline(deadline)
		}
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return &ClientError{Op: "tls handshake", Err: err}
		}
		s.conn = tlsConn
		s.br = bufio.NewReaderSize(tlsConn, 4096)
	}

	plugin := hs.AuthPluginName
	if plugin == "" {
		plugin = protocol.PluginMysqlNativePassword
	}
	authResponse, err := s.computeAuthResponse(plugin, hs.AuthPluginData)
	if err != nil {
		return err
	}

	resp := protocol.HandshakeResponse{
		Capabilities:   wantCaps,
		Charset:        0x2d, // utf8mb4_general_ci, renegotiated below via SET NAMES
		Username:       s.cfg.User,
		AuthResponse:   authResponse,
		Database:       s.cfg.Database,
		AuthPluginName: plugin,
	}
	if err := s.writePacketRaw(resp.Encode(), deadline); err != nil {
		return err
	}
	s.state = StateHandshakeResponseSent
	s.capabilities = wantCaps
	s.authPlugin = plugin

	if err := s.completeAuth(deadline); err != nil {
		return err
	}

	s.state = StateEstablished

	collation := s.cfg.collation()
	if _, ok := protocol.CollationID(collation); ok {
		charset, _, _ := strings.Cut(collation, "_")
		if _, err := s.execSimple(fmt.Sprintf("SET NAMES %s COLLATE %s", charset, collation), deadline); err != nil {
			return err
		}
	}
	return nil
}

// computeAuthResponse dispatches to the plugin-specific response function
// named by plugin.
func (s *Session) computeAuthResponse(plugin string, challenge []byte) ([]byte, error) {
	switch plugin {
	case protocol.PluginMysqlNativePassword:
		return protocol.NativePasswordResponse(s.cfg.Password, challenge), nil
	case protocol.PluginCachingSHA2Password:
		return protocol.CachingSHA2PasswordResponse(s.cfg.Password, challenge), nil
	default:
		return nil, &ClientError{Op: "handshake", Err: fmt.Errorf("%w: %s", protocol.ErrUnsupportedAuthPlugin, plugin)}
	}
}

// completeAuth drives the post-handshake-response exchange to either OK or
// ERROR, handling AuthSwitchRequest and caching_sha2_password's
// ExtraAuthData fast/full-auth fork.
func (s *Session) completeAuth(deadline time.Time) error {
	pkt, err := s.readPacketRaw(deadline)
	if err != nil {
		return err
	}

	for {
		switch protocol.ClassifyResponse(pkt.Payload) {
		case protocol.ResponseOK:
			ok, err := protocol.DecodeOK(pkt.Payload)
			if err != nil {
				return &ProtocolError{Op: "decode auth OK", Err: err}
			}
			_ = ok
			return nil

		case protocol.ResponseError:
			ep, err := protocol.DecodeError(pkt.Payload)
			if err != nil {
				return &ProtocolError{Op: "decode auth error", Err: err}
			}
			return serverErrorFromPacket(ep)

		case protocol.ResponseAuthMoreData:
			if len(pkt.Payload) < 2 {
				return &ProtocolError{Op: "decode auth more data", Err: protocol.ErrMalformedPacket}
			}
			status := pkt.Payload[1]
			switch status {
			case protocol.AuthMoreDataCached:
				pkt, err = s.readPacketRaw(deadline)
				if err != nil {
					return err
				}
				continue
			case protocol.AuthMoreDataFullAuth:
				if !s.isSecureTransport() {
					return &ClientError{Op: "auth", Err: errors.New("caching_sha2_password full auth requires TLS")}
				}
				req := protocol.CachingSHA2FullAuthRequest(s.cfg.Password)
				if err := s.writePacketRaw(req, deadline); err != nil {
					return err
				}
				pkt, err = s.readPacketRaw(deadline)
				if err != nil {
					return err
				}
				continue
			default:
				return &ProtocolError{Op: "auth more data", Err: protocol.ErrUnexpectedPacket}
			}

		default:
			if len(pkt.Payload) > 0 && pkt.Payload[0] == 0xfe {
				sw, err := protocol.DecodeAuthSwitchRequest(pkt.Payload)
				if err != nil {
					return &ProtocolError{Op: "decode auth switch", Err: err}
				}
				resp, err := s.computeAuthResponse(sw.PluginName, sw.PluginData)
				if err != nil {
					return err
				}
				s.authPlugin = sw.PluginName
				if err := s.writePacketRaw(protocol.EncodeAuthSwitchResponse(resp), deadline); err != nil {
					return err
				}
				pkt, err = s.readPacketRaw(deadline)
				if err != nil {
					return err
				}
				continue
			}
			return &ProtocolError{Op: "complete auth", Err: protocol.ErrUnexpectedPacket}
		}
	}
}

func (s *Session) isSecureTransport() bool {
	_, ok := s.conn.(*tls.Conn)
	return ok
}

// readPacketRaw reads one physical packet, enforcing the sequence id
// invariant and the optional deadline. It does not touch s.state;
// callers decide what a read failure means for the state machine.
func (s *Session) readPacketRaw(deadline time.Time) (wire.Packet, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return wire.Packet{}, &ClientError{Op: "set read deadline", Err: err}
	}
	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(s.br, header); err != nil {
		return wire.Packet{}, classifyIOErr("read packet header", err)
	}
	length := int(wire.Uint24(header[:3]))
	seq := header[3]
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(s.br, payload); err != nil {
			return wire.Packet{}, classifyIOErr("read packet payload", err)
		}
	}
	if seq != s.seq {
		return wire.Packet{}, &ProtocolError{Op: "read packet", Err: fmt.Errorf("sequence id %d, want %d", seq, s.seq)}
	}
	s.seq++
	return wire.Packet{SequenceID: seq, Payload: payload}, nil
}

// writePacketRaw frames payload at the current sequence id and writes it.
func (s *Session) writePacketRaw(payload []byte, deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return &ClientError{Op: "set write deadline", Err: err}
	}
	framed, err := wire.Frame(payload, s.seq)
	if err != nil {
		return &ClientError{Op: "frame packet", Err: err}
	}
	if _, err := s.conn.Write(framed); err != nil {
		return classifyIOErr("write packet", err)
	}
	s.seq++
	return nil
}

func classifyIOErr(op string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Op: op, Err: fmt.Errorf("timeout: %w", err)}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Op: op, Err: fmt.Errorf("connection closed by peer: %w", err)}
	}
	return &ProtocolError{Op: op, Err: err}
}

// startCommand resets the per-command sequence id to 0, as required before
// every new top-level command.
func (s *Session) startCommand() {
	s.seq = 0
}

// commandDeadline computes the deadline for one command, honoring
// Options.Timeout when set.
func (s *Session) commandDeadline() time.Time {
	if s.cfg.Timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.Timeout)
}

// forceClose closes the socket and marks the session unusable. It is
// idempotent; subsequent calls after the first are no-ops.
func (s *Session) forceClose(err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.closeErr = err
	_ = s.conn.Close()
	observers := s.closeObservers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(err)
	}
}

// Quit sends COM_QUIT and closes the socket gracefully. It never
// returns a ServerError; I/O failures while sending COM_QUIT are ignored
// since the socket is being torn down regardless.
func (s *Session) Quit() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.startCommand()
	_ = s.writePacketRaw(protocol.EncodeComQuit(), s.commandDeadline())
	s.state = StateQuitSent
	s.state = StateClosed
	_ = s.conn.Close()
	observers := s.closeObservers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(nil)
	}
	return nil
}
