package session

import (
	"bufio"
	"net"
	"testing"

	"github.com/riftsql/mysql/wire"
)

// fakeServer wraps the server half of a net.Pipe and provides packet-level
// helpers so tests can script a MySQL server's side of an exchange without a
// real database (grounded on the pack's mock-conn testing technique).
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	seq  byte
}

// newEstablishedPair returns a Session already in StateEstablished, wired to
// a fakeServer over a net.Pipe, for tests that exercise query/prepare logic
// without running a full handshake.
func newEstablishedPair(t *testing.T) (*Session, *fakeServer) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	fs := &fakeServer{t: t, conn: serverConn}
	s := &Session{
		conn:  clientConn,
		br:    bufio.NewReaderSize(clientConn, 4096),
		state: StateEstablished,
		log:   DefaultLogger,
	}
	s.stmtCache = newStmtCache(32, s)
	return s, fs
}

func (f *fakeServer) send(payload []byte) {
	f.t.Helper()
	framed, err := wire.Frame(payload, f.seq)
	if err != nil {
		f.t.Fatalf("frame: %v", err)
	}
	f.seq++
	if _, err := f.conn.Write(framed); err != nil {
		f.t.Fatalf("write: %v", err)
	}
}

func (f *fakeServer) recv() []byte {
	f.t.Helper()
	header := make([]byte, wire.HeaderSize)
	if _, err := readFull(f.conn, header); err != nil {
		f.t.Fatalf("read header: %v", err)
	}
	length := int(wire.Uint24(header[:3]))
	f.seq = header[3] + 1
	payload := make([]byte, length)
	if length > 0 {
		if _, err := readFull(f.conn, payload); err != nil {
			f.t.Fatalf("read payload: %v", err)
		}
	}
	return payload
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (f *fakeServer) close() { f.conn.Close() }

// minimalInitialHandshake builds a protocol-version-10 handshake packet
// advertising mysql_native_password and an 20-byte all-'A' challenge.
func minimalInitialHandshake() []byte {
	var b []byte
	b = append(b, 10) // protocol version
	b = append(b, []byte("8.0.34-fake")...)
	b = append(b, 0) // NUL terminator
	b = wire.PutUint32(b, 1) // connection id
	authPart1 := []byte("AAAAAAAA")
	b = append(b, authPart1...)
	b = append(b, 0) // filler
	// capability flags low 2 bytes: protocol41 | secureconn | pluginauth | pluginauthlenenc
	caps := uint32(0x0200 | 0x8000 | 0x80000 | 0x200000)
	b = wire.PutUint16(b, uint16(caps))
	b = append(b, 0x2d) // charset
	b = wire.PutUint16(b, 0x0002) // status flags
	b = wire.PutUint16(b, uint16(caps>>16))
	b = append(b, 21) // auth plugin data len
	b = append(b, make([]byte, 10)...) // reserved
	authPart2 := []byte("BBBBBBBBBBBB")
	b = append(b, authPart2...)
	b = append(b, 0) // NUL terminator of part2
	b = append(b, []byte("mysql_native_password")...)
	b = append(b, 0)
	return b
}
