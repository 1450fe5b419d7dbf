package pool

import (
	"io"
	"net"
	"testing"

	"github.com/riftsql/mysql/protocol"
	"github.com/riftsql/mysql/wire"
)

// startFakeMySQLServer listens on an ephemeral local TCP port and serves a
// minimal handshake (mysql_native_password, empty password) followed by OK
// responses to every query, with a one-row result for "SELECT 1" so health
// checks succeed. It returns the listener address and a stop function.
func startFakeMySQLServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveFakeConn(conn)
		}
	}()
	return ln.Addr().String()
}

func serveFakeConn(conn net.Conn) {
	defer conn.Close()
	seq := byte(0)
	send := func(payload []byte) error {
		framed, err := wire.Frame(payload, seq)
		seq++
		if err != nil {
			return err
		}
		_, err = conn.Write(framed)
		return err
	}
	recv := func() ([]byte, error) {
		header := make([]byte, wire.HeaderSize)
		if _, err := io.ReadFull(conn, header); err != nil {
			return nil, err
		}
		length := int(wire.Uint24(header[:3]))
		seq = header[3] + 1
		payload := make([]byte, length)
		if length > 0 {
			if _, err := io.ReadFull(conn, payload); err != nil {
				return nil, err
			}
		}
		return payload, nil
	}

	var b []byte
	b = append(b, 10)
	b = append(b, []byte("8.0.34-fake")...)
	b = append(b, 0)
	b = wire.PutUint32(b, 1)
	b = append(b, []byte("AAAAAAAA")...)
	b = append(b, 0)
	caps := uint32(0x0200 | 0x8000 | 0x80000 | 0x200000)
	b = wire.PutUint16(b, uint16(caps))
	b = append(b, 0x2d)
	b = wire.PutUint16(b, 0x0002)
	b = wire.PutUint16(b, uint16(caps>>16))
	b = append(b, 21)
	b = append(b, make([]byte, 10)...)
	b = append(b, []byte("BBBBBBBBBBBB")...)
	b = append(b, 0)
	b = append(b, []byte("mysql_native_password")...)
	b = append(b, 0)
	if err := send(b); err != nil {
		return
	}
	if _, err := recv(); err != nil { // handshake response
		return
	}
	okPayload := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
	if err := send(okPayload); err != nil {
		return
	}

	for {
		seq = 0
		payload, err := recv()
		if err != nil {
			return
		}
		if len(payload) == 0 {
			continue
		}
		switch payload[0] {
		case protocol.ComQuit:
			return
		case protocol.ComQuery:
			sql := string(payload[1:])
			if sql == "SELECT 1" {
				_ = send(wire.AppendLengthEncodedInteger(nil, 1))
				_ = send(fakeColumnDef("1"))
				_ = send(fakeEOF())
				_ = send(wire.AppendLengthEncodedString(nil, []byte("1")))
				_ = send(fakeEOF())
				continue
			}
			_ = send(okPayload)
		default:
			_ = send(okPayload)
		}
	}
}

func fakeColumnDef(name string) []byte {
	var b []byte
	for _, s := range []string{"def", "", "", "", name, name} {
		b = wire.AppendLengthEncodedString(b, []byte(s))
	}
	b = wire.AppendLengthEncodedInteger(b, 0x0c)
	b = wire.PutUint16(b, 33)
	b = wire.PutUint32(b, 1)
	b = append(b, byte(protocol.TypeLong))
	b = wire.PutUint16(b, 0)
	b = append(b, 0, 0, 0)
	return b
}

func fakeEOF() []byte {
	b := []byte{0xfe}
	b = wire.PutUint16(b, 0)
	b = wire.PutUint16(b, 0x0002)
	return b
}
