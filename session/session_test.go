package session

import (
	"context"
	"net"
	"testing"
	"time"
)

func okPacketPayload() []byte {
	return []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00}
}

func TestHandshakeMysqlNativePassword(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	fs := &fakeServer{t: t, conn: serverConn}

	type connectResult struct {
		sess *Session
		err  error
	}
	resultCh := make(chan connectResult, 1)
	go func() {
		s, err := Connect(context.Background(), clientConn, Options{
			User:     "root",
			Password: "secret",
			Timeout:  2 * time.Second,
		})
		resultCh <- connectResult{s, err}
	}()

	fs.send(minimalInitialHandshake())
	_ = fs.recv() // handshake response
	fs.send(okPacketPayload())
	_ = fs.recv() // SET NAMES ...
	fs.send(okPacketPayload())

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("Connect: %v", res.err)
	}
	if res.sess.State() != StateEstablished {
		t.Fatalf("state = %v, want established", res.sess.State())
	}
	fs.close()
}

func TestHandshakeServerRejectsWithError(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	fs := &fakeServer{t: t, conn: serverConn}

	errCh := make(chan error, 1)
	go func() {
		_, err := Connect(context.Background(), clientConn, Options{User: "root", Password: "wrong", Timeout: 2 * time.Second})
		errCh <- err
	}()

	fs.send(minimalInitialHandshake())
	_ = fs.recv()

	var errPayload []byte
	errPayload = append(errPayload, 0xff)
	errPayload = append(errPayload, 0x15, 0x04) // 1045 access denied
	errPayload = append(errPayload, '#')
	errPayload = append(errPayload, []byte("28000")...)
	errPayload = append(errPayload, []byte("Access denied")...)
	fs.send(errPayload)

	err := <-errCh
	if err == nil {
		t.Fatal("expected error")
	}
	var serverErr *ServerError
	if !asServerError(err, &serverErr) {
		t.Fatalf("got %T: %v, want *ServerError", err, err)
	}
	if serverErr.Code != 1045 {
		t.Errorf("code = %d, want 1045", serverErr.Code)
	}
	fs.close()
}

func asServerError(err error, target **ServerError) bool {
	se, ok := err.(*ServerError)
	if !ok {
		return false
	}
	*target = se
	return true
}
