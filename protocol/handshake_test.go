package protocol

import (
	"bytes"
	"testing"

	"github.com/riftsql/mysql/wire"
)

func buildInitialHandshakePayload(authPart1, authPart2 []byte, plugin string) []byte {
	var b []byte
	b = append(b, 10) // protocol version
	b = wire.AppendNullTerminatedString(b, "8.0.34")
	b = wire.PutUint32(b, 42) // connection id
	b = append(b, authPart1...)
	b = append(b, 0x00) // filler
	caps := uint32(ClientProtocol41 | ClientSecureConnection | ClientPluginAuth)
	b = wire.PutUint16(b, uint16(caps))
	b = append(b, 0x21)          // charset
	b = wire.PutUint16(b, 0x02) // status flags
	b = wire.PutUint16(b, uint16(caps>>16))
	b = append(b, byte(len(authPart1)+len(authPart2)+1))
	b = append(b, make([]byte, 10)...)
	b = append(b, authPart2...)
	b = wire.AppendNullTerminatedString(b, plugin)
	return b
}

func TestDecodeInitialHandshake(t *testing.T) {
	part1 := []byte("12345678")
	part2 := append([]byte("123456789012"), 0x00) // 13 bytes incl NUL
	payload := buildInitialHandshakePayload(part1, part2, PluginMysqlNativePassword)

	h, err := DecodeInitialHandshake(payload)
	if err != nil {
		t.Fatalf("DecodeInitialHandshake: %v", err)
	}
	if h.ConnectionID != 42 {
		t.Errorf("ConnectionID = %d, want 42", h.ConnectionID)
	}
	if h.AuthPluginName != PluginMysqlNativePassword {
		t.Errorf("AuthPluginName = %q", h.AuthPluginName)
	}
	wantAuthData := append(append([]byte{}, part1...), part2[:12]...)
	if !bytes.Equal(h.AuthPluginData, wantAuthData) {
		t.Errorf("AuthPluginData = %x, want %x", h.AuthPluginData, wantAuthData)
	}
	if !h.Capabilities.Has(ClientPluginAuth) {
		t.Error("expected ClientPluginAuth capability to survive the low/high recombination")
	}
}

func TestHandshakeResponseEncodeDecodeShape(t *testing.T) {
	resp := HandshakeResponse{
		Capabilities:   ClientCapabilities | ClientConnectWithDB,
		Charset:        0x21,
		Username:       "root",
		AuthResponse:   []byte{1, 2, 3, 4},
		Database:       "testdb",
		AuthPluginName: PluginMysqlNativePassword,
	}
	encoded := resp.Encode()

	if len(encoded) < 32 {
		t.Fatalf("encoded response too short: %d bytes", len(encoded))
	}
	gotCaps := wire.Uint32(encoded[0:4])
	if CapabilityFlag(gotCaps) != resp.Capabilities {
		t.Errorf("capabilities = %x, want %x", gotCaps, resp.Capabilities)
	}
	if encoded[12] != 0x21 {
		t.Errorf("charset = %x, want 0x21", encoded[12])
	}

	pos := 32
	user, n, ok := wire.ReadNullTerminatedString(encoded[pos:])
	if !ok || string(user) != "root" {
		t.Fatalf("username decode failed: %q", user)
	}
	pos += n
	authResp, _, n, err := wire.ReadLengthEncodedString(encoded[pos:])
	if err != nil || !bytes.Equal(authResp, resp.AuthResponse) {
		t.Fatalf("auth response decode failed: %x, err=%v", authResp, err)
	}
	pos += n
	db, n, ok := wire.ReadNullTerminatedString(encoded[pos:])
	if !ok || string(db) != "testdb" {
		t.Fatalf("database decode failed: %q", db)
	}
	pos += n
	plugin, _, ok := wire.ReadNullTerminatedString(encoded[pos:])
	if !ok || string(plugin) != PluginMysqlNativePassword {
		t.Fatalf("plugin decode failed: %q", plugin)
	}
}

func TestSSLRequestEncodeShape(t *testing.T) {
	req := SSLRequest{Capabilities: ClientCapabilities | ClientSSL, MaxPacketSize: MaxPacketSize, Charset: 0x21}
	encoded := req.Encode()
	if len(encoded) != 32 {
		t.Fatalf("SSL request must be 32 bytes, got %d", len(encoded))
	}
	for _, b := range encoded[9:32] {
		if b != 0 {
			t.Fatalf("expected trailing filler bytes to be zero, got %v", encoded[9:32])
		}
	}
}

func TestDecodeAuthSwitchRequest(t *testing.T) {
	var payload []byte
	payload = append(payload, tagAuthSwitch)
	payload = wire.AppendNullTerminatedString(payload, PluginMysqlNativePassword)
	challenge := bytes.Repeat([]byte{0x7}, 20)
	payload = append(payload, challenge...)
	payload = append(payload, 0x00)

	req, err := DecodeAuthSwitchRequest(payload)
	if err != nil {
		t.Fatalf("DecodeAuthSwitchRequest: %v", err)
	}
	if req.PluginName != PluginMysqlNativePassword {
		t.Errorf("PluginName = %q", req.PluginName)
	}
	if !bytes.Equal(req.PluginData, challenge) {
		t.Errorf("PluginData = %x, want %x", req.PluginData, challenge)
	}
}
