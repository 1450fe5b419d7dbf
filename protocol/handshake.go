package protocol

import (
	"bytes"
	"fmt"

	"github.com/riftsql/mysql/wire"
)

// MinProtocolVersion is the lowest protocol_version this client accepts.
const MinProtocolVersion = 10

// InitialHandshake is the decoded Protocol::Handshake packet the server
// sends as the first packet of a new connection.
type InitialHandshake struct {
	ProtocolVersion byte
	ServerVersion   string
	ConnectionID    uint32
	AuthPluginData  []byte // reassembled part1 ++ part2, NUL trimmed
	Capabilities    CapabilityFlag
	Charset         byte
	StatusFlags     StatusFlag
	AuthPluginName  string
}

// DecodeInitialHandshake decodes the server's initial handshake packet.
func DecodeInitialHandshake(payload []byte) (*InitialHandshake, error) {
	if len(payload) < 1 {
		return nil, ErrMalformedPacket
	}
	h := &InitialHandshake{ProtocolVersion: payload[0]}
	if h.ProtocolVersion < MinProtocolVersion {
		return nil, fmt.Errorf("protocol: unsupported protocol version %d: %w", h.ProtocolVersion, ErrOldProtocol)
	}

	pos := 1
	verBytes, n, ok := wire.ReadNullTerminatedString(payload[pos:])
	if !ok {
		return nil, ErrMalformedPacket
	}
	h.ServerVersion = string(verBytes)
	pos += n

	if len(payload) < pos+4+8+1 {
		return nil, ErrMalformedPacket
	}
	h.ConnectionID = wire.Uint32(payload[pos : pos+4])
	pos += 4

	authData := append([]byte(nil), payload[pos:pos+8]...)
	pos += 8

	pos++ // filler, always 0x00

	if len(payload) < pos+2 {
		return nil, ErrMalformedPacket
	}
	capLow := wire.Uint16(payload[pos : pos+2])
	pos += 2
	h.Capabilities = CapabilityFlag(capLow)

	if len(payload) <= pos {
		// Pre-4.1-style short handshake: no more fields.
		h.AuthPluginData = authData
		return h, nil
	}

	if len(payload) < pos+1+2+2+1+10 {
		return nil, ErrMalformedPacket
	}
	h.Charset = payload[pos]
	pos++
	h.StatusFlags = StatusFlag(wire.Uint16(payload[pos : pos+2]))
	pos += 2
	capHigh := wire.Uint16(payload[pos : pos+2])
	h.Capabilities |= CapabilityFlag(capHigh) << 16
	pos += 2
	authDataLen := int(payload[pos])
	pos++
	pos += 10 // reserved

	if h.Capabilities.Has(ClientSecureConnection) {
		// len = max(13, auth-plugin-data-length - 8), .
		part2Len := authDataLen - 8
		if part2Len < 13 {
			part2Len = 13
		}
		if len(payload) < pos+part2Len {
			return nil, ErrMalformedPacket
		}
		part2 := payload[pos : pos+part2Len]
		pos += part2Len
		// Trim the trailing NUL terminator documented in .
		if idx := bytes.IndexByte(part2, 0x00); idx >= 0 {
			part2 = part2[:idx]
		}
		authData = append(authData, part2...)
	}

	if h.Capabilities.Has(ClientPluginAuth) && len(payload) > pos {
		nameBytes, _, ok := wire.ReadNullTerminatedString(payload[pos:])
		if !ok {
			nameBytes = wire.EOFString(payload[pos:])
		}
		h.AuthPluginName = string(nameBytes)
	}

	h.AuthPluginData = authData
	return h, nil
}

// SSLRequest is the 32-byte frame sent to request a TLS upgrade before the
// handshake response.
type SSLRequest struct {
	Capabilities   CapabilityFlag
	MaxPacketSize  uint32
	Charset        byte
}

// Encode writes the 32-byte SSL request frame.
func (r SSLRequest) Encode() []byte {
	b := make([]byte, 0, 32)
	b = wire.PutUint32(b, uint32(r.Capabilities))
	b = wire.PutUint32(b, r.MaxPacketSize)
	b = append(b, r.Charset)
	b = append(b, make([]byte, 23)...)
	return b
}

// HandshakeResponse is the v4.1 Protocol::HandshakeResponse packet the
// client sends after (optionally) upgrading to TLS.
type HandshakeResponse struct {
	Capabilities   CapabilityFlag
	Charset        byte
	Username       string
	AuthResponse   []byte
	Database       string
	AuthPluginName string
}

// Encode writes the handshake response packet payload.
func (r HandshakeResponse) Encode() []byte {
	b := make([]byte, 0, 64+len(r.Username)+len(r.AuthResponse)+len(r.Database))
	b = wire.PutUint32(b, uint32(r.Capabilities))
	b = wire.PutUint32(b, MaxPacketSize)
	b = append(b, r.Charset)
	b = append(b, make([]byte, 23)...)
	b = wire.AppendNullTerminatedString(b, r.Username)
	b = wire.AppendLengthEncodedString(b, r.AuthResponse)
	if r.Capabilities.Has(ClientConnectWithDB) {
		b = wire.AppendNullTerminatedString(b, r.Database)
	}
	b = wire.AppendNullTerminatedString(b, r.AuthPluginName)
	return b
}

// AuthSwitchRequest is sent by the server mid-handshake to request a
// different auth plugin.
type AuthSwitchRequest struct {
	PluginName string
	PluginData []byte
}

// DecodeAuthSwitchRequest decodes an AuthSwitchRequest packet. The caller is
// responsible for having already checked payload[0] == 0xfe.
func DecodeAuthSwitchRequest(payload []byte) (*AuthSwitchRequest, error) {
	if len(payload) < 1 || payload[0] != tagAuthSwitch {
		return nil, ErrUnexpectedPacket
	}
	nameBytes, n, ok := wire.ReadNullTerminatedString(payload[1:])
	if !ok {
		return nil, ErrMalformedPacket
	}
	data := payload[1+n:]
	// The plugin data is conventionally NUL-terminated too; trim a trailing
	// NUL if present, mirroring how auth-plugin-data-part2 is trimmed above.
	if len(data) > 0 && data[len(data)-1] == 0x00 {
		data = data[:len(data)-1]
	}
	return &AuthSwitchRequest{PluginName: string(nameBytes), PluginData: data}, nil
}

// EncodeAuthSwitchResponse writes the raw auth-response bytes the client
// sends back after an AuthSwitchRequest.
func EncodeAuthSwitchResponse(authResponse []byte) []byte {
	return append([]byte(nil), authResponse...)
}
