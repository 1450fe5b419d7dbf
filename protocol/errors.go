package protocol

import "errors"

// ErrUnexpectedPacket is returned when a codec's caller expected one packet
// shape and the wire delivered another.
var ErrUnexpectedPacket = errors.New("protocol: unexpected packet")

// ErrMalformedPacket is returned when a packet's declared shape does not
// match its actual length.
var ErrMalformedPacket = errors.New("protocol: malformed packet")

// ErrOldProtocol is returned when the server's handshake announces a
// protocol version below the minimum this client supports.
var ErrOldProtocol = errors.New("protocol: unsupported (pre-4.1) protocol version")
