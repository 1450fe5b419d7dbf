package wire

import "errors"

// MaxPayloadSize is the largest payload this implementation will encode into
// a single packet. Payloads >= 2^24-1 bytes are rejected rather than
// silently split across multiple packets the way the upstream driver's
// maxPacketSize/0xffffff-per-chunk scheme does.
const MaxPayloadSize = 1<<24 - 1

// HeaderSize is the length of a packet header: a 3-byte little-endian
// payload length followed by a 1-byte sequence id.
const HeaderSize = 4

// ErrPayloadTooLarge is returned by Frame when the payload does not fit in
// the 3-byte length field.
var ErrPayloadTooLarge = errors.New("wire: payload exceeds maximum packet size")

// Packet is one decoded MySQL protocol packet.
type Packet struct {
	SequenceID byte
	Payload    []byte
}

// Frame prepends a MySQL packet header to payload for transmission at the
// given sequence id and returns the full wire-ready packet. The returned
// slice aliases a freshly allocated buffer; payload itself is not retained.
func Frame(payload []byte, sequenceID byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	out := make([]byte, 0, HeaderSize+len(payload))
	out = PutUint24(out, uint32(len(payload)))
	out = append(out, sequenceID)
	out = append(out, payload...)
	return out, nil
}

// Framer reassembles a stream of arbitrarily sized byte chunks into complete
// MySQL packets. It owns a rolling buffer of bytes not yet consumed into a
// full packet; chunks handed to Feed may split a header or a payload at any
// byte boundary, and bytes left over after the last complete packet is
// extracted carry over to the next call.
type Framer struct {
	buf []byte
}

// NewFramer returns an empty Framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the reassembly buffer and returns every packet that
// can now be fully extracted, in arrival order. Bytes belonging to a packet
// that is not yet complete remain buffered for the next call.
func (f *Framer) Feed(chunk []byte) []Packet {
	if len(chunk) > 0 {
		f.buf = append(f.buf, chunk...)
	}

	var packets []Packet
	for {
		if len(f.buf) < HeaderSize {
			break
		}
		payloadLen := int(Uint24(f.buf[:3]))
		total := payloadLen + HeaderSize
		if len(f.buf) < total {
			break
		}
		packets = append(packets, Packet{
			SequenceID: f.buf[3],
			Payload:    append([]byte(nil), f.buf[HeaderSize:total]...),
		})
		f.buf = f.buf[total:]
	}

	// Compact so the backing array does not grow unboundedly across many
	// small Feed calls that each leave a partial header/payload behind.
	if len(f.buf) > 0 {
		remaining := make([]byte, len(f.buf))
		copy(remaining, f.buf)
		f.buf = remaining
	} else {
		f.buf = nil
	}

	return packets
}

// Buffered returns the number of bytes currently held that do not yet form
// a complete packet.
func (f *Framer) Buffered() int { return len(f.buf) }
