package proto

import (
	"encoding/binary"
	"fmt"
)

// Version is the protocol version exchanged during the hello handshake.
// A peer announcing any other version is rejected.
const Version uint16 = 1

const (
	// FrameHeaderSize is the fixed size of the wire header preceding every body.
	FrameHeaderSize = 6

	// MaxMessageSize is the upper bound on a full frame (header + body).
	// It matches the per-connection receive buffer on the server.
	MaxMessageSize = 4096
)

// Kind identifies a wire message.
type Kind uint32

const (
	KindHelloReq Kind = iota
	KindHelloResp
	KindListReq
	KindListResp
	KindAddReq
	KindAddResp
	KindDelReq
	KindDelResp
	KindError

	kindMax
)

func (k Kind) String() string {
	switch k {
	case KindHelloReq:
		return "HelloReq"
	case KindHelloResp:
		return "HelloResp"
	case KindListReq:
		return "ListReq"
	case KindListResp:
		return "ListResp"
	case KindAddReq:
		return "AddReq"
	case KindAddResp:
		return "AddResp"
	case KindDelReq:
		return "DelReq"
	case KindDelResp:
		return "DelResp"
	case KindError:
		return "Error"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Frame is one decoded wire message. Body aliases the receive buffer it was
// decoded from and is only valid until the buffer is compacted.
type Frame struct {
	Kind Kind
	Body []byte
}

// Encode returns the wire form of a message: the 6-byte header with kind and
// body length in network byte order, followed by the body verbatim.
func Encode(kind Kind, body []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], uint32(kind))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(body)))
	copy(buf[FrameHeaderSize:], body)
	return buf
}

// TryDecode attempts to decode one frame from the first n bytes of buf, where
// len(buf) is the receive buffer capacity.
//
// ok reports whether a complete frame was decoded. total is the full frame
// length as soon as the header has arrived, and 0 while the header itself is
// still incomplete. A non-nil error means the stream is malformed beyond
// recovery (unknown kind, or a declared length that can never fit the buffer).
func TryDecode(buf []byte, n int) (frame Frame, total int, ok bool, err error) {
	if n < FrameHeaderSize {
		return Frame{}, 0, false, nil
	}

	kind := Kind(binary.BigEndian.Uint32(buf[0:4]))
	bodyLen := int(binary.BigEndian.Uint16(buf[4:6]))

	if kind >= kindMax {
		return Frame{}, 0, false, fmt.Errorf("%w: %d", ErrBadKind, uint32(kind))
	}
	if FrameHeaderSize+bodyLen > len(buf) {
		return Frame{}, 0, false, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, FrameHeaderSize+bodyLen)
	}

	total = FrameHeaderSize + bodyLen
	if n < total {
		return Frame{}, total, false, nil
	}

	return Frame{Kind: kind, Body: buf[FrameHeaderSize:total]}, total, true, nil
}
