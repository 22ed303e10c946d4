package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Fixed body sizes per message kind. Requests and responses with a body carry
// exactly these many bytes; ListResp additionally streams raw record images
// after the framed count, outside the declared length.
const (
	HelloBodySize  = 2
	StatusBodySize = 4
	CountBodySize  = 2

	// AddDataSize is the fixed size of an AddReq body: the NUL-padded
	// "name-address-hours" string.
	AddDataSize = 1024
)

// Response status codes, sent as a big-endian signed 32-bit integer.
const (
	StatusOK    int32 = 0
	StatusError int32 = -1
)

// EncodeHello returns a hello request/response body carrying a protocol version.
func EncodeHello(version uint16) []byte {
	b := make([]byte, HelloBodySize)
	binary.BigEndian.PutUint16(b, version)
	return b
}

// ParseHello extracts the protocol version from a hello body.
func ParseHello(body []byte) (uint16, error) {
	if len(body) != HelloBodySize {
		return 0, fmt.Errorf("%w: hello body is %d bytes, want %d", ErrBodySize, len(body), HelloBodySize)
	}
	return binary.BigEndian.Uint16(body), nil
}

// EncodeStatus returns an AddResp/DelResp body carrying a status code.
func EncodeStatus(status int32) []byte {
	b := make([]byte, StatusBodySize)
	binary.BigEndian.PutUint32(b, uint32(status))
	return b
}

// ParseStatus extracts the status code from an AddResp/DelResp body.
func ParseStatus(body []byte) (int32, error) {
	if len(body) != StatusBodySize {
		return 0, fmt.Errorf("%w: status body is %d bytes, want %d", ErrBodySize, len(body), StatusBodySize)
	}
	return int32(binary.BigEndian.Uint32(body)), nil
}

// EncodeCount returns a ListResp body carrying the record count.
func EncodeCount(count uint16) []byte {
	b := make([]byte, CountBodySize)
	binary.BigEndian.PutUint16(b, count)
	return b
}

// ParseCount extracts the record count from a ListResp body.
func ParseCount(body []byte) (uint16, error) {
	if len(body) != CountBodySize {
		return 0, fmt.Errorf("%w: list body is %d bytes, want %d", ErrBodySize, len(body), CountBodySize)
	}
	return binary.BigEndian.Uint16(body), nil
}

// PackAddString lays out an add string as a fixed-width, NUL-padded AddReq
// body. The string must leave room for at least one trailing NUL.
func PackAddString(s string) ([]byte, error) {
	if len(s) >= AddDataSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrAddStringTooLong, len(s), AddDataSize-1)
	}
	b := make([]byte, AddDataSize)
	copy(b, s)
	return b, nil
}

// UnpackAddString extracts the add string from an AddReq body, cutting at the
// first NUL.
func UnpackAddString(body []byte) (string, error) {
	if len(body) != AddDataSize {
		return "", fmt.Errorf("%w: add body is %d bytes, want %d", ErrBodySize, len(body), AddDataSize)
	}
	if i := bytes.IndexByte(body, 0); i >= 0 {
		return string(body[:i]), nil
	}
	return string(body), nil
}
