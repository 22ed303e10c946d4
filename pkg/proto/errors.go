package proto

import "errors"

var (
	ErrBadKind          = errors.New("unknown message kind")
	ErrFrameTooLarge    = errors.New("declared frame length exceeds buffer capacity")
	ErrBodySize         = errors.New("unexpected body size")
	ErrAddStringTooLong = errors.New("add string too long")
)
