package roster

import "errors"

var (
	ErrLocked             = errors.New("a lockfile already exists")
	ErrReadOnly           = errors.New("operation not allowed in read only mode")
	ErrMalformedAddString = errors.New(`malformed add string, want "name-address-hours"`)
	ErrRosterFull         = errors.New("record count is at its maximum")
	ErrEmptyRoster        = errors.New("no records to remove")

	ErrBadMagic        = errors.New("improper header magic")
	ErrBadVersion      = errors.New("improper header version")
	ErrTruncatedHeader = errors.New("truncated file header")
	ErrSizeMismatch    = errors.New("header filesize does not match actual file size")
	ErrShortRead       = errors.New("file shorter than the declared record count")
)
