package roster

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	// FieldSize is the fixed width of the name and address fields. Both hold
	// at most FieldSize-1 octets followed by a NUL.
	FieldSize = 256

	// RecordSize is the width of one encoded record: name, address and hours
	// laid out contiguously with no padding.
	RecordSize = 2*FieldSize + 4
)

/*
Record is one employee entry. The in-memory layout matches the on-disk and
on-wire layout except for byte order, which is normalised to big-endian when
encoded:

----------------------------------------
| name(256) | address(256) | hours(4)  |
----------------------------------------
*/
type Record struct {
	Name    [FieldSize]byte
	Address [FieldSize]byte
	Hours   uint32
}

// NewRecord builds a record from raw field values. Inputs longer than
// FieldSize-1 octets are truncated; the final octet is always NUL.
func NewRecord(name, address string, hours uint32) Record {
	var r Record
	setField(&r.Name, name)
	setField(&r.Address, address)
	r.Hours = hours
	return r
}

func setField(dst *[FieldSize]byte, s string) {
	if len(s) > FieldSize-1 {
		s = s[:FieldSize-1]
	}
	copy(dst[:], s)
}

// NameString returns the name field up to its NUL terminator.
func (r *Record) NameString() string {
	return cstring(r.Name[:])
}

// AddressString returns the address field up to its NUL terminator.
func (r *Record) AddressString() string {
	return cstring(r.Address[:])
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// MarshalBinary encodes the record in its fixed 516-byte wire/disk form.
func (r *Record) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	if err := binary.Write(buf, binary.BigEndian, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a record from its fixed 516-byte form.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("record is %d bytes, want %d", len(data), RecordSize)
	}
	return binary.Read(bytes.NewReader(data), binary.BigEndian, r)
}

// parseAddString splits a "name-address-hours" string into a record. Exactly
// three fields are required, none may be empty and hours must be a decimal
// unsigned 32-bit integer.
func parseAddString(s string) (Record, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return Record{}, fmt.Errorf("%w: got %d fields", ErrMalformedAddString, len(parts))
	}

	name, address, hoursStr := parts[0], parts[1], parts[2]
	if name == "" || address == "" {
		return Record{}, fmt.Errorf("%w: empty field", ErrMalformedAddString)
	}

	hours, err := strconv.ParseUint(hoursStr, 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("%w: invalid hours %q", ErrMalformedAddString, hoursStr)
	}

	return NewRecord(name, address, uint32(hours)), nil
}
