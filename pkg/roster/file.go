package roster

import (
	"bytes"
	"fmt"

	"github.com/mr-karan/rosterdb/internal/datafile"
)

// readHeader reads the file header and validates magic, version and the
// declared filesize against the actual file length.
func readHeader(df *datafile.DataFile) (FileHeader, error) {
	var (
		hdr FileHeader
		b   [HeaderSize]byte
	)

	n, err := df.ReadAt(b[:], 0)
	if n != HeaderSize {
		return hdr, fmt.Errorf("%w: read %d of %d bytes", ErrTruncatedHeader, n, HeaderSize)
	}
	if err != nil {
		return hdr, fmt.Errorf("error reading db header: %w", err)
	}

	if err := hdr.decode(b[:]); err != nil {
		return hdr, fmt.Errorf("error decoding db header: %w", err)
	}

	if hdr.Magic != headerMagic {
		return hdr, fmt.Errorf("%w: expected 0x%X, got 0x%X", ErrBadMagic, headerMagic, hdr.Magic)
	}
	if hdr.Version != FileVersion {
		return hdr, fmt.Errorf("%w: expected %d, got %d", ErrBadVersion, FileVersion, hdr.Version)
	}

	size, err := df.Size()
	if err != nil {
		return hdr, err
	}
	if int64(hdr.Filesize) != size {
		return hdr, fmt.Errorf("%w: header says %d, file is %d", ErrSizeMismatch, hdr.Filesize, size)
	}

	return hdr, nil
}

// loadAll reads count contiguous records from just past the header.
func loadAll(df *datafile.DataFile, count uint16) ([]Record, error) {
	if count == 0 {
		return nil, nil
	}

	buf := make([]byte, int(count)*RecordSize)
	n, err := df.ReadAt(buf, HeaderSize)
	if n != len(buf) {
		return nil, fmt.Errorf("%w: read %d of %d bytes", ErrShortRead, n, len(buf))
	}
	if err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	records := make([]Record, count)
	for i := range records {
		off := i * RecordSize
		if err := records[i].UnmarshalBinary(buf[off : off+RecordSize]); err != nil {
			return nil, fmt.Errorf("error decoding record %d: %w", i, err)
		}
	}

	return records, nil
}

// saveAll rewrites the whole file from the in-memory state: header first, then
// every record, then a truncate to the exact expected length. The header count
// and filesize are recomputed from the record list before writing.
func saveAll(df *datafile.DataFile, hdr FileHeader, records []Record) error {
	hdr.Count = uint16(len(records))
	hdr.Filesize = uint32(HeaderSize + len(records)*RecordSize)

	buf := bytes.NewBuffer(make([]byte, 0, hdr.Filesize))
	if err := hdr.encode(buf); err != nil {
		return fmt.Errorf("error encoding db header: %w", err)
	}
	for i := range records {
		b, err := records[i].MarshalBinary()
		if err != nil {
			return fmt.Errorf("error encoding record %d: %w", i, err)
		}
		buf.Write(b)
	}

	if err := df.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("error writing db file: %w", err)
	}
	if err := df.Truncate(int64(hdr.Filesize)); err != nil {
		return fmt.Errorf("error truncating db file: %w", err)
	}
	if err := df.Sync(); err != nil {
		return fmt.Errorf("error syncing db file: %w", err)
	}

	return nil
}
