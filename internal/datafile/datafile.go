package datafile

import (
	"fmt"
	"os"
)

// DataFile is the single on-disk database file. It is held open read-write for
// the lifetime of the owning store; all offsets are absolute.
type DataFile struct {
	f    *os.File
	path string
}

// Create opens a new db file exclusively. It fails if path already exists.
func Create(path string) (*DataFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("error creating db file: %w", err)
	}
	return &DataFile{f: f, path: path}, nil
}

// Open opens an existing db file for reading and writing.
func Open(path string) (*DataFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening db file: %w", err)
	}
	return &DataFile{f: f, path: path}, nil
}

// Path returns the filesystem path of the db file.
func (d *DataFile) Path() string {
	return d.path
}

// Size returns the size of the db file in bytes.
func (d *DataFile) Size() (int64, error) {
	stat, err := d.f.Stat()
	if err != nil {
		return -1, fmt.Errorf("error fetching file stats: %w", err)
	}
	return stat.Size(), nil
}

// ReadAt fills b from the given offset. A short read is an error.
func (d *DataFile) ReadAt(b []byte, off int64) (int, error) {
	return d.f.ReadAt(b, off)
}

// WriteAt writes all of b at the given offset. A partial write is an error.
func (d *DataFile) WriteAt(b []byte, off int64) error {
	n, err := d.f.WriteAt(b, off)
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("partial write: wrote %d of %d bytes", n, len(b))
	}
	return nil
}

// Truncate resizes the db file to exactly size bytes.
func (d *DataFile) Truncate(size int64) error {
	return d.f.Truncate(size)
}

// Sync flushes the filesystem's in-memory buffers to disk.
func (d *DataFile) Sync() error {
	return d.f.Sync()
}

// Close closes the underlying file descriptor.
func (d *DataFile) Close() error {
	return d.f.Close()
}
