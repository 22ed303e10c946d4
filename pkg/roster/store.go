package roster

import (
	"fmt"
	"math"
	"os"

	"github.com/zerodha/logf"
	"go.uber.org/multierr"

	"github.com/mr-karan/rosterdb/internal/datafile"
)

// Store owns the db file and the in-memory record list loaded from it. It is
// deliberately unsynchronised: a single owner (the server event loop, or a
// batch command) drives all mutations, and the file is rewritten once at
// Shutdown rather than per operation.
type Store struct {
	lo   logf.Logger
	opts *Options

	df     *datafile.DataFile
	flockF *os.File

	hdr     FileHeader
	records []Record
}

// initLogger initializes logger instance.
func initLogger(debug bool) logf.Logger {
	opts := logf.Opts{EnableCaller: true}
	if debug {
		opts.Level = logf.DebugLevel
	}
	return logf.New(opts)
}

// Init opens or creates a db file, validates its header and loads every record
// into memory.
func Init(cfg ...Config) (*Store, error) {
	opts := DefaultOptions()
	for _, c := range cfg {
		if err := c(opts); err != nil {
			return nil, err
		}
	}

	var (
		lo     = initLogger(opts.debug)
		flockF *os.File
		err    error
	)

	// If not running in a read only mode then take a lock on the db file to
	// ensure only one process writes to it.
	if !opts.readOnly {
		lockPath := lockFilePath(opts.path)
		if exists(lockPath) {
			return nil, ErrLocked
		}
		flockF, err = createFlockFile(lockPath)
		if err != nil {
			return nil, fmt.Errorf("error creating lockfile: %w", err)
		}
	}

	// Release the lock again if anything below fails.
	fail := func(err error) (*Store, error) {
		if flockF != nil {
			_ = destroyFlockFile(flockF)
		}
		return nil, err
	}

	var (
		df      *datafile.DataFile
		hdr     FileHeader
		records []Record
	)

	if opts.create {
		df, err = datafile.Create(opts.path)
		if err != nil {
			return fail(err)
		}
		hdr = newFileHeader()
		// Persist the fresh header immediately so the new file is valid even
		// if the process dies before a clean shutdown.
		if err := saveAll(df, hdr, nil); err != nil {
			return fail(err)
		}
	} else {
		df, err = datafile.Open(opts.path)
		if err != nil {
			return fail(err)
		}
		hdr, err = readHeader(df)
		if err != nil {
			return fail(err)
		}
		records, err = loadAll(df, hdr.Count)
		if err != nil {
			return fail(err)
		}
	}

	lo.Debug("opened roster db", "path", opts.path, "count", hdr.Count)

	return &Store{
		lo:      lo,
		opts:    opts,
		df:      df,
		flockF:  flockF,
		hdr:     hdr,
		records: records,
	}, nil
}

// Shutdown persists the in-memory state back to the db file, releases the file
// lock and closes all open file descriptors. A read-only store holds no lock and
// is not rewritten; Shutdown only closes its db file. It must be called on every
// store that Init returned; skipping it loses every mutation since startup.
func (s *Store) Shutdown() error {
	var errs error

	if !s.opts.readOnly {
		if err := saveAll(s.df, s.hdr, s.records); err != nil {
			s.lo.Error("error persisting db file", "error", err)
			errs = multierr.Append(errs, err)
		}
		if err := destroyFlockFile(s.flockF); err != nil {
			s.lo.Error("error destroying lock file", "error", err)
			errs = multierr.Append(errs, err)
		}
	}

	if err := s.df.Close(); err != nil {
		s.lo.Error("error closing db file", "error", err)
		errs = multierr.Append(errs, err)
	}

	return errs
}

// Add parses a "name-address-hours" string and appends the resulting record.
func (s *Store) Add(addstr string) error {
	if s.opts.readOnly {
		return ErrReadOnly
	}
	if len(s.records) >= math.MaxUint16 {
		return ErrRosterFull
	}

	record, err := parseAddString(addstr)
	if err != nil {
		return err
	}

	s.records = append(s.records, record)
	s.hdr.Count = uint16(len(s.records))

	s.lo.Debug("added record", "name", record.NameString(), "count", s.hdr.Count)
	return nil
}

// RemoveLast drops the final record.
func (s *Store) RemoveLast() error {
	if s.opts.readOnly {
		return ErrReadOnly
	}
	if len(s.records) == 0 {
		return ErrEmptyRoster
	}

	s.records = s.records[:len(s.records)-1]
	s.hdr.Count = uint16(len(s.records))

	s.lo.Debug("removed last record", "count", s.hdr.Count)
	return nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Fold walks all records in insertion order and calls the given function for
// each one. Iteration stops at the first error.
func (s *Store) Fold(fn func(Record) error) error {
	for i := range s.records {
		if err := fn(s.records[i]); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the filesystem path of the db file.
func (s *Store) Path() string {
	return s.df.Path()
}
