package roster

import (
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitCreate(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
	)

	store, err := Init(WithPath(dbPath), WithCreate())
	assert.NoError(err)
	assert.NotNil(store)
	assert.Equal(0, store.Len())

	t.Run("CreateExisting", func(t *testing.T) {
		// The first store holds the lock, so drop it before retrying.
		assert.NoError(store.Shutdown())

		_, err := Init(WithPath(dbPath), WithCreate())
		assert.ErrorIs(err, fs.ErrExist)
	})
}

func TestLocking(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
	)

	store, err := Init(WithPath(dbPath), WithCreate())
	assert.NoError(err)

	_, err = Init(WithPath(dbPath))
	assert.ErrorIs(err, ErrLocked)

	assert.NoError(store.Shutdown())

	// Lock is released after shutdown.
	store, err = Init(WithPath(dbPath))
	assert.NoError(err)
	assert.NoError(store.Shutdown())
}

func TestEngineOps(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
	)

	store, err := Init(WithPath(dbPath), WithCreate())
	assert.NoError(err)
	defer store.Shutdown()

	t.Run("Add", func(t *testing.T) {
		assert.NoError(store.Add("Alice-1 Main St-40"))
		assert.Equal(1, store.Len())
	})

	t.Run("AddMalformed", func(t *testing.T) {
		for _, addstr := range []string{
			"",
			"Alice",
			"Alice-1 Main St",
			"Alice-1 Main St-40-extra",
			"-1 Main St-40",
			"Alice--40",
			"Alice-1 Main St-",
			"Alice-1 Main St-abc",
			"Alice-1 Main St--1",
			"Alice-1 Main St-4294967296",
		} {
			assert.ErrorIs(store.Add(addstr), ErrMalformedAddString, "addstr %q", addstr)
		}
		assert.Equal(1, store.Len(), "failed adds must not change the roster")
	})

	t.Run("AddTruncatesLongFields", func(t *testing.T) {
		long := strings.Repeat("n", 300)
		assert.NoError(store.Add(long + "-2 Oak Ave-38"))

		var last Record
		assert.NoError(store.Fold(func(r Record) error {
			last = r
			return nil
		}))
		assert.Len(last.NameString(), FieldSize-1)
		assert.Equal(byte(0), last.Name[FieldSize-1], "final octet is always NUL")
		assert.Equal("2 Oak Ave", last.AddressString())
		assert.Equal(uint32(38), last.Hours)
	})

	t.Run("HoursBounds", func(t *testing.T) {
		assert.NoError(store.Add("Carol-3 Elm Rd-4294967295"))
	})

	t.Run("FoldOrder", func(t *testing.T) {
		names := []string{}
		assert.NoError(store.Fold(func(r Record) error {
			names = append(names, r.NameString())
			return nil
		}))
		assert.Equal(3, len(names))
		assert.Equal("Alice", names[0])
		assert.Equal("Carol", names[2])
	})

	t.Run("RemoveLast", func(t *testing.T) {
		assert.NoError(store.RemoveLast())
		assert.Equal(2, store.Len())

		names := []string{}
		assert.NoError(store.Fold(func(r Record) error {
			names = append(names, r.NameString())
			return nil
		}))
		assert.NotContains(names, "Carol")
	})

	t.Run("RemoveFromEmpty", func(t *testing.T) {
		assert.NoError(store.RemoveLast())
		assert.NoError(store.RemoveLast())
		assert.Equal(0, store.Len())
		assert.ErrorIs(store.RemoveLast(), ErrEmptyRoster)
	})
}

func TestPersistenceRoundTrip(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
	)

	store, err := Init(WithPath(dbPath), WithCreate())
	assert.NoError(err)

	assert.NoError(store.Add("Alice-1 Main St-40"))
	assert.NoError(store.Add("Bob-2 Oak Ave-38"))
	assert.NoError(store.Add("Carol-3 Elm Rd-35"))
	assert.NoError(store.RemoveLast())
	assert.NoError(store.Shutdown())

	// Re-open and verify the surviving records came back identical.
	store, err = Init(WithPath(dbPath))
	assert.NoError(err)
	defer store.Shutdown()

	assert.Equal(2, store.Len())

	records := []Record{}
	assert.NoError(store.Fold(func(r Record) error {
		records = append(records, r)
		return nil
	}))
	assert.Equal("Alice", records[0].NameString())
	assert.Equal("1 Main St", records[0].AddressString())
	assert.Equal(uint32(40), records[0].Hours)
	assert.Equal("Bob", records[1].NameString())
	assert.Equal(uint32(38), records[1].Hours)
}

func TestReadOnly(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
	)

	store, err := Init(WithPath(dbPath), WithCreate())
	assert.NoError(err)
	assert.NoError(store.Add("Alice-1 Main St-40"))
	assert.NoError(store.Shutdown())

	store, err = Init(WithPath(dbPath), WithReadOnly())
	assert.NoError(err)
	assert.Equal(1, store.Len())
	assert.ErrorIs(store.Add("Bob-2 Oak Ave-38"), ErrReadOnly)
	assert.ErrorIs(store.RemoveLast(), ErrReadOnly)
	assert.NoError(store.Shutdown())
}

func TestRecordCodec(t *testing.T) {
	assert := assert.New(t)

	r := NewRecord("Alice", "1 Main St", 40)
	b, err := r.MarshalBinary()
	assert.NoError(err)
	assert.Len(b, RecordSize)

	var got Record
	assert.NoError(got.UnmarshalBinary(b))
	assert.Equal(r, got)

	assert.Error(got.UnmarshalBinary(b[:10]))
}
