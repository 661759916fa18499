package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	value, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("a"))
	require.Equal(t, 2, batch.Len())

	// Nothing is visible before Write.
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, batch.Write())
	_, err = db.Get([]byte("a"))
	require.ErrorIs(t, err, ErrNotFound)
	value, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)

	require.NoError(t, db.Delete([]byte("b")))
	_, err = db.Get([]byte("b"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	exerciseDatabase(t, db)
	require.NoError(t, db.Close())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("value")
	require.NoError(t, db.Put([]byte("k"), buf))
	buf[0] = 'X'
	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), stored)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "vault.bolt"), nil)
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.bolt")
	db, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	batch := db.NewBatch()
	batch.Put([]byte("k"), []byte("v"))
	require.NoError(t, batch.Write())
	require.NoError(t, db.Close())

	db, err = NewBoltDB(path, nil)
	require.NoError(t, err)
	defer db.Close()
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}
