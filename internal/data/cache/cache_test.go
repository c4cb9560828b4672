package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvbeek/pdepend/internal/core/errors"
)

func drivers(t *testing.T) map[string]Driver {
	t.Helper()
	dir := t.TempDir()
	file, err := NewFile(filepath.Join(dir, "files"))
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(dir, "cache.db"))
	require.NoError(t, err)
	out := map[string]Driver{
		"memory": NewMemory(0),
		"file":   file,
		"sqlite": db,
	}
	t.Cleanup(func() {
		for _, d := range out {
			_ = d.Close()
		}
	})
	return out
}

func TestDriversStoreAndRestore(t *testing.T) {
	for name, d := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			key := Key{Type: TypeTokens, ID: "unit-1"}
			require.NoError(t, d.Store(key, []byte(`[1,2,3]`), "abc"))

			got, err := d.Restore(key, "abc")
			require.NoError(t, err)
			assert.Equal(t, []byte(`[1,2,3]`), got)

			_, err = d.Restore(key, "other")
			assert.ErrorIs(t, err, ErrMiss)
			assert.True(t, IsMiss(err))

			_, err = d.Restore(Key{Type: TypeAST, ID: "unit-1"}, "abc")
			assert.True(t, IsMiss(err))

			require.NoError(t, d.Store(key, []byte(`[4]`), "def"))
			got, err = d.Restore(key, "def")
			require.NoError(t, err)
			assert.Equal(t, []byte(`[4]`), got)
		})
	}
}

func TestDriversRemoveByPattern(t *testing.T) {
	for name, d := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			keys := []Key{
				{Type: TypeTokens, ID: "a"},
				{Type: TypeTokens, ID: "b"},
				{Type: TypeMetrics, ID: "npath:a-1"},
			}
			for _, k := range keys {
				require.NoError(t, d.Store(k, []byte("x"), "h"))
			}

			require.NoError(t, d.Remove("tokens/*"))
			for _, k := range keys[:2] {
				_, err := d.Restore(k, "h")
				assert.True(t, IsMiss(err), "%s should be removed", k)
			}
			_, err := d.Restore(keys[2], "h")
			assert.NoError(t, err)

			require.NoError(t, d.Remove(""))
			_, err = d.Restore(keys[2], "h")
			assert.True(t, IsMiss(err))
		})
	}
}

func TestRemoveRejectsInvalidPattern(t *testing.T) {
	err := NewMemory(4).Remove("tokens/[")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))
}

func TestFileDriverCorruptEntryIsMiss(t *testing.T) {
	d, err := NewFile(t.TempDir())
	require.NoError(t, err)
	key := Key{Type: TypeAST, ID: "unit-9"}
	require.NoError(t, d.Store(key, []byte("payload"), "h"))

	require.NoError(t, os.WriteFile(d.path(key), []byte("{not json"), 0o644))

	_, err = d.Restore(key, "h")
	require.Error(t, err)
	assert.True(t, IsMiss(err))
	assert.True(t, errors.IsCode(err, errors.CodeCorruptCache))

	require.NoError(t, d.Remove(""))
	_, statErr := os.Stat(d.path(key))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSQLiteReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	d, err := OpenSQLite(path)
	require.NoError(t, err)
	key := Key{Type: TypeMetrics, ID: "ccn:u-1"}
	require.NoError(t, d.Store(key, []byte(`{"ccn":3}`), "h1"))
	require.NoError(t, d.Close())

	d, err = OpenSQLite(path)
	require.NoError(t, err)
	defer d.Close()
	got, err := d.Restore(key, "h1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ccn":3}`, string(got))
}

func TestSQLiteDiscardsEntriesOfOtherFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	d, err := OpenSQLite(path)
	require.NoError(t, err)
	key := Key{Type: TypeAST, ID: "u-1"}
	require.NoError(t, d.Store(key, []byte("snapshot"), "h1"))
	_, err = d.db.Exec(`PRAGMA user_version = 99`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = OpenSQLite(path)
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Restore(key, "h1")
	assert.True(t, IsMiss(err))
}

func TestOpenSQLiteRejectsDirectory(t *testing.T) {
	_, err := OpenSQLite(t.TempDir())
	assert.Error(t, err)
}

func TestMemoryDriverIsolatesBuffers(t *testing.T) {
	d := NewMemory(2)
	buf := []byte("abc")
	key := Key{Type: TypeTokens, ID: "u"}
	require.NoError(t, d.Store(key, buf, "h"))
	buf[0] = 'z'

	got, err := d.Restore(key, "h")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewMemory(2)
	a := Key{Type: TypeAST, ID: "a"}
	b := Key{Type: TypeAST, ID: "b"}
	c := Key{Type: TypeTokens, ID: "c"}
	require.NoError(t, m.Store(a, []byte("1"), "h"))
	require.NoError(t, m.Store(b, []byte("2"), "h"))
	_, err := m.Restore(a, "h")
	require.NoError(t, err)
	require.NoError(t, m.Store(c, []byte("3"), "h"))

	_, err = m.Restore(b, "h")
	assert.True(t, IsMiss(err), "b was least recently used")
	v, err := m.Restore(a, "h")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Remove("tokens/*"))
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Len())
}
