package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	r := New(zerolog.Nop())
	defer r.CloseAll()

	id, err := r.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)

	require.NoError(t, r.Put(id, "user:1", []byte(`{"name":"ada"}`)))
	v, found, err := r.Get(id, "user:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"name":"ada"}`, string(v))

	existed, err := r.Delete(id, "user:1")
	require.NoError(t, err)
	assert.True(t, existed)

	_, found, err = r.Get(id, "user:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeysByPrefix(t *testing.T) {
	r := New(zerolog.Nop())
	defer r.CloseAll()

	id, err := r.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	for _, k := range []string{"b:2", "a:1", "b:1", "c"} {
		require.NoError(t, r.Put(id, k, []byte("x")))
	}

	keys, err := r.Keys(id, "b:")
	require.NoError(t, err)
	assert.Equal(t, []string{"b:1", "b:2"}, keys)

	all, err := r.Keys(id, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestReopenSamePathSharesHandle(t *testing.T) {
	r := New(zerolog.Nop())
	defer r.CloseAll()

	path := filepath.Join(t.TempDir(), "app.db")
	a, err := r.Open(path)
	require.NoError(t, err)
	b, err := r.Open(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, []string{a}, r.Handles())
}

func TestUnknownAndClosedHandles(t *testing.T) {
	r := New(zerolog.Nop())

	_, _, err := r.Get("nope", "k")
	assert.ErrorIs(t, err, ErrUnknownHandle)

	id, err := r.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	assert.True(t, r.Close(id))
	assert.False(t, r.Close(id))

	err = r.Put(id, "k", []byte("v"))
	assert.ErrorIs(t, err, ErrUnknownHandle)
}
