package sqlite_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/kvengine/kv"
	"github.com/warp/kvengine/store/sqlite"
	"github.com/warp/kvengine/txnlog"
)

func newTestStore(t *testing.T) (*sqlite.Store, *txnlog.Spy) {
	spy := txnlog.NewSpy()
	store, err := sqlite.New(":memory:", spy, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, spy
}

func TestStore_CRUDHappyPath(t *testing.T) {
	store, spy := newTestStore(t)

	require.NoError(t, store.Put("users", "alice", []byte("id,name\n1,Alice\n")))

	exists, err := store.Exists("users", "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	value, _, found, err := store.Get("users", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("id,name\n1,Alice\n"), value)

	keys, err := store.List("users", "", 10)
	require.NoError(t, err)
	assert.Contains(t, keys, "alice")

	keys, err = store.List("users", "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, keys)

	require.NoError(t, store.Put("users", "alice", []byte("id,name\n1,Alice Liddell\n")))
	value, updatedAt, found, err := store.Get("users", "alice")
	require.NoError(t, err)
	assert.Greater(t, updatedAt, 0.0)
	require.True(t, found)
	assert.Equal(t, []byte("id,name\n1,Alice Liddell\n"), value)

	require.NoError(t, store.Delete("users", "alice"))
	exists, err = store.Exists("users", "alice")
	require.NoError(t, err)
	assert.False(t, exists)

	calls := spy.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, kv.OpInsertAfter, calls[0].Op)
	assert.Equal(t, kv.OpUpdateBefore, calls[1].Op)
	assert.Equal(t, kv.OpUpdateAfter, calls[2].Op)
	assert.Equal(t, kv.OpDeleteBefore, calls[3].Op)
	for _, c := range calls {
		assert.Equal(t, "users", c.Type)
		assert.Equal(t, "alice", c.Key)
	}
	assert.Equal(t, calls[1].TxID, calls[2].TxID)
	assert.Equal(t, calls[1].TS, calls[2].TS)
	assert.Equal(t, calls[1].UpdatedAt, calls[2].UpdatedAt)
}

func TestStore_ListSemantics(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Put("items", "a1", []byte("x")))
	require.NoError(t, store.Put("items", "a2", []byte("x")))
	require.NoError(t, store.Put("items", "b1", []byte("x")))

	all, err := store.List("items", "", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, all)

	prefixed, err := store.List("items", "a", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, prefixed)

	limited, err := store.List("items", "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_DeleteMissing(t *testing.T) {
	store, spy := newTestStore(t)

	require.NoError(t, store.Delete("ghosts", "phantom"))

	calls := spy.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, kv.OpDeleteBeforeMissing, calls[0].Op)
	assert.Equal(t, "phantom", calls[0].Key)
	assert.Nil(t, calls[0].Value)
}

func TestStore_DeleteMissing_LeavesStateUnchanged(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Put("items", "a1", []byte("x")))
	require.NoError(t, store.Delete("items", "missing"))

	exists, err := store.Exists("items", "a1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_TruncationBoundary(t *testing.T) {
	store, spy := newTestStore(t)

	at := strings.Repeat("x", 8192)
	require.NoError(t, store.Put("blobs", "at", []byte(at)))

	over := strings.Repeat("y", 8193)
	require.NoError(t, store.Put("blobs", "over", []byte(over)))

	calls := spy.Calls()
	require.Len(t, calls, 2)

	assert.False(t, calls[0].Value == nil)
	assert.Len(t, calls[0].Value, 8192)

	assert.Len(t, calls[1].Value, 8193)
	wantSum := sha256.Sum256([]byte(over))
	gotSum := sha256.Sum256(calls[1].Value)
	assert.Equal(t, hex.EncodeToString(wantSum[:]), hex.EncodeToString(gotSum[:]))
}

func TestStore_NonUTF8Value(t *testing.T) {
	store, spy := newTestStore(t)

	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xFF
	}
	require.NoError(t, store.Put("blobs", "raw", raw))

	calls := spy.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, raw, calls[0].Value)
}

func TestStore_ValidationRejectsBadTypeOrKey(t *testing.T) {
	store, _ := newTestStore(t)

	assert.ErrorIs(t, store.Put("", "key", []byte("v")), kv.ErrInvalidArgument)
	assert.ErrorIs(t, store.Put("type", "", []byte("v")), kv.ErrInvalidArgument)
	assert.ErrorIs(t, store.Put("type", "key", nil), kv.ErrInvalidArgument)
	assert.ErrorIs(t, store.Put("a/b", "key", []byte("v")), kv.ErrInvalidArgument)
	assert.ErrorIs(t, store.Put("type", "key\x00", []byte("v")), kv.ErrInvalidArgument)
}

func TestStore_PutRejectsOversizeValue(t *testing.T) {
	spy := txnlog.NewSpy()
	store, err := sqlite.New(":memory:", spy, 4)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.ErrorIs(t, store.Put("t", "k", []byte("12345")), kv.ErrValueTooLarge)
	assert.Empty(t, spy.Calls())
}

func TestStore_GetMissingReturnsNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	value, updatedAt, found, err := store.Get("users", "nobody")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
	assert.Zero(t, updatedAt)
}
