package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestReceiptKey(t *testing.T) {
	assert.Equal(t, "secret1wallet_secret1contract", ReceiptKey("secret1wallet", "secret1contract"))
}

func openTestStores(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()
	stores := map[string]KV{"memory": NewMemoryStore()}
	for _, driver := range []string{"file", "badger", "sqlite"} {
		kv, err := openKV(ctx, Options{Driver: driver, Path: t.TempDir()})
		require.NoError(t, err, driver)
		stores[driver] = kv
	}
	if addr := os.Getenv("EVOTE_TEST_REDIS_ADDR"); addr != "" {
		kv, err := NewRedisStore(ctx, addr)
		require.NoError(t, err)
		stores["redis"] = kv
	}
	for name, kv := range stores {
		kv := kv
		t.Cleanup(func() { assert.NoError(t, kv.Close(), name) })
	}
	return stores
}

func TestReceiptsAcrossBackends(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			r := NewReceipts(kv, zaptest.NewLogger(t))

			voted, err := r.HasVoted(ctx, "secret1a", "secret1c")
			require.NoError(t, err)
			assert.False(t, voted)

			require.NoError(t, r.MarkVoted(ctx, "secret1a", "secret1c"))
			voted, err = r.HasVoted(ctx, "secret1a", "secret1c")
			require.NoError(t, err)
			assert.True(t, voted)

			// Receipts are per wallet and per contract.
			voted, err = r.HasVoted(ctx, "secret1b", "secret1c")
			require.NoError(t, err)
			assert.False(t, voted)
			voted, err = r.HasVoted(ctx, "secret1a", "secret1d")
			require.NoError(t, err)
			assert.False(t, voted)

			v, ok, err := kv.Get(ctx, ReceiptKey("secret1a", "secret1c"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "true", v)

			// Marking twice is harmless.
			require.NoError(t, r.MarkVoted(ctx, "secret1a", "secret1c"))
		})
	}
}

func TestAnyStoredValueCountsAsVoted(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	require.NoError(t, kv.Set(ctx, ReceiptKey("w", "c"), "yes"))

	voted, err := NewReceipts(kv, zaptest.NewLogger(t)).HasVoted(ctx, "w", "c")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "true"))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, err = os.Stat(filepath.Join(dir, receiptsFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, receiptsFile), []byte("{not json"), 0644))

	_, err := NewFileStore(dir)
	assert.Error(t, err)
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "receipts.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "true"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "etcd"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
