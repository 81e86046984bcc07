package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBlobStoreContract runs a suite of tests to verify that a BlobStore implementation
// adheres to the defined interface contract.
func RunBlobStoreContract(t *testing.T, store BlobStore) {
	ctx := context.Background()
	key := "contract-test-blob-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, key, []byte(`{"foo":"bar","count":42}`))
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.JSONEq(t, `{"foo":"bar","count":42}`, string(loaded))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte(`{"v":1}`)))
		require.NoError(t, store.Save(ctx, key, []byte(`{"v":2}`)))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(loaded))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrBlobNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, []byte(`{}`)))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrBlobNotFound, "Load after Delete should return ErrBlobNotFound")
	})

	t.Run("List", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		_ = store.Save(ctx, k1, []byte(`{}`))
		_ = store.Save(ctx, k2, []byte(`{}`))

		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
