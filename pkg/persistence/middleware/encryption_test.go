package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunBlobStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)
	ctx := context.Background()

	require.NoError(t, secureStore.Save(ctx, "ctx", []byte(`{"secret":"my-secret-sauce"}`)))

	stored, err := underlyingStore.Load(ctx, "ctx")
	require.NoError(t, err)
	assert.NotContains(t, string(stored), "my-secret-sauce")
	assert.Contains(t, string(stored), "__encrypted__")

	loaded, err := secureStore.Load(ctx, "ctx")
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret":"my-secret-sauce"}`, string(loaded))
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	require.NoError(t, secureStoreOld.Save(ctx, "ctx", []byte(`{"data":"old"}`)))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "ctx")
	require.NoError(t, err, "fallback key should decrypt")
	assert.JSONEq(t, `{"data":"old"}`, string(loaded))

	require.NoError(t, secureStoreNew.Save(ctx, "ctx", []byte(`{"data":"new"}`)))

	_, err = secureStoreOld.Load(ctx, "ctx")
	assert.Error(t, err, "old key alone must not decrypt new-key blobs")
}

func TestEncryptionMiddleware_RejectsPlainBlob(t *testing.T) {
	underlyingStore := memory.NewStore()
	require.NoError(t, underlyingStore.Save(context.Background(), "ctx", []byte(`{"page":"home"}`)))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(context.Background(), "ctx")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestChain_OrderIsOutermostFirst(t *testing.T) {
	underlyingStore := memory.NewStore()
	store := middleware.Chain(underlyingStore,
		middleware.NewPIIMiddleware([]string{"password"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "ctx", []byte(`{"password":"hunter2","page":"home"}`)))

	loaded, err := store.Load(ctx, "ctx")
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"***","page":"home"}`, string(loaded))
}
