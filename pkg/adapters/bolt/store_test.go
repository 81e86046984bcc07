package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/bolt"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltStore_Contract(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "arbor.db"))
	require.NoError(t, err)
	defer store.Close()

	ports.RunBlobStoreContract(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.db")
	ctx := context.Background()

	store, err := bolt.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "context", []byte(`{"page":"about"}`)))
	require.NoError(t, store.Close())

	reopened, err := bolt.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, err := reopened.Load(ctx, "context")
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":"about"}`, string(data))
}
