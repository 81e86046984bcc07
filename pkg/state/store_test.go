package state_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/state"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s *SlowStore) Save(ctx context.Context, key string, data []byte) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Save(ctx, key, data)
}

func (s *SlowStore) Load(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, key)
}

// FailingStore rejects every operation.
type FailingStore struct{}

var errDown = errors.New("backend down")

func (FailingStore) Save(context.Context, string, []byte) error   { return errDown }
func (FailingStore) Load(context.Context, string) ([]byte, error) { return nil, errDown }
func (FailingStore) Delete(context.Context, string) error         { return errDown }
func (FailingStore) List(context.Context) ([]string, error)       { return nil, errDown }

func TestStore_MergePrecedence(t *testing.T) {
	blobs := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, blobs.Save(ctx, state.DefaultKey, []byte(`{"a":1,"b":1}`)))

	store := state.New(blobs, state.WithInitial(domain.Context{"b": 2, "c": 2}))

	got := store.Merge(ctx, domain.Context{"c": 3, "d": 3})

	assert.Equal(t, domain.Context{"a": float64(1), "b": 2, "c": 3, "d": 3}, got)

	data, err := blobs.Load(ctx, state.DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":2,"c":3,"d":3}`, string(data))
}

func TestStore_ReadMergesPersistedUnderMemory(t *testing.T) {
	blobs := memory.NewStore()
	ctx := context.Background()
	store := state.New(blobs, state.WithInitial(domain.Context{"page": "home"}))

	// Another replica wrote to the shared blob.
	require.NoError(t, blobs.Save(ctx, state.DefaultKey, []byte(`{"page":"about","user":"ada"}`)))

	got := store.Read(ctx)
	assert.Equal(t, "home", got["page"], "in-memory wins over persisted")
	assert.Equal(t, "ada", got["user"])
}

func TestStore_HandlersAreNotPersisted(t *testing.T) {
	blobs := memory.NewStore()
	ctx := context.Background()
	store := state.New(blobs)

	calls := 0
	store.RegisterHandler("bump", func() { calls++ })
	got := store.Merge(ctx, domain.Context{"n": 1})

	require.Contains(t, got, "bump")
	got["bump"].(func())()
	assert.Equal(t, 1, calls)

	data, err := blobs.Load(ctx, state.DefaultKey)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.NotContains(t, doc, "bump")
	assert.Equal(t, float64(1), doc["n"])
}

func TestStore_PersistenceFailureKeepsMemory(t *testing.T) {
	store := state.New(FailingStore{})
	ctx := context.Background()

	got := store.Merge(ctx, domain.Context{"page": "home"})
	assert.Equal(t, domain.Context{"page": "home"}, got)

	got = store.Merge(ctx, domain.Context{"count": 1})
	assert.Equal(t, domain.Context{"page": "home", "count": 1}, got)
	assert.Equal(t, got, store.Read(ctx))
}

func TestStore_ReturnsCopies(t *testing.T) {
	store := state.New(nil)
	got := store.Merge(context.Background(), domain.Context{"a": 1})
	got["a"] = 99

	assert.Equal(t, 1, store.Read(context.Background())["a"])
}

func TestStore_ConcurrentMergesAreSerialized(t *testing.T) {
	blobs := &SlowStore{Store: memory.NewStore()}
	ctx := context.Background()

	// Two stores on the same key model two independent owners in one process.
	s1 := state.New(blobs, state.WithKey("shared"))
	s2 := state.New(blobs, state.WithKey("shared"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s1.Merge(ctx, domain.Context{fmt.Sprintf("s1-%d", i): true})
		}(i)
		go func(i int) {
			defer wg.Done()
			s2.Merge(ctx, domain.Context{fmt.Sprintf("s2-%d", i): true})
		}(i)
	}
	wg.Wait()

	data, err := blobs.Load(ctx, "shared")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 20, "no merge may be lost to an interleaved write")
}

func TestStore_DistributedLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	blobs := redis.NewFromClient(client)
	locker := redis.NewLocker(client, blobs.Prefix())
	store := state.New(blobs, state.WithLocker(locker, time.Second))
	ctx := context.Background()

	got := store.Merge(ctx, domain.Context{"page": "home"})
	assert.Equal(t, "home", got["page"])
	assert.False(t, mr.Exists(blobs.Prefix()+"lock:"+state.DefaultKey), "lock must be released after merge")

	data, err := blobs.Load(ctx, state.DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":"home"}`, string(data))
}
