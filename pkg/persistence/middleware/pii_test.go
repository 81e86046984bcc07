package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw := middleware.NewPIIMiddleware([]string{"password", "ssn"})
	secureStore := mw(underlyingStore)
	ctx := context.Background()

	blob := []byte(`{
		"username": "jdoe",
		"user_password": "secret123",
		"details": {"address": "123 St", "ssn_number": "999-99-9999"},
		"rows": [{"password": "x"}]
	}`)

	require.NoError(t, secureStore.Save(ctx, "ctx", blob))

	stored, err := underlyingStore.Load(ctx, "ctx")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(stored, &doc))

	assert.Equal(t, "jdoe", doc["username"], "username shouldn't be masked")
	assert.Equal(t, middleware.Mask, doc["user_password"])
	assert.Equal(t, middleware.Mask, doc["details"].(map[string]any)["ssn_number"])
	assert.Equal(t, "123 St", doc["details"].(map[string]any)["address"])
	assert.Equal(t, middleware.Mask, doc["rows"].([]any)[0].(map[string]any)["password"])
}

func TestPIIMiddleware_NonObjectPassesThrough(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := middleware.NewPIIMiddleware([]string{"password"})(underlyingStore)
	ctx := context.Background()

	require.NoError(t, secureStore.Save(ctx, "raw", []byte("not json")))

	stored, err := underlyingStore.Load(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, "not json", string(stored))
}
