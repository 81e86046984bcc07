package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
components: ./web
outlet: "#main"
evaluator: expr
store:
  backend: redis
  mask: [password, "^api_"]
  redis:
    addr: cache:6379
    db: "2"
    ttl: 1h
barrier:
  timeout: 2s
transition:
  delay: 150
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "./web", cfg.Components)
	assert.Equal(t, "#main", cfg.Outlet)
	assert.Equal(t, config.EvaluatorExpr, cfg.Evaluator)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, []string{"password", "^api_"}, cfg.Store.Mask)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, 2*time.Second, cfg.Barrier.Timeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Transition.Delay)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched keys keep their defaults.
	assert.Equal(t, "index.html", cfg.Document)
	assert.Equal(t, "arbor:", cfg.Store.Redis.Prefix)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: blue"},
		{"backend", "store: {backend: etcd}"},
		{"evaluator", "evaluator: lua"},
		{"duration", "barrier: {timeout: soon}"},
		{"key length", "store: {encryption_key: short}"},
		{"syntax", "store: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("explicit missing file fails", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "arbor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("document: shell.html\n"), 0o644))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "shell.html", cfg.Document)
	})
}

func TestDecode_Overrides(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.Decode(map[string]any{
		"store":   map[string]any{"backend": "bolt", "path": "/tmp/ctx.db"},
		"barrier": map[string]any{"timeout": "0"},
	}, &cfg))

	assert.Equal(t, config.BackendBolt, cfg.Store.Backend)
	assert.Equal(t, "/tmp/ctx.db", cfg.Store.Path)
	assert.Zero(t, cfg.Barrier.Timeout)
}
