package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"index.html": `<html><body><h1 $text="title"></h1><div id="app"></div></body></html>`,
		"home.html":  `<p>home</p>`,
		"about.html": `<p $text="'about ' + pageBack"></p>`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func siteConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Components = writeSite(t)
	cfg.Transition.Delay = 0
	return cfg
}

func TestStoreBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	backends := map[string]config.Store{
		"memory": {Backend: config.BackendMemory, Key: "context"},
		"file":   {Backend: config.BackendFile, Key: "context", Path: t.TempDir()},
		"bolt":   {Backend: config.BackendBolt, Key: "context", Path: t.TempDir()},
		"redis":  {Backend: config.BackendRedis, Key: "context", Redis: config.Redis{Addr: mr.Addr(), Prefix: "t:"}},
	}
	for name, store := range backends {
		t.Run(name, func(t *testing.T) {
			cfg := siteConfig(t)
			cfg.Store = store
			ctx := context.Background()

			app, err := openApp(ctx, cfg, logging.NewNop(), domain.Context{"title": "Hello"})
			require.NoError(t, err)
			defer closeQuietly(app)

			var out bytes.Buffer
			require.NoError(t, app.RenderPage(ctx, &out, "page=about"))
			assert.Contains(t, out.String(), ">Hello</h1>")
			assert.Contains(t, out.String(), ">about page=</p>")
		})
	}
}

func TestStoreOptions_Unknown(t *testing.T) {
	_, err := storeOptions(config.Store{Backend: "etcd"})
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	cfg := siteConfig(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"render", "home",
		"--components", cfg.Components,
		"--config", writeConfig(t, "transition: {delay: 0}\n"),
		"--set", "title=CLI",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), ">CLI</h1>")
	assert.Contains(t, out.String(), "<p>home</p>")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "arbor version "+arbor.Version+"\n", out.String())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	cfg := siteConfig(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"validate",
		"--components", cfg.Components,
		"--config", writeConfig(t, "log_level: warn\n"),
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Components are valid")
}

func TestMCPCommand_UnknownTransport(t *testing.T) {
	rootCmd.SetArgs([]string{"mcp", "--transport", "carrier-pigeon",
		"--config", writeConfig(t, "log_level: warn\n"),
	})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		_ = mcpCmd.Flags().Set("transport", "stdio")
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport "carrier-pigeon"`)
}
