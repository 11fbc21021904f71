package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/config"
	"github.com/localserve/localserve/internal/downloader"
	"github.com/localserve/localserve/internal/store"
	"github.com/localserve/localserve/internal/test"
)

type fakeFetcher struct {
	content []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, dest *os.File, src string) error {
	_, err := dest.Write(f.content)
	return err
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.DefaultModelURL = "https://example.com/models/tiny.gguf"
	return cfg
}

func newTestController(t *testing.T, cfg *config.Config, orch compose.Client) (*Controller, *store.Store) {
	t.Helper()
	logger := test.NewTestLogger(t)
	st := store.New(cfg.InstallDir, logger)
	dl := downloader.New(cfg.ModelDir, &fakeFetcher{content: []byte("weights")}, logger)
	return New(cfg, st, dl, orch, logger), st
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	orch := &compose.FakeClient{}
	c, st := newTestController(t, &cfg, orch)

	require.NoError(t, c.Initialize(context.Background()))

	for _, dir := range []string{cfg.InstallDir, cfg.ModelDir, cfg.UIDataDir} {
		fi, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}

	// Default model downloaded into the store.
	b, err := os.ReadFile(filepath.Join(cfg.ModelDir, "tiny.gguf"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(b))

	// Default documents written.
	rc, err := st.LoadRuntimeConfig()
	require.NoError(t, err)
	assert.Equal(t, "/models/tiny.gguf", rc.ModelPath)
	assert.Zero(t, rc.ContextSize)

	w, err := st.LoadWhitelist()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, w.Entries())
	assert.Equal(t, store.WhitelistEnabled, w.State())

	// Rendered definition is valid and fully substituted.
	doc, err := os.ReadFile(filepath.Join(cfg.InstallDir, compose.DefinitionFile))
	require.NoError(t, err)
	assert.NotContains(t, string(doc), "{{")
	def, err := compose.ParseDefinition(doc)
	require.NoError(t, err)
	require.NoError(t, def.Validate())

	// Stop-then-start of the full set.
	assert.Equal(t, []string{"down", "up"}, orch.Calls)
}

func TestInitializeIdempotent(t *testing.T) {
	cfg := testConfig(t)
	orch := &compose.FakeClient{}
	c, _ := newTestController(t, &cfg, orch)

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	models, err := os.ReadDir(cfg.ModelDir)
	require.NoError(t, err)
	var files []string
	for _, e := range models {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	assert.Equal(t, []string{"tiny.gguf"}, files)
}

func TestReinitializePreservesUserState(t *testing.T) {
	cfg := testConfig(t)
	orch := &compose.FakeClient{}
	c, st := newTestController(t, &cfg, orch)
	require.NoError(t, c.Initialize(context.Background()))

	// The operator diverges from the defaults.
	rc, err := st.LoadRuntimeConfig()
	require.NoError(t, err)
	require.NoError(t, rc.SetContextSize(8192))
	require.NoError(t, st.SaveRuntimeConfig(rc))
	w, err := st.LoadWhitelist()
	require.NoError(t, err)
	w.Add("10.0.0.5")
	require.NoError(t, st.SaveWhitelist(w))

	require.NoError(t, c.Reinitialize(context.Background()))

	rc, err = st.LoadRuntimeConfig()
	require.NoError(t, err)
	assert.Equal(t, 8192, rc.ContextSize)
	w, err = st.LoadWhitelist()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.5"}, w.Entries())
}

func TestReinitializeRestartsServices(t *testing.T) {
	cfg := testConfig(t)
	orch := &compose.FakeClient{}
	c, _ := newTestController(t, &cfg, orch)
	require.NoError(t, c.Initialize(context.Background()))

	orch.Calls = nil
	require.NoError(t, c.Reinitialize(context.Background()))
	assert.Equal(t, []string{"down", "up"}, orch.Calls)
}

func TestRenderFailsOnUnboundPlaceholder(t *testing.T) {
	cfg := testConfig(t)
	orch := &compose.FakeClient{}
	c, _ := newTestController(t, &cfg, orch)
	require.NoError(t, os.MkdirAll(cfg.InstallDir, 0755))
	require.NoError(t, os.WriteFile(c.TemplatePath(), []byte("services:\n  llama:\n    image: \"{{MYSTERY_IMAGE}}\"\n  webui:\n    image: x\n"), 0644))

	err := c.Reinitialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MYSTERY_IMAGE")
}
