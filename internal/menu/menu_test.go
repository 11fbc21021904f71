package menu

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/downloader"
	"github.com/localserve/localserve/internal/inventory"
	"github.com/localserve/localserve/internal/mutator"
	"github.com/localserve/localserve/internal/store"
	"github.com/localserve/localserve/internal/test"
	"github.com/localserve/localserve/internal/updater"
)

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(ctx context.Context, dest *os.File, src string) error {
	_, err := dest.Write([]byte("w"))
	return err
}

type fixture struct {
	orch       *compose.FakeClient
	out        *bytes.Buffer
	st         *store.Store
	mut        *mutator.Mutator
	upd        *updater.Updater
	installDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := test.NewTestLogger(t)
	installDir := t.TempDir()
	modelDir := filepath.Join(installDir, "models")
	require.NoError(t, os.MkdirAll(modelDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "llama-2-7b-chat.Q4_K_M.gguf"), []byte("w"), 0644))

	st := store.New(installDir, logger)
	require.NoError(t, st.SaveRuntimeConfig(store.RuntimeConfig{
		Program:   []string{"/app/llama-server"},
		Host:      "0.0.0.0",
		Port:      8080,
		ModelPath: "/models/llama-2-7b-chat.Q4_K_M.gguf",
	}))
	require.NoError(t, st.SaveWhitelist(store.NewWhitelist("127.0.0.1")))

	orch := &compose.FakeClient{PSOutput: "NAME   STATUS\nllama  running\n"}
	inv := inventory.New(modelDir)
	dl := downloader.New(modelDir, &fakeFetcher{}, logger)
	return &fixture{
		orch:       orch,
		out:        &bytes.Buffer{},
		st:         st,
		mut:        mutator.New(st, inv, dl, orch, installDir, logger),
		upd:        updater.New(installDir, nil, logger),
		installDir: installDir,
	}
}

func (f *fixture) run(t *testing.T, ctx context.Context, input string) {
	t.Helper()
	m := New(f.mut, f.upd, f.orch, f.installDir, "https://example.com/compose.template", strings.NewReader(input), f.out, test.NewTestLogger(t))
	require.NoError(t, m.Run(ctx))
}

func run(t *testing.T, input string) *fixture {
	t.Helper()
	f := newFixture(t)
	f.run(t, context.Background(), input)
	return f
}

func TestExit(t *testing.T) {
	f := run(t, "11\n")
	assert.Contains(t, f.out.String(), "Bye.")
}

func TestExitOnEOF(t *testing.T) {
	run(t, "")
}

func TestInvalidChoiceReturnsToMenu(t *testing.T) {
	f := run(t, "42\n11\n")
	assert.Contains(t, f.out.String(), "Please choose 1-11.")
	assert.Contains(t, f.out.String(), "Bye.")
}

func TestSelectModel(t *testing.T) {
	f := run(t, "1\n1\n11\n")
	assert.Contains(t, f.out.String(), "llama-2-7b-chat.Q4_K_M.gguf")
	assert.Contains(t, f.out.String(), "Active model is now llama-2-7b-chat.Q4_K_M.gguf.")
	assert.Equal(t, []string{"down", "up"}, f.orch.Calls)
}

func TestSelectModelBadNumber(t *testing.T) {
	f := run(t, "1\n9\n11\n")
	assert.Contains(t, f.out.String(), "Error:")
	assert.Empty(t, f.orch.Calls)
}

func TestSetContextSize(t *testing.T) {
	f := run(t, "2\n8192\n11\n")
	assert.Contains(t, f.out.String(), "Context size is now 8192.")

	rc, err := f.st.LoadRuntimeConfig()
	require.NoError(t, err)
	assert.Equal(t, 8192, rc.ContextSize)
}

func TestSetContextSizeDefaultKeyword(t *testing.T) {
	f := run(t, "2\n8192\n2\ndefault\n11\n")
	rc, err := f.st.LoadRuntimeConfig()
	require.NoError(t, err)
	assert.Zero(t, rc.ContextSize)
}

func TestSetContextSizeRejectsGarbage(t *testing.T) {
	f := run(t, "2\nlots\n11\n")
	assert.Contains(t, f.out.String(), "Error:")
	rc, err := f.st.LoadRuntimeConfig()
	require.NoError(t, err)
	assert.Zero(t, rc.ContextSize)
}

func TestAddWhitelistEntry(t *testing.T) {
	f := run(t, "5\n10.0.0.5\n5\n10.0.0.5\n11\n")
	out := f.out.String()
	assert.Contains(t, out, "Address whitelisted.")
	assert.Contains(t, out, "Address is already whitelisted; nothing to do.")
	assert.Equal(t, []string{"recreate webui"}, f.orch.Calls)
}

func TestToggleWhitelist(t *testing.T) {
	f := run(t, "6\n6\n11\n")
	out := f.out.String()
	assert.Contains(t, out, "Whitelist is now disabled.")
	assert.Contains(t, out, "Whitelist is now enabled.")
}

func TestStatus(t *testing.T) {
	f := run(t, "7\n11\n")
	out := f.out.String()
	assert.Contains(t, out, "Active model:  llama-2-7b-chat.Q4_K_M.gguf")
	assert.Contains(t, out, "Context size:  engine default")
	assert.Contains(t, out, "llama  running")
}

func TestFollowLogsReturnsToMenuOnInterrupt(t *testing.T) {
	f := newFixture(t)
	following := make(chan struct{})
	f.orch.LogLines = []string{"llama | model loaded"}
	f.orch.LogsFollowing = following

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-following
		cancel()
	}()

	// Follow the default service; the status read afterwards proves the
	// loop carried on after cancellation.
	f.run(t, ctx, "8\n\n7\n11\n")

	out := f.out.String()
	assert.Contains(t, out, "llama | model loaded")
	assert.Contains(t, out, "Stopped following logs.")
	assert.Contains(t, out, "Active model:")
	assert.Contains(t, out, "Bye.")
	assert.Equal(t, []string{"logs llama", "ps"}, f.orch.Calls)
}

func TestRestart(t *testing.T) {
	f := run(t, "9\n11\n")
	assert.Contains(t, f.out.String(), "All services restarted.")
	assert.Equal(t, []string{"down", "up"}, f.orch.Calls)
}

func TestDownloadModel(t *testing.T) {
	f := run(t, "4\nhttps://example.com/zephyr-7b.Q4_K_M.gguf\n11\n")
	assert.Contains(t, f.out.String(), "Download complete.")
}

func TestOperationErrorDoesNotEndLoop(t *testing.T) {
	f := run(t, "5\nnot-an-ip\n7\n11\n")
	out := f.out.String()
	assert.Contains(t, out, "Error:")
	// The loop carried on to the status operation afterwards.
	assert.Contains(t, out, "Active model:")
}
