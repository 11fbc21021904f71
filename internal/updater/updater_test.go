package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localserve/localserve/internal/test"
)

const validTemplate = `services:
  llama:
    image: "{{LLAMA_IMAGE}}"
    volumes:
      - "{{MODEL_DIR}}:/models:ro"
    ports:
      - "{{LLAMA_PORT}}:{{LLAMA_PORT}}"
  webui:
    image: "{{WEBUI_IMAGE}}"
    depends_on:
      - llama
    volumes:
      - "{{UI_DATA_DIR}}:/app/backend/data"
    ports:
      - "{{WEBUI_PORT}}:8080"
`

type fakeController struct {
	templatePath string
	reinits      int
	reinitErr    error
}

func (f *fakeController) TemplatePath() string {
	return f.templatePath
}

func (f *fakeController) Reinitialize(ctx context.Context) error {
	f.reinits++
	return f.reinitErr
}

func newFixture(t *testing.T, installed string) (*Updater, *fakeController, string) {
	t.Helper()
	dir := t.TempDir()
	ctrl := &fakeController{templatePath: filepath.Join(dir, "compose.template")}
	if installed != "" {
		require.NoError(t, os.WriteFile(ctrl.templatePath, []byte(installed), 0644))
	}
	return New(dir, ctrl, test.NewTestLogger(t)), ctrl, dir
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckAndApplyApplies(t *testing.T) {
	u, ctrl, dir := newFixture(t, "services: {}\n")
	srv := serve(t, validTemplate)

	outcome, err := u.CheckAndApply(context.Background(), srv.URL+"/compose.template")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 1, ctrl.reinits)

	b, err := os.ReadFile(ctrl.templatePath)
	require.NoError(t, err)
	assert.Equal(t, validTemplate, string(b))

	// The pending marker is consumed on success, and no candidate temp
	// files are left behind.
	assert.False(t, u.HasPendingUpdate())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "compose.template", entries[0].Name())
}

func TestCheckAndApplyUpToDate(t *testing.T) {
	u, ctrl, _ := newFixture(t, validTemplate)
	srv := serve(t, validTemplate)

	outcome, err := u.CheckAndApply(context.Background(), srv.URL+"/compose.template")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpToDate, outcome)
	assert.Zero(t, ctrl.reinits)
}

func TestCheckAndApplyRejectsInvalidCandidate(t *testing.T) {
	const installed = "services: {}\n"
	tcs := []struct {
		name string
		body string
	}{
		{name: "malformed yaml", body: "services: [broken\n"},
		{name: "missing webui service", body: "services:\n  llama:\n    image: \"{{LLAMA_IMAGE}}\"\n"},
		{name: "unknown placeholder", body: "services:\n  llama:\n    image: \"{{EVIL_IMAGE}}\"\n  webui:\n    image: x\n"},
		{name: "relative host path", body: "services:\n  llama:\n    image: x\n    volumes:\n      - \"models:/models\"\n  webui:\n    image: y\n"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			u, ctrl, _ := newFixture(t, installed)
			srv := serve(t, tc.body)

			_, err := u.CheckAndApply(context.Background(), srv.URL+"/compose.template")
			assert.ErrorIs(t, err, ErrCandidateInvalid)
			assert.Zero(t, ctrl.reinits)
			assert.False(t, u.HasPendingUpdate())

			// The installed template is untouched.
			b, err := os.ReadFile(ctrl.templatePath)
			require.NoError(t, err)
			assert.Equal(t, installed, string(b))
		})
	}
}

func TestCheckAndApplyFetchFailure(t *testing.T) {
	u, ctrl, _ := newFixture(t, validTemplate)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := u.CheckAndApply(context.Background(), srv.URL+"/compose.template")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCandidateInvalid)
	assert.Zero(t, ctrl.reinits)
}

func TestCheckAndApplyLeavesMarkerOnRedeployFailure(t *testing.T) {
	u, ctrl, _ := newFixture(t, "services: {}\n")
	ctrl.reinitErr = errors.New("orchestrator unavailable")
	srv := serve(t, validTemplate)

	outcome, err := u.CheckAndApply(context.Background(), srv.URL+"/compose.template")
	assert.Error(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	// The staged update is visible so the operator can finish it.
	assert.True(t, u.HasPendingUpdate())
}
