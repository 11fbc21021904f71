// Package updater replaces the deployment-definition template with a newer
// version fetched from the release source. A candidate is validated by
// structural inspection only; nothing fetched is ever executed. On any
// validation failure the candidate is discarded and the running installation
// stays untouched.
package updater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/fetch"
	"github.com/localserve/localserve/internal/template"
)

// PendingMarkerFile marks an update that has been staged but whose
// redeployment has not completed. It is written before the template swap and
// removed after a successful reinitialize, so an interrupted update is
// visible on the next run.
const PendingMarkerFile = "update.pending"

// ErrCandidateInvalid is returned when a fetched candidate fails structural
// validation. This is the sole integrity gate: there is no signing, so an
// unvalidated candidate must never be applied.
var ErrCandidateInvalid = errors.New("update candidate failed structural validation")

// Outcome is the result of an update check.
type Outcome int

const (
	// OutcomeUpToDate means the remote definition matches the installed one.
	OutcomeUpToDate Outcome = iota
	// OutcomeApplied means a new definition was installed and redeployed.
	OutcomeApplied
)

type controller interface {
	TemplatePath() string
	Reinitialize(ctx context.Context) error
}

// Updater checks for and applies deployment-definition updates.
type Updater struct {
	installDir string
	ctrl       controller
	logger     logr.Logger
}

// New returns a new Updater.
func New(installDir string, ctrl controller, logger logr.Logger) *Updater {
	return &Updater{
		installDir: installDir,
		ctrl:       ctrl,
		logger:     logger.WithName("updater"),
	}
}

// CheckAndApply fetches the deployment definition at source, validates it,
// and, if it differs from the installed one, swaps it in and reinitializes
// the deployment. User configuration survives: reinitialize never rewrites
// the launch command or the whitelist.
func (u *Updater) CheckAndApply(ctx context.Context, source string) (Outcome, error) {
	fetcher, err := fetch.ForURL(source, u.logger)
	if err != nil {
		return OutcomeUpToDate, err
	}

	tmp, err := os.CreateTemp(u.installDir, "candidate")
	if err != nil {
		return OutcomeUpToDate, err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	u.logger.Info("Fetching update candidate", "source", source)
	if err := fetcher.Fetch(ctx, tmp, source); err != nil {
		_ = tmp.Close()
		return OutcomeUpToDate, fmt.Errorf("fetch candidate: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return OutcomeUpToDate, err
	}

	candidate, err := os.ReadFile(tmp.Name())
	if err != nil {
		return OutcomeUpToDate, err
	}
	if err := validateCandidate(candidate); err != nil {
		return OutcomeUpToDate, err
	}

	current, err := os.ReadFile(u.ctrl.TemplatePath())
	if err == nil && bytes.Equal(current, candidate) {
		u.logger.Info("Deployment definition is up to date")
		return OutcomeUpToDate, nil
	}

	marker := filepath.Join(u.installDir, PendingMarkerFile)
	if err := os.WriteFile(marker, []byte(source+"\n"), 0644); err != nil {
		return OutcomeUpToDate, err
	}
	if err := os.Rename(tmp.Name(), u.ctrl.TemplatePath()); err != nil {
		return OutcomeUpToDate, fmt.Errorf("install candidate: %w", err)
	}
	u.logger.Info("Installed new deployment definition, redeploying")

	if err := u.ctrl.Reinitialize(ctx); err != nil {
		return OutcomeApplied, fmt.Errorf("redeploy after update: %w", err)
	}
	if err := os.Remove(marker); err != nil {
		return OutcomeApplied, err
	}
	return OutcomeApplied, nil
}

// HasPendingUpdate reports whether a staged update never finished its
// redeployment.
func (u *Updater) HasPendingUpdate() bool {
	_, err := os.Stat(filepath.Join(u.installDir, PendingMarkerFile))
	return err == nil
}

// validateCandidate checks that a candidate is a well-formed deployment
// template without executing anything: it must carry the expected
// placeholders, and rendering it with representative values must yield a
// definition with both fixed services and absolute host paths.
func validateCandidate(b []byte) error {
	subs := map[string]string{
		"INSTALL_DIR": "/probe/install",
		"MODEL_DIR":   "/probe/models",
		"UI_DATA_DIR": "/probe/ui-data",
		"LLAMA_IMAGE": "probe/llama:latest",
		"WEBUI_IMAGE": "probe/webui:latest",
		"LLAMA_PORT":  "8080",
		"WEBUI_PORT":  "3000",
	}
	doc := template.Render(string(b), subs)
	if missing := template.Unresolved(doc); len(missing) > 0 {
		return fmt.Errorf("%w: unknown placeholders %v", ErrCandidateInvalid, missing)
	}

	def, err := compose.ParseDefinition([]byte(doc))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrCandidateInvalid, err)
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrCandidateInvalid, err)
	}
	return nil
}
