// Package deploy materializes an installation: directories, the default
// model, the configuration documents, and the rendered service definition,
// then hands the service set to the orchestrator.
package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/config"
	"github.com/localserve/localserve/internal/downloader"
	"github.com/localserve/localserve/internal/store"
	"github.com/localserve/localserve/internal/template"
)

// TemplateFile is the deployment-definition template filename inside the
// install root. The self-updater replaces this file.
const TemplateFile = "compose.template"

// Controller creates and refreshes a deployment.
type Controller struct {
	cfg    *config.Config
	store  *store.Store
	dl     *downloader.D
	orch   compose.Client
	logger logr.Logger
}

// New returns a new Controller.
func New(
	cfg *config.Config,
	st *store.Store,
	dl *downloader.D,
	orch compose.Client,
	logger logr.Logger,
) *Controller {
	return &Controller{
		cfg:    cfg,
		store:  st,
		dl:     dl,
		orch:   orch,
		logger: logger.WithName("deploy"),
	}
}

// TemplatePath returns the on-disk location of the deployment-definition
// template.
func (c *Controller) TemplatePath() string {
	return filepath.Join(c.cfg.InstallDir, TemplateFile)
}

// Initialize performs a first-time setup: creates the directory tree,
// downloads the default model if the store does not have it, writes the
// default configuration documents, renders the service definition, and
// restarts the service set. Every step is idempotent, so re-running
// Initialize over an existing installation is safe.
func (c *Controller) Initialize(ctx context.Context) error {
	c.logger.Info("Initializing installation", "root", c.cfg.InstallDir)

	for _, dir := range []string{c.cfg.InstallDir, c.cfg.ModelDir, c.cfg.UIDataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %q: %w", dir, err)
		}
	}

	modelFile, err := c.cfg.DefaultModelFile()
	if err != nil {
		return err
	}
	if err := c.dl.Download(ctx, modelFile, c.cfg.DefaultModelURL); err != nil {
		return fmt.Errorf("fetch default model: %w", err)
	}

	if !c.store.HasWhitelist() {
		if err := c.store.SaveWhitelist(store.NewWhitelist("127.0.0.1")); err != nil {
			return err
		}
	}
	if !c.store.HasRuntimeConfig() {
		rc := store.RuntimeConfig{
			Program:   []string{"/app/llama-server"},
			Host:      c.cfg.Llama.Host,
			Port:      c.cfg.Llama.Port,
			ModelPath: filepath.Join(config.ContainerModelDir, modelFile),
		}
		if err := c.store.SaveRuntimeConfig(rc); err != nil {
			return err
		}
	}

	if err := c.ensureTemplate(); err != nil {
		return err
	}
	if err := c.renderDefinition(); err != nil {
		return err
	}
	return c.Restart(ctx)
}

// Reinitialize refreshes an existing installation after a deployment-
// definition update: it re-renders the service definition and restarts the
// service set, but never touches the model store or the user-owned
// configuration documents. Updating code must not reset user state.
func (c *Controller) Reinitialize(ctx context.Context) error {
	c.logger.Info("Reinitializing installation", "root", c.cfg.InstallDir)

	if err := c.ensureTemplate(); err != nil {
		return err
	}
	if err := c.renderDefinition(); err != nil {
		return err
	}
	return c.Restart(ctx)
}

// Restart stops the whole service set and starts it again. Stop-then-start
// over the full set keeps the two services from ever running against
// configuration of different generations.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.orch.Down(ctx, c.cfg.InstallDir); err != nil {
		return fmt.Errorf("stop services: %w", err)
	}
	if err := c.orch.Up(ctx, c.cfg.InstallDir); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	return nil
}

func (c *Controller) ensureTemplate() error {
	path := c.TemplatePath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	c.logger.V(1).Info("Writing default deployment template", "path", path)
	return os.WriteFile(path, []byte(defaultTemplate), 0644)
}

func (c *Controller) renderDefinition() error {
	b, err := os.ReadFile(c.TemplatePath())
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	subs := c.substitutions()
	if err := template.ValidateValues(subs); err != nil {
		return err
	}
	doc := template.Render(string(b), subs)
	if missing := template.Unresolved(doc); len(missing) > 0 {
		return fmt.Errorf("template has unbound placeholders: %v", missing)
	}

	def, err := compose.ParseDefinition([]byte(doc))
	if err != nil {
		return err
	}
	if err := def.Validate(); err != nil {
		return fmt.Errorf("rendered definition: %w", err)
	}

	path := filepath.Join(c.cfg.InstallDir, compose.DefinitionFile)
	c.logger.V(1).Info("Writing service definition", "path", path)
	return os.WriteFile(path, []byte(doc), 0644)
}

func (c *Controller) substitutions() map[string]string {
	return map[string]string{
		"INSTALL_DIR": c.cfg.InstallDir,
		"MODEL_DIR":   c.cfg.ModelDir,
		"UI_DATA_DIR": c.cfg.UIDataDir,
		"LLAMA_IMAGE": c.cfg.Llama.Image,
		"WEBUI_IMAGE": c.cfg.WebUI.Image,
		"LLAMA_PORT":  strconv.Itoa(c.cfg.Llama.Port),
		"WEBUI_PORT":  strconv.Itoa(c.cfg.WebUI.Port),
	}
}
