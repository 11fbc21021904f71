package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/config"
	"github.com/localserve/localserve/internal/deploy"
	"github.com/localserve/localserve/internal/downloader"
	"github.com/localserve/localserve/internal/fetch"
	"github.com/localserve/localserve/internal/inventory"
	"github.com/localserve/localserve/internal/mutator"
	"github.com/localserve/localserve/internal/store"
	"github.com/localserve/localserve/internal/updater"
)

// app wires the components of one installation together. The install root is
// resolved from the operator's home directory here, and only here; every
// component below receives resolved paths.
type app struct {
	cfg    config.Config
	logger logr.Logger

	store *store.Store
	inv   *inventory.Inventory
	dl    *downloader.D
	orch  compose.Client
	ctrl  *deploy.Controller
	mut   *mutator.Mutator
	upd   *updater.Updater
}

func newApp(configPath string, logLevel int) (*app, error) {
	stdr.SetVerbosity(logLevel)
	logger := stdr.New(log.Default())

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := config.Default(home)
	if configPath != "" {
		cfg, err = config.Parse(configPath, home)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := store.New(cfg.InstallDir, logger)
	inv := inventory.New(cfg.ModelDir)
	dl := downloader.New(cfg.ModelDir, fetch.NewAuto(logger), logger)
	orch := compose.NewClient(logger)
	ctrl := deploy.New(&cfg, st, dl, orch, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		inv:    inv,
		dl:     dl,
		orch:   orch,
		ctrl:   ctrl,
		mut:    mutator.New(st, inv, dl, orch, cfg.InstallDir, logger),
		upd:    updater.New(cfg.InstallDir, ctrl, logger),
	}, nil
}
