// Package store owns the mutable configuration documents of a deployment:
// the inference launch command (llama.command) and the UI access whitelist
// (whitelist.conf). Both are plain text files under the install root. The
// deployment controller creates them once; all later edits go through the
// typed records in this package so that repeated mutations can never corrupt
// the documents.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
)

const (
	runtimeConfigFile = "llama.command"
	whitelistFile     = "whitelist.conf"
)

// Store reads and writes the configuration documents of one install root.
type Store struct {
	dir    string
	logger logr.Logger
}

// New creates a store rooted at the given install directory.
func New(dir string, logger logr.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.WithName("store"),
	}
}

// RuntimeConfigPath returns the path of the launch-command document.
func (s *Store) RuntimeConfigPath() string {
	return filepath.Join(s.dir, runtimeConfigFile)
}

// WhitelistPath returns the path of the access-control document.
func (s *Store) WhitelistPath() string {
	return filepath.Join(s.dir, whitelistFile)
}

// HasRuntimeConfig reports whether the launch-command document exists.
func (s *Store) HasRuntimeConfig() bool {
	_, err := os.Stat(s.RuntimeConfigPath())
	return err == nil
}

// HasWhitelist reports whether the access-control document exists.
func (s *Store) HasWhitelist() bool {
	_, err := os.Stat(s.WhitelistPath())
	return err == nil
}

// LoadRuntimeConfig reads and decodes the launch-command document.
func (s *Store) LoadRuntimeConfig() (RuntimeConfig, error) {
	b, err := os.ReadFile(s.RuntimeConfigPath())
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("read runtime config: %w", err)
	}
	rc, err := ParseRuntimeConfig(string(b))
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("parse %s: %w", runtimeConfigFile, err)
	}
	return rc, nil
}

// SaveRuntimeConfig encodes and writes the launch-command document. The write
// goes through a temp file and rename so a crash cannot leave a half-written
// command.
func (s *Store) SaveRuntimeConfig(rc RuntimeConfig) error {
	s.logger.V(1).Info("Writing runtime config", "path", s.RuntimeConfigPath())
	return s.writeAtomic(s.RuntimeConfigPath(), []byte(rc.Encode()))
}

// LoadWhitelist reads and decodes the access-control document.
func (s *Store) LoadWhitelist() (*Whitelist, error) {
	b, err := os.ReadFile(s.WhitelistPath())
	if err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}
	return ParseWhitelist(b), nil
}

// SaveWhitelist encodes and writes the access-control document.
func (s *Store) SaveWhitelist(w *Whitelist) error {
	s.logger.V(1).Info("Writing whitelist", "path", s.WhitelistPath())
	return s.writeAtomic(s.WhitelistPath(), w.Encode())
}

func (s *Store) writeAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
