// Package inventory enumerates the model files available in the model store
// directory. The inventory grows when a model is downloaded and is otherwise
// read-only.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ModelFileExt is the file extension of a servable model.
const ModelFileExt = ".gguf"

// ErrModelNotFound is returned when a named model is not in the inventory.
var ErrModelNotFound = errors.New("model not found in inventory")

// Inventory lists the model files of one model store directory.
type Inventory struct {
	modelDir string
}

// New creates an inventory over the given directory.
func New(modelDir string) *Inventory {
	return &Inventory{modelDir: modelDir}
}

// ModelDir returns the directory backing the inventory.
func (i *Inventory) ModelDir() string {
	return i.modelDir
}

// List returns the model filenames, sorted. Non-model files and
// subdirectories are ignored.
func (i *Inventory) List() ([]string, error) {
	entries, err := os.ReadDir(i.modelDir)
	if err != nil {
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ModelFileExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Resolve returns the absolute path of a model in the inventory. Names
// outside the inventory (including anything path-like) are rejected.
func (i *Inventory) Resolve(name string) (string, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ModelFileExt) {
		return "", fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	path := filepath.Join(i.modelDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return filepath.Abs(path)
}
