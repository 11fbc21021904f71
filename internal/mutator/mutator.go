// Package mutator applies single operator-driven mutations to the
// configuration documents and restarts the affected services. Every
// operation is idempotent: applying it again, or applying it when the target
// state already holds, never corrupts a document.
package mutator

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/localserve/localserve/internal/compose"
	"github.com/localserve/localserve/internal/config"
	"github.com/localserve/localserve/internal/downloader"
	"github.com/localserve/localserve/internal/fetch"
	"github.com/localserve/localserve/internal/inventory"
	"github.com/localserve/localserve/internal/store"
)

// ValidationError reports operator input that was rejected before any state
// change.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Mutator performs targeted edits to the configuration documents.
type Mutator struct {
	store      *store.Store
	inv        *inventory.Inventory
	dl         *downloader.D
	orch       compose.Client
	projectDir string
	logger     logr.Logger
}

// New returns a new Mutator.
func New(
	st *store.Store,
	inv *inventory.Inventory,
	dl *downloader.D,
	orch compose.Client,
	projectDir string,
	logger logr.Logger,
) *Mutator {
	return &Mutator{
		store:      st,
		inv:        inv,
		dl:         dl,
		orch:       orch,
		projectDir: projectDir,
		logger:     logger.WithName("mutator"),
	}
}

// ListModels returns the model filenames available for selection, sorted.
func (m *Mutator) ListModels() ([]string, error) {
	return m.inv.List()
}

// CurrentModel returns the filename of the active model, or empty when the
// launch command carries no model flag.
func (m *Mutator) CurrentModel() (string, error) {
	rc, err := m.store.LoadRuntimeConfig()
	if err != nil {
		return "", err
	}
	if rc.ModelPath == "" {
		return "", nil
	}
	return filepath.Base(rc.ModelPath), nil
}

// CurrentContextSize returns the configured context-window size, or zero
// when the flag is absent and the engine default applies.
func (m *Mutator) CurrentContextSize() (int, error) {
	rc, err := m.store.LoadRuntimeConfig()
	if err != nil {
		return 0, err
	}
	return rc.ContextSize, nil
}

// SetActiveModel points the launch command at a model from the inventory and
// restarts the full service set. The model flag must already be present; it
// is written at initialization, so its absence is reported, not papered
// over.
func (m *Mutator) SetActiveModel(ctx context.Context, name string) error {
	if _, err := m.inv.Resolve(name); err != nil {
		return err
	}
	rc, err := m.store.LoadRuntimeConfig()
	if err != nil {
		return err
	}
	if err := rc.SetModel(filepath.Join(config.ContainerModelDir, name)); err != nil {
		return err
	}
	if err := m.store.SaveRuntimeConfig(rc); err != nil {
		return err
	}
	m.logger.Info("Switched active model", "model", name)
	return m.restartAll(ctx)
}

// SetContextSize sets the context-window size and restarts the full service
// set. The flag is appended when absent and replaced in place when present,
// so the document never accumulates duplicates.
func (m *Mutator) SetContextSize(ctx context.Context, n int) error {
	if n <= 0 {
		return &ValidationError{Field: "context size", Reason: "must be a positive integer"}
	}
	rc, err := m.store.LoadRuntimeConfig()
	if err != nil {
		return err
	}
	if err := rc.SetContextSize(n); err != nil {
		return err
	}
	if err := m.store.SaveRuntimeConfig(rc); err != nil {
		return err
	}
	m.logger.Info("Set context size", "size", n)
	return m.restartAll(ctx)
}

// ResetContextSize removes the context-size flag entirely so the engine
// default applies, then restarts the full service set.
func (m *Mutator) ResetContextSize(ctx context.Context) error {
	rc, err := m.store.LoadRuntimeConfig()
	if err != nil {
		return err
	}
	rc.ResetContextSize()
	if err := m.store.SaveRuntimeConfig(rc); err != nil {
		return err
	}
	m.logger.Info("Reset context size to engine default")
	return m.restartAll(ctx)
}

// AddWhitelistEntry adds an IPv4 address to the access whitelist and
// recreates only the UI service. It returns false, without a restart, when
// the address is already present. Addresses are validated strictly: four
// dotted groups with each octet in 0-255.
func (m *Mutator) AddWhitelistEntry(ctx context.Context, ip string) (bool, error) {
	if err := validateIPv4(ip); err != nil {
		return false, err
	}
	w, err := m.store.LoadWhitelist()
	if err != nil {
		return false, err
	}
	if !w.Add(ip) {
		m.logger.Info("Address already whitelisted", "ip", ip)
		return false, nil
	}
	if err := m.store.SaveWhitelist(w); err != nil {
		return false, err
	}
	m.logger.Info("Whitelisted address", "ip", ip)
	return true, m.restartUI(ctx)
}

// ToggleWhitelist flips the whitelist between enabled and disabled without
// touching the entry list, then recreates only the UI service. A document
// with no recognizable marker is left unchanged and reported.
func (m *Mutator) ToggleWhitelist(ctx context.Context) (store.WhitelistState, error) {
	w, err := m.store.LoadWhitelist()
	if err != nil {
		return store.WhitelistStateUnknown, err
	}
	state, err := w.Toggle()
	if err != nil {
		return state, err
	}
	if err := m.store.SaveWhitelist(w); err != nil {
		return state, err
	}
	m.logger.Info("Toggled whitelist", "state", state.String())
	return state, m.restartUI(ctx)
}

// WhitelistEntries returns the current whitelist entries and state.
func (m *Mutator) WhitelistEntries() ([]string, store.WhitelistState, error) {
	w, err := m.store.LoadWhitelist()
	if err != nil {
		return nil, store.WhitelistStateUnknown, err
	}
	return w.Entries(), w.State(), nil
}

// DownloadModel fetches an additional model into the inventory. The stack is
// not restarted; the new model only takes effect once selected.
func (m *Mutator) DownloadModel(ctx context.Context, rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Field: "URL", Reason: "must not be empty"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "URL", Reason: err.Error()}
	}
	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return &ValidationError{Field: "URL", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	filename, err := fetch.Filename(rawURL)
	if err != nil {
		return &ValidationError{Field: "URL", Reason: err.Error()}
	}
	if !strings.HasSuffix(filename, inventory.ModelFileExt) {
		return &ValidationError{
			Field:  "URL",
			Reason: fmt.Sprintf("must point at a %s file", inventory.ModelFileExt),
		}
	}
	return m.dl.Download(ctx, filename, rawURL)
}

func (m *Mutator) restartAll(ctx context.Context) error {
	if err := m.orch.Down(ctx, m.projectDir); err != nil {
		return fmt.Errorf("stop services: %w", err)
	}
	if err := m.orch.Up(ctx, m.projectDir); err != nil {
		return fmt.Errorf("start services: %w", err)
	}
	return nil
}

// restartUI recreates only the UI service. Whitelist changes do not concern
// the inference engine, and recreating it would drop its loaded model state.
func (m *Mutator) restartUI(ctx context.Context) error {
	if err := m.orch.Recreate(ctx, m.projectDir, compose.ServiceWebUI); err != nil {
		return fmt.Errorf("recreate UI service: %w", err)
	}
	return nil
}

// validateIPv4 accepts only dotted-quad addresses with in-range octets. The
// stricter-than-historical check (rejecting values like 300.1.1.1 and
// IPv4-mapped forms like ::ffff:10.0.0.5) is deliberate; see the whitelist
// tests.
func validateIPv4(ip string) error {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return &ValidationError{Field: "IP address", Reason: fmt.Sprintf("%q is not a dotted-quad IPv4 address", ip)}
	}
	return nil
}
