package store

import (
	"errors"
	"strings"
)

// WhitelistState is the enabled/disabled state of the access-control document.
type WhitelistState int

const (
	// WhitelistStateUnknown means neither the enabled nor the disabled marker
	// was found. It is terminal for Toggle; the document needs manual repair.
	WhitelistStateUnknown WhitelistState = iota
	WhitelistEnabled
	WhitelistDisabled
)

// String returns the operator-facing name of the state.
func (s WhitelistState) String() string {
	switch s {
	case WhitelistEnabled:
		return "enabled"
	case WhitelistDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

const (
	whitelistMarkerOn  = "enabled"
	whitelistMarkerOff = "#enabled"
)

// ErrWhitelistStateUnknown is returned when the governing marker line is
// missing. Toggle must not guess a state on such a document.
var ErrWhitelistStateUnknown = errors.New("whitelist document has no enabled marker")

// Whitelist is the UI access-control document: a governing marker line
// ("enabled", or "#enabled" when disabled) and one IPv4 address per line.
// The document is kept line-for-line so that toggling and re-encoding never
// discard entries, comments, or ordering.
type Whitelist struct {
	lines []string
}

// ParseWhitelist decodes the document, preserving every line verbatim.
func ParseWhitelist(b []byte) *Whitelist {
	text := strings.TrimRight(string(b), "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return &Whitelist{lines: lines}
}

// NewWhitelist returns an enabled document seeded with the given entries.
func NewWhitelist(entries ...string) *Whitelist {
	lines := []string{
		"# UI access whitelist. One IPv4 address per line.",
		whitelistMarkerOn,
	}
	lines = append(lines, entries...)
	return &Whitelist{lines: lines}
}

// State reports the enabled/disabled state from the marker line.
func (w *Whitelist) State() WhitelistState {
	for _, line := range w.lines {
		switch strings.TrimSpace(line) {
		case whitelistMarkerOn:
			return WhitelistEnabled
		case whitelistMarkerOff:
			return WhitelistDisabled
		}
	}
	return WhitelistStateUnknown
}

// Entries returns the whitelisted addresses in document order.
func (w *Whitelist) Entries() []string {
	var out []string
	for _, line := range w.lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") || t == whitelistMarkerOn {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Has reports whether the address is already whitelisted.
func (w *Whitelist) Has(ip string) bool {
	for _, e := range w.Entries() {
		if e == ip {
			return true
		}
	}
	return false
}

// Add appends the address to the document. It returns false without modifying
// anything when the address is already present.
func (w *Whitelist) Add(ip string) bool {
	if w.Has(ip) {
		return false
	}
	w.lines = append(w.lines, ip)
	return true
}

// Toggle flips the marker line between enabled and disabled, leaving the
// entry list untouched. On a document with no marker it makes no change and
// returns ErrWhitelistStateUnknown.
func (w *Whitelist) Toggle() (WhitelistState, error) {
	for i, line := range w.lines {
		switch strings.TrimSpace(line) {
		case whitelistMarkerOn:
			w.lines[i] = whitelistMarkerOff
			return WhitelistDisabled, nil
		case whitelistMarkerOff:
			w.lines[i] = whitelistMarkerOn
			return WhitelistEnabled, nil
		}
	}
	return WhitelistStateUnknown, ErrWhitelistStateUnknown
}

// Encode serializes the document.
func (w *Whitelist) Encode() []byte {
	if len(w.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(w.lines, "\n") + "\n")
}
