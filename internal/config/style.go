package config

import (
	"os"
	"strings"

	"github.com/iliyamo/receipt-printer/internal/receipt"
)

// StyleSource resolves the receipt style per request: RECEIPT_*
// environment variables first, the settings overlay on top.
type StyleSource struct {
	env      map[string]string
	settings *Settings
}

// NewStyleSource captures the RECEIPT_* environment once. settings may be
// nil when no overlay is in use.
func NewStyleSource(settings *Settings) *StyleSource {
	return &StyleSource{env: receiptEnv(os.Environ()), settings: settings}
}

func receiptEnv(environ []string) map[string]string {
	out := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, settingsPrefix) {
			continue
		}
		out[receipt.NormalizeKey(k)] = v
	}
	return out
}

// Effective merges environment and overlay, overlay winning.
func (s *StyleSource) Effective() map[string]string {
	out := make(map[string]string, len(s.env))
	for k, v := range s.env {
		out[k] = v
	}
	if s.settings != nil {
		for k, v := range s.settings.Values() {
			out[k] = v
		}
	}
	return out
}

// Snapshot resolves the effective style. The result is a value; callers
// may hold it for the whole render.
func (s *StyleSource) Snapshot() (receipt.Style, error) {
	return receipt.ResolveStyle(s.Effective())
}

// Save validates overlay against the environment and persists it as the
// new settings file, returning the style that now applies.
func (s *StyleSource) Save(overlay map[string]string) (receipt.Style, error) {
	if err := CheckKeys(overlay); err != nil {
		return receipt.Style{}, err
	}
	merged := make(map[string]string, len(s.env)+len(overlay))
	for k, v := range s.env {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[receipt.NormalizeKey(k)] = v
	}
	st, err := receipt.ResolveStyle(merged)
	if err != nil {
		return receipt.Style{}, err
	}
	if s.settings == nil {
		return receipt.Style{}, os.ErrInvalid
	}
	if err := s.settings.Replace(overlay); err != nil {
		return receipt.Style{}, err
	}
	return st, nil
}
