package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/receipt-printer/internal/receipt"
	"github.com/iliyamo/receipt-printer/internal/utils"
)

// settingsPrefix is how keys are written to the overlay file.
const settingsPrefix = "RECEIPT_"

// Settings is the persisted style overlay edited through the settings
// API. Keys are held normalized (TITLE_SIZE), values as strings.
//
// The file is a flat JSON or YAML mapping; JSON files written by older
// deployments with typed values ({"RECEIPT_TITLE_SIZE": 36}) load as is.
type Settings struct {
	path string

	mu     sync.RWMutex
	values map[string]string

	persist func(path string, data []byte) error
}

// OpenSettings loads path. A missing file is an empty overlay.
func OpenSettings(path string) (*Settings, error) {
	s := &Settings{path: path, values: map[string]string{}, persist: utils.WriteFileAtomic}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	for k, v := range raw {
		str, ok := scalarString(v)
		if !ok {
			return nil, fmt.Errorf("parse settings %s: %s is not a scalar", path, k)
		}
		s.values[receipt.NormalizeKey(k)] = str
	}
	return s, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}

// Values returns a copy of the overlay.
func (s *Settings) Values() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Replace persists values as the new overlay and installs it once the
// write succeeded.
func (s *Settings) Replace(values map[string]string) error {
	next := make(map[string]string, len(values))
	for k, v := range values {
		next[receipt.NormalizeKey(k)] = v
	}
	data, err := s.encode(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(s.path, data); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}
	s.values = next
	return nil
}

func (s *Settings) encode(values map[string]string) ([]byte, error) {
	file := make(map[string]string, len(values))
	for k, v := range values {
		file[settingsPrefix+k] = v
	}
	switch strings.ToLower(filepath.Ext(s.path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(file)
	default:
		return json.MarshalIndent(file, "", "  ")
	}
}

// CheckKeys rejects keys the style resolver does not know.
func CheckKeys(values map[string]string) error {
	known := map[string]bool{}
	for _, k := range receipt.StyleKeys() {
		known[k] = true
	}
	var unknown []string
	for k := range values {
		if !known[receipt.NormalizeKey(k)] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown setting(s): %s", strings.Join(unknown, ", "))
	}
	return nil
}
