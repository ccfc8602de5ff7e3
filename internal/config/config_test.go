package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/receipt-printer/internal/utils"
)

func TestLoadDefaults(t *testing.T) {
	// keep a developer's .env out of the test
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("APP_API_KEY", "k")
	t.Setenv("UI_PASS", "pw")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("FONT_DIRS", "/a, /b:/c")

	cfg := Load()
	if cfg.Port != "8000" || cfg.PrintWidthPx != 576 || cfg.UIRememberDays != 30 || cfg.CookieName != "receipt_session" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionSecret != "k" {
		t.Fatalf("session secret should default to the api key")
	}
	if cfg.MQTT.Topic != "print/tickets" || cfg.MQTT.QoS != 2 || cfg.SinkKind != "mqtt" {
		t.Fatalf("mqtt defaults %+v", cfg.MQTT)
	}
	if cfg.GuestStore != GuestStoreFile || cfg.GuestDBFile != "guest_tokens.json" || cfg.SettingsFile != "settings.json" {
		t.Fatalf("store defaults %+v", cfg)
	}
	if strings.Join(cfg.FontDirs, "|") != "/a|/b|/c" {
		t.Fatalf("font dirs = %q", cfg.FontDirs)
	}
	if !utils.VerifyPassword(cfg.UIPassHash, "pw") {
		t.Fatalf("UI_PASS was not hashed")
	}
	if cfg.SessionTTL() != 30*24*time.Hour {
		t.Fatalf("ttl = %v", cfg.SessionTTL())
	}
}

func TestLoadRateLimitConfigNormalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "bogus")
	rl := LoadRateLimitConfig()
	if rl.Capacity != 1 || rl.TTL != 5*time.Minute || rl.KeyStrategy != "token_ip" {
		t.Fatalf("got %+v", rl)
	}
}

func TestLogErrorFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("prod", "debug")
	l.SetOutput(&buf)
	LogError(l, "guest", "Consume", "consume token", map[string]int{"n": 1}, errors.New("boom"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if entry["module"] != "guest" || entry["funcName"] != "Consume" || entry["msg"] != "boom" || entry["data"] == nil {
		t.Fatalf("entry = %v", entry)
	}
	if NewLogger("prod", "nonsense").GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestSettingsReadsTypedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	doc := `{"RECEIPT_TITLE_SIZE": 40, "RECEIPT_LINE_HEIGHT": 1.2, "RECEIPT_RULE_AFTER_TITLE": true, "RECEIPT_ALIGN_TEXT": "center", "RECEIPT_TIME_PREFIX": ""}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatalf("OpenSettings: %v", err)
	}
	v := s.Values()
	if v["TITLE_SIZE"] != "40" || v["LINE_HEIGHT"] != "1.2" || v["RULE_AFTER_TITLE"] != "true" || v["ALIGN_TEXT"] != "center" {
		t.Fatalf("values = %v", v)
	}
}

func TestSettingsRejectsBadFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"RECEIPT_TITLE_SIZE": [1,2]}`), 0o644)
	if _, err := OpenSettings(bad); err == nil {
		t.Fatalf("expected error for non-scalar value")
	}
	if s, err := OpenSettings(filepath.Join(dir, "missing.json")); err != nil || len(s.Values()) != 0 {
		t.Fatalf("missing file should be empty overlay: %v", err)
	}
}

func TestSettingsReplaceWritesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, _ := OpenSettings(path)
	if err := s.Replace(map[string]string{"title_size": "44"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	data, _ := os.ReadFile(path)
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil || m["RECEIPT_TITLE_SIZE"] != "44" {
		t.Fatalf("file = %q (%v)", data, err)
	}
	again, _ := OpenSettings(path)
	if again.Values()["TITLE_SIZE"] != "44" {
		t.Fatalf("reload = %v", again.Values())
	}
}

func TestSettingsReplaceFailureKeepsOverlay(t *testing.T) {
	s, _ := OpenSettings(filepath.Join(t.TempDir(), "settings.json"))
	_ = s.Replace(map[string]string{"TEXT_SIZE": "30"})
	s.persist = func(string, []byte) error { return errors.New("read-only fs") }
	if err := s.Replace(map[string]string{"TEXT_SIZE": "99"}); err == nil {
		t.Fatalf("expected error")
	}
	if s.Values()["TEXT_SIZE"] != "30" {
		t.Fatalf("overlay changed after failed write")
	}
}

func TestStyleSourcePrecedence(t *testing.T) {
	s, _ := OpenSettings(filepath.Join(t.TempDir(), "settings.json"))
	src := &StyleSource{
		env:      receiptEnv([]string{"RECEIPT_PRESET=compact", "RECEIPT_TEXT_SIZE=26", "RECEIPT_TITLE_SIZE=31", "OTHER=1"}),
		settings: s,
	}
	st, err := src.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// env override beats preset, preset beats default
	if st.TextFont.Size != 26 || st.TitleFont.Size != 31 || st.TimeFont.Size != 20 || st.Preset != "compact" {
		t.Fatalf("style = %+v", st)
	}

	st, err = src.Save(map[string]string{"RECEIPT_TITLE_SIZE": "50"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if st.TitleFont.Size != 50 || st.TextFont.Size != 26 {
		t.Fatalf("saved style = %+v", st)
	}
	if snap, _ := src.Snapshot(); snap.TitleFont.Size != 50 {
		t.Fatalf("overlay should win over env")
	}

	if _, err := src.Save(map[string]string{"FOO": "1"}); err == nil {
		t.Fatalf("unknown key accepted")
	}
	if _, err := src.Save(map[string]string{"MARGIN_TOP": "-1"}); err == nil {
		t.Fatalf("negative margin accepted")
	}
	if snap, _ := src.Snapshot(); snap.TitleFont.Size != 50 {
		t.Fatalf("rejected save changed the overlay")
	}
}
