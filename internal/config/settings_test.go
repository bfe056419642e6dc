package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/quicksong/internal/model"
)

func TestPasswordRoundTrip(t *testing.T) {
	for _, pw := range []string{"secret", "p@ss word with spaces", "x", "ünïcødé"} {
		hidden, err := hidePassword(pw)
		if err != nil {
			t.Fatalf("hidePassword: %v", err)
		}
		if strings.Contains(hidden, pw) {
			t.Errorf("hidden value %q contains the password", hidden)
		}
		if got := revealPassword(hidden, Signature()); got != pw {
			t.Errorf("revealPassword() = %q, want %q", got, pw)
		}
	}
}

func TestRevealPassword_WrongSignature(t *testing.T) {
	hidden, err := hidePassword("secret")
	if err != nil {
		t.Fatal(err)
	}
	if got := revealPassword(hidden, "not-this-machine"); got != "" {
		t.Errorf("revealPassword() = %q, want empty", got)
	}
	if got := revealPassword("garbage~", Signature()); got != "" {
		t.Errorf("revealPassword(garbage) = %q, want empty", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := DefaultSettings()
	if s.MaxInFlight != def.MaxInFlight || s.RotateEvery != def.RotateEvery || s.BaseURL != def.BaseURL {
		t.Errorf("Load() = %+v, want defaults", s)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	s := DefaultSettings()
	s.Username = "user"
	s.Password = "secret"
	s.UseProxy = true
	s.MaxRetries = 3
	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not JSON: %v", err)
	}
	if raw["password"] == "secret" {
		t.Error("password saved in clear")
	}
	if sig, _ := raw["signature"].(string); sig == "" {
		t.Error("signature missing")
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Username != "user" || got.Password != "secret" || !got.UseProxy || got.MaxRetries != 3 {
		t.Errorf("Load() = %+v", got)
	}
	if s.Password != "secret" {
		t.Error("Save modified the receiver")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"max_in_flight": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUICKSONG_MAX_IN_FLIGHT", "7")
	t.Setenv("QUICKSONG_USE_PROXY", "true")
	t.Setenv("QUICKSONG_PASSWORD", "plain")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.MaxInFlight != 7 {
		t.Errorf("MaxInFlight = %d, want 7", s.MaxInFlight)
	}
	if !s.UseProxy {
		t.Error("UseProxy not overridden")
	}
	if s.Password != "plain" {
		t.Errorf("Password = %q, want plain", s.Password)
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error")
	}
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	s.DownloadPath = t.TempDir()
	s.SongsPath = ""
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	s.SongsPath = filepath.Join(t.TempDir(), "missing")
	err := s.Validate()
	if kind := model.KindOf(err); kind != model.KindPath {
		t.Errorf("KindOf = %v, want %v", kind, model.KindPath)
	}
}

func TestRetryPolicy(t *testing.T) {
	s := DefaultSettings()
	p := s.RetryPolicy()
	if p.Cooldown != 500*time.Millisecond || p.MaxDelay != 30*time.Second || p.Exponent != 2 {
		t.Errorf("RetryPolicy() = %+v", p)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	if got := ResolvePath(dir); got != filepath.Join(dir, "config.json") {
		t.Errorf("ResolvePath(dir) = %q", got)
	}
	if got := ResolvePath(""); got != DefaultPath() {
		t.Errorf("ResolvePath(\"\") = %q", got)
	}
}
