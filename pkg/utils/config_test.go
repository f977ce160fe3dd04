package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecodeJSONAllowsComments(t *testing.T) {
	raw := []byte(`{
		// MedPC array holding timestamps
		"timestamp": "T",
		"event_index": "E",
		"event_map": {"1": "press",},
	}`)

	var cfg struct {
		Timestamp  string            `json:"timestamp"`
		EventIndex string            `json:"event_index"`
		EventMap   map[string]string `json:"event_map"`
	}
	if err := DecodeJSON(raw, &cfg); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if cfg.Timestamp != "T" || cfg.EventIndex != "E" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if cfg.EventMap["1"] != "press" {
		t.Errorf("Expected event 1 to map to press, got %q", cfg.EventMap["1"])
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var v map[string]any
	if err := DecodeJSON([]byte(`{"a": `), &v); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	var v map[string]any
	if err := LoadJSON(filepath.Join(t.TempDir(), "missing.json"), &v); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.json")

	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Expected overwritten content, got %q", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("BEHAPY_TEST_VALUE", "set")
	if got := GetEnvOrDefault("BEHAPY_TEST_VALUE", "def"); got != "set" {
		t.Errorf("Expected env value, got %q", got)
	}
	if got := GetEnvOrDefault("BEHAPY_TEST_UNSET", "def"); got != "def" {
		t.Errorf("Expected default, got %q", got)
	}
}
