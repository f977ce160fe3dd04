package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// LoadJSON reads a JSON config file into v. Comments and trailing commas
// are accepted.
func LoadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return DecodeJSON(raw, v)
}

// DecodeJSON is LoadJSON for in-memory data.
func DecodeJSON(raw []byte, v any) error {
	std, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if err := json.Unmarshal(std, v); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}

// GetEnvOrDefault returns the environment value of key, or def when unset.
func GetEnvOrDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}
