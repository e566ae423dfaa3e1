// Package testutil carries small helpers shared by integration tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("create parent directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()
	content, err := os.ReadFile(path) // #nosec G304 -- test helper for controlled paths.
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content
}

func ReadJSON(t *testing.T, path string, out any) {
	t.Helper()
	if err := json.Unmarshal(MustReadFile(t, path), out); err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
}
