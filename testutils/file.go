package testutils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

// TempDir creates a temporary directory and fails the test if it cannot.
func TempDir(t *testing.T, dir, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp(dir, pattern)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, os.RemoveAll(dir), test.ShouldBeNil)
	})
	return dir
}

// WriteJSONLines writes one JSON document per record to dir/name and returns the path.
func WriteJSONLines[T any](t *testing.T, dir, name string, records []T) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path) //nolint:gosec
	test.That(t, err, test.ShouldBeNil)
	enc := json.NewEncoder(f)
	for _, r := range records {
		test.That(t, enc.Encode(r), test.ShouldBeNil)
	}
	test.That(t, f.Close(), test.ShouldBeNil)
	return path
}

// WriteJSON writes v as a JSON document to dir/name and returns the path.
func WriteJSON(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	test.That(t, err, test.ShouldBeNil)
	path := filepath.Join(dir, name)
	test.That(t, os.WriteFile(path, data, 0o600), test.ShouldBeNil)
	return path
}
