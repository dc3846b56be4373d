package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/openclaw-secure/internal/catalog"
	"github.com/systmms/openclaw-secure/internal/docpath"
)

// WriteConfig writes doc as an openclaw.json file in a fresh temp dir and
// returns its path.
//
// Example usage:
//
//	path := testutil.WriteConfig(t, map[string]any{
//	    "gateway": map[string]any{"auth": map[string]any{"token": "abc"}},
//	})
func WriteConfig(t *testing.T, doc map[string]any) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "openclaw.json")
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, '\n'), 0o600))
	return path
}

// ReadConfig decodes the JSON file at path.
func ReadConfig(t *testing.T, path string) map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read file %s", path)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc), "File %s is not a JSON object", path)
	return doc
}

// AssertConfigScrubbed verifies that every catalog path present in the file
// holds an env reference or the missing placeholder, and that none of the
// given secret values appear anywhere in the file.
func AssertConfigScrubbed(t *testing.T, path string, secretMap catalog.SecretMap, secrets ...string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, secret := range secrets {
		assert.NotContains(t, string(data), secret,
			"Secret %q should not appear in %s", secret, path)
	}

	doc := ReadConfig(t, path)
	for _, entry := range secretMap {
		v, ok, err := docpath.Get(doc, entry.ConfigPath)
		require.NoError(t, err)
		if !ok {
			continue
		}
		s, isString := v.(string)
		assert.True(t, isString && catalog.IsSafeValue(s),
			"%s holds %v, want an env reference or placeholder", entry.ConfigPath, v)
	}
}

// AssertSecretRedacted verifies that a secret value does not appear in a
// string and that the [REDACTED] marker does.
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertLinesContain verifies that specific lines are present in multi-line output.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	lines := strings.Split(output, "\n")
	for _, expected := range expectedLines {
		found := false
		for _, line := range lines {
			if strings.Contains(line, expected) {
				found = true
				break
			}
		}
		assert.True(t, found, "Expected to find line containing %q in output", expected)
	}
}
