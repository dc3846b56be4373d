package backends

import (
	"os"

	"github.com/systmms/openclaw-secure/internal/catalog"
)

// stringOption returns options[key] when it is a non-empty string, then the
// first non-empty environment variable in envs, then def.
func stringOption(options map[string]any, key, def string, envs ...string) string {
	if s, ok := options[key].(string); ok && s != "" {
		return s
	}
	for _, env := range envs {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return def
}

// itemName maps a keychain name to the flat item name used by stores that
// share one namespace with other applications.
func itemName(key string) string {
	return catalog.ServiceName(key)
}
