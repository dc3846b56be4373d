package config

import (
	"encoding/json"
	"os"
	"strings"
	"sync"

	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"

	"github.com/systmms/openclaw-secure/internal/logging"
)

// Preferences is the optional per-user settings file. Zero values mean
// "not set"; flags override preferences, preferences override defaults.
type Preferences struct {
	Backend        string                    `json:"backend,omitempty"`
	ConfigPath     string                    `json:"configPath,omitempty"`
	TimeoutMs      int                       `json:"timeoutMs,omitempty"`
	GracePeriodMs  int                       `json:"gracePeriodMs,omitempty"`
	GatewayCommand string                    `json:"gatewayCommand,omitempty"`
	HealthPort     int                       `json:"healthPort,omitempty"`
	Backends       map[string]map[string]any `json:"backends,omitempty"`
}

const preferencesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "backend":        {"type": "string", "minLength": 1},
    "configPath":     {"type": "string", "minLength": 1},
    "timeoutMs":      {"type": "integer", "minimum": 1},
    "gracePeriodMs":  {"type": "integer", "minimum": 0},
    "gatewayCommand": {"type": "string", "minLength": 1},
    "healthPort":     {"type": "integer", "minimum": 1, "maximum": 65535},
    "backends": {
      "type": "object",
      "additionalProperties": {"type": "object"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func preferencesValidator() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(preferencesSchema))
	})
	return schema, schemaErr
}

// LoadPreferences reads the preferences file. A missing or unreadable file
// yields empty preferences silently. Malformed or schema-invalid content
// also yields empty preferences, with a warning so typos are noticed.
func LoadPreferences(path string, logger *logging.Logger) Preferences {
	path = ExpandPath(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Debug("Ignoring unreadable preferences %s: %v", path, err)
		}
		return Preferences{}
	}

	data := jsonc.ToJSON(raw)
	if strings.TrimSpace(string(data)) == "" {
		return Preferences{}
	}

	validator, err := preferencesValidator()
	if err != nil {
		logger.Debug("Preferences schema unavailable: %v", err)
		return Preferences{}
	}

	result, err := validator.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		logger.Warn("Ignoring malformed preferences file %s: %v", path, err)
		return Preferences{}
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		logger.Warn("Ignoring invalid preferences file %s: %s", path, strings.Join(problems, "; "))
		return Preferences{}
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		logger.Warn("Ignoring malformed preferences file %s: %v", path, err)
		return Preferences{}
	}
	return prefs
}
