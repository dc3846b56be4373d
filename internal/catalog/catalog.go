// Package catalog defines the static list of secrets managed in the
// OpenClaw config and the environment variable names they map to.
package catalog

import (
	"regexp"
	"strings"
	"time"
)

const (
	// EnvPrefix prefixes every injected variable name.
	EnvPrefix = "OPENCLAW_SECURE_"

	// Placeholder marks a catalog path whose secret could not be found
	// in the backend.
	Placeholder = "[STORED_IN_KEYCHAIN]"

	// ServicePrefix namespaces backend keys for stores with a flat namespace.
	ServicePrefix = "openclaw"

	// KeychainAccount is the account used for keychain-style stores.
	KeychainAccount = "openclaw"

	DefaultConfigPath     = "~/.openclaw/openclaw.json"
	PreferencesPath       = "~/.openclaw-secure.json"
	DefaultBackend        = "keychain"
	DefaultGatewayCommand = "openclaw gateway run"
	DefaultHealthPort     = 18789
	DefaultTimeout        = 10 * time.Second
	DefaultGracePeriod    = 5 * time.Second
)

// SecretEntry ties a config path to the backend key holding its value.
type SecretEntry struct {
	ConfigPath   string `json:"configPath" yaml:"configPath"`
	KeychainName string `json:"keychainName" yaml:"keychainName"`
}

// SecretMap is an ordered catalog. Order only affects report ordering.
type SecretMap []SecretEntry

// Default is the catalog of OpenClaw secrets.
var Default = SecretMap{
	{ConfigPath: "gateway.auth.token", KeychainName: "gateway-auth-token"},
	{ConfigPath: "skills.entries.openai-whisper-api.apiKey", KeychainName: "whisper-api-key"},
	{ConfigPath: "models.providers.custom-anthropic.apiKey", KeychainName: "custom-anthropic-api-key"},
	{ConfigPath: "tools.web.search.apiKey", KeychainName: "web-search-api-key"},
	{ConfigPath: "plugins.entries.carapace.config.promptIntelApiKey", KeychainName: "carapace-prompt-intel-api-key"},
	{ConfigPath: "plugins.entries.carapace.config.llmApiKey", KeychainName: "carapace-llm-api-key"},
	{ConfigPath: "channels.discord.token", KeychainName: "discord-bot-token"},
	{ConfigPath: "channels.telegram.botToken", KeychainName: "telegram-bot-token"},
}

var nonEnvChar = regexp.MustCompile(`[^A-Z0-9]`)

// referencePattern matches a well-formed env reference.
var referencePattern = regexp.MustCompile(`^\$\{[A-Z0-9_]+\}$`)

// EnvVarName returns the variable name a backend key is injected under:
// the key upper-cased with every character outside [A-Z0-9] replaced by _.
func EnvVarName(keychainName string) string {
	return EnvPrefix + nonEnvChar.ReplaceAllString(strings.ToUpper(keychainName), "_")
}

// EnvReference returns the ${VAR} placeholder written to the config.
func EnvReference(keychainName string) string {
	return "${" + EnvVarName(keychainName) + "}"
}

// EnvVarName returns the variable name for this entry.
func (e SecretEntry) EnvVarName() string { return EnvVarName(e.KeychainName) }

// EnvReference returns the ${VAR} placeholder for this entry.
func (e SecretEntry) EnvReference() string { return EnvReference(e.KeychainName) }

// ServiceName returns the namespaced backend key, e.g. openclaw-gateway-auth-token.
func ServiceName(keychainName string) string {
	return ServicePrefix + "-" + keychainName
}

// IsEnvReference reports whether s is a well-formed ${VAR} reference.
func IsEnvReference(s string) bool {
	return referencePattern.MatchString(s)
}

// IsSafeValue reports whether s may sit at a catalog path on disk.
func IsSafeValue(s string) bool {
	return s == Placeholder || IsEnvReference(s)
}

// Keys returns the backend keys in catalog order.
func (m SecretMap) Keys() []string {
	keys := make([]string, len(m))
	for i, e := range m {
		keys[i] = e.KeychainName
	}
	return keys
}
