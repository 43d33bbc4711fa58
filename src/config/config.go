package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/translate"
	APIKeyPathEnvVar  = "API_KEY_FILE"
	// EnvFileVar points at an alternate .env when none sits next to the
	// executable.
	EnvFileVar = "SELECT_TRANSLATE"

	DefaultHotkey            = "Ctrl+Alt+T"
	DefaultTargetLang        = "zh"
	DefaultProvider          = "google"
	DefaultCopyTimeout       = 2 * time.Second
	DefaultTranslateDeadline = 15 * time.Second
	DefaultMaxSelectionBytes = 32 * 1024
)

// Config is the resolved runtime configuration. Values come from a .env
// file (next to the executable, or at $SELECT_TRANSLATE), then the process
// environment, then defaults. File values win over environment values.
type Config struct {
	Hotkey     string
	TargetLang string
	SourceLang string
	AutoDetect bool

	Provider string
	Endpoint string
	Model    string
	APIKey   string
	// APIKeyPath is where the key was looked for, kept for diagnostics.
	APIKeyPath string

	AutoConfirm       bool
	CopyTimeout       time.Duration
	TranslateDeadline time.Duration
	MaxSelectionBytes int

	EnableFileLogging bool
	HistoryEnabled    bool
}

// Load resolves configuration from the default .env location.
func Load() (*Config, error) {
	return loadFrom(resolveEnvPath())
}

// LoadFile resolves configuration with an explicit .env path, used by tests.
func LoadFile(envPath string) (*Config, error) {
	return loadFrom(envPath)
}

func loadFrom(envPath string) (*Config, error) {
	values := map[string]string{}
	if envPath != "" {
		read, err := godotenv.Read(envPath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", envPath, err)
		}
		values = read
	}

	get := func(key, fallback string) string {
		if v, ok := values[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	keyPath := get(APIKeyPathEnvVar, DefaultAPIKeyPath)

	cfg := &Config{
		Hotkey:     get("HOTKEY", DefaultHotkey),
		TargetLang: strings.ToLower(get("TARGET_LANG", DefaultTargetLang)),
		SourceLang: strings.ToLower(get("SOURCE_LANG", "")),
		AutoDetect: parseBool(get("AUTO_DETECT", "true")),

		Provider: strings.ToLower(get("PROVIDER", DefaultProvider)),
		Endpoint: get("TRANSLATION_ENDPOINT", ""),
		Model:    get("MODEL", ""),

		APIKey:     resolveAPIKey(keyPath, get("TRANSLATE_API_KEY", "")),
		APIKeyPath: keyPath,

		AutoConfirm:       parseBool(get("AUTO_CONFIRM", "false")),
		CopyTimeout:       msOrDefault(get("COPY_TIMEOUT_MS", ""), DefaultCopyTimeout),
		TranslateDeadline: secOrDefault(get("TRANSLATE_DEADLINE_SEC", ""), DefaultTranslateDeadline),
		MaxSelectionBytes: intOrDefault(get("MAX_SELECTION_BYTES", ""), DefaultMaxSelectionBytes),

		EnableFileLogging: parseBool(get("ENABLE_FILE_LOGGING", "false")),
		HistoryEnabled:    parseBool(get("HISTORY_ENABLED", "true")),
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Provider {
	case "google":
		// The free endpoint needs no key.
	case "deepl", "openai", "anthropic":
		if c.APIKey == "" {
			return fmt.Errorf("provider %q requires an API key (set TRANSLATE_API_KEY or put it in %s)", c.Provider, c.APIKeyPath)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.TargetLang == "" {
		return fmt.Errorf("TARGET_LANG must not be empty")
	}
	return nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}
	if alt := os.Getenv(EnvFileVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

// resolveAPIKey prefers the secret file, then the configured literal key.
func resolveAPIKey(keyPath, literal string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}
	return literal
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func intOrDefault(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}

func msOrDefault(v string, def time.Duration) time.Duration {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return def
}

func secOrDefault(v string, def time.Duration) time.Duration {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
