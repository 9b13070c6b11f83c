package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv
const (
	EnvAnthropicKey     = "ANTHROPIC_API_KEY"
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvApifyToken       = "APIFY_TOKEN"
	EnvRetellKey        = "RETELL_API_KEY"
	EnvGmailCredentials = "GMAIL_CREDENTIALS_JSON"
	EnvModel            = "ACTORGLUE_MODEL"
	EnvLogLevel         = "ACTORGLUE_LOG_LEVEL"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are not overwritten and a missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment values on top of the file configuration.
// getenv is usually os.Getenv.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}

	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = FirstNonEmpty(getenv(EnvOpenAIKey), cfg.LLM.APIKey)
	default:
		cfg.LLM.APIKey = FirstNonEmpty(getenv(EnvAnthropicKey), cfg.LLM.APIKey)
	}
	cfg.LLM.Model = FirstNonEmpty(getenv(EnvModel), cfg.LLM.Model)
	cfg.Logging.Level = FirstNonEmpty(getenv(EnvLogLevel), cfg.Logging.Level)
	cfg.Apify.Token = FirstNonEmpty(getenv(EnvApifyToken), cfg.Apify.Token)
	cfg.Retell.APIKey = FirstNonEmpty(getenv(EnvRetellKey), cfg.Retell.APIKey)
}

// FirstNonEmpty returns the first non-empty value. Callers list sources in
// precedence order: flag, environment, local file, input payload, default.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// FirstNonEmptyList is FirstNonEmpty for string lists
func FirstNonEmptyList(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

// FirstNonEmptyMap is FirstNonEmpty for maps
func FirstNonEmptyMap(values ...map[string]any) map[string]any {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
