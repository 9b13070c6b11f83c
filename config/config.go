package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigDir  = ".config/actorglue"
	defaultConfigFile = "config.yaml"

	// DefaultGmailQuery is used when no query is supplied anywhere
	DefaultGmailQuery = `subject:"Rate Confirmation for order #" has:attachment from:@scotlynn.com`
)

// DefaultMimeTypes lists the attachment types the Gmail processor extracts by default
var DefaultMimeTypes = []string{"application/pdf"}

// MCPServerConfig holds configuration for the remote tool-serving process
type MCPServerConfig struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command"`
	Arguments []string          `yaml:"arguments"`
	Env       map[string]string `yaml:"env,omitempty"`
}

// Argv returns the executable and its arguments. A command written as a
// single string ("npx -y @apify/actors-mcp-server") is split shell-style.
func (s MCPServerConfig) Argv() (string, []string, error) {
	if len(s.Arguments) > 0 {
		return s.Command, s.Arguments, nil
	}
	parts, err := shlex.Split(s.Command)
	if err != nil {
		return "", nil, fmt.Errorf("parse mcp_server.command: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errors.New("mcp_server.command is empty")
	}
	return parts[0], parts[1:], nil
}

// LLMConfig selects and tunes the model endpoint
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Endpoint     string        `yaml:"endpoint,omitempty"`
	APIKey       string        `yaml:"api_key,omitempty"`
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	MaxTokens    int           `yaml:"max_tokens"`
	MaxTurns     int           `yaml:"max_turns"`
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around model calls
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// GmailConfig holds Gmail processor settings
type GmailConfig struct {
	CredentialsFile   string   `yaml:"credentials_file"`
	ClientSecretFile  string   `yaml:"client_secret_file"`
	Query             string   `yaml:"query,omitempty"`
	MimeTypes         []string `yaml:"mime_types,omitempty"`
	MaxResults        int      `yaml:"max_results"`
	UserID            string   `yaml:"user_id"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

// RetellConfig holds telephony settings
type RetellConfig struct {
	APIKey     string `yaml:"api_key,omitempty"`
	ConfigFile string `yaml:"config_file"`
	Endpoint   string `yaml:"endpoint"`
	FromNumber string `yaml:"from_number,omitempty"`
	AgentID    string `yaml:"agent_id,omitempty"`
}

// ApifyConfig holds actor deployment settings
type ApifyConfig struct {
	Token         string        `yaml:"token,omitempty"`
	CLI           string        `yaml:"cli"`
	APIEndpoint   string        `yaml:"api_endpoint"`
	WorkDir       string        `yaml:"work_dir"`
	Template      string        `yaml:"template"`
	DeployTimeout time.Duration `yaml:"deploy_timeout"`
}

// LoggingConfig configures the slog logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Config holds the complete configuration shared by every entry point
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	MCPServer MCPServerConfig `yaml:"mcp_server"`

	Tools struct {
		CallTimeout   time.Duration `yaml:"call_timeout"`
		SlowCallAfter time.Duration `yaml:"slow_call_after"`
	} `yaml:"tools"`

	Gmail  GmailConfig  `yaml:"gmail"`
	Retell RetellConfig `yaml:"retell"`
	Apify  ApifyConfig  `yaml:"apify"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`

	Server struct {
		Enable bool   `yaml:"enable"`
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
	} `yaml:"server"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	// LLM defaults
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-sonnet-4-5"
	cfg.LLM.MaxTokens = 2048
	cfg.LLM.MaxTurns = 15
	cfg.LLM.Breaker = BreakerConfig{MaxFailures: 5, Timeout: 30 * time.Second, Interval: time.Minute}

	cfg.MCPServer = MCPServerConfig{
		Name:      "apify",
		Command:   "npx",
		Arguments: []string{"-y", "@apify/actors-mcp-server"},
	}

	cfg.Tools.CallTimeout = 5 * time.Minute
	cfg.Tools.SlowCallAfter = time.Minute

	cfg.Gmail = GmailConfig{
		CredentialsFile:   "gmail_credentials.json",
		ClientSecretFile:  "client_secret.json",
		MaxResults:        100,
		UserID:            "me",
		RequestsPerSecond: 10,
	}

	cfg.Retell = RetellConfig{
		ConfigFile: "retell_config.json",
		Endpoint:   "https://api.retellai.com",
	}

	cfg.Apify = ApifyConfig{
		CLI:           "apify",
		APIEndpoint:   "https://api.apify.com",
		WorkDir:       filepath.Join(os.TempDir(), "actorglue-actors"),
		Template:      "python-start",
		DeployTimeout: 10 * time.Minute,
	}

	cfg.Database.Path = "actorglue.db"

	cfg.Logging = LoggingConfig{Level: "info", Format: "text", Output: "stderr"}
	cfg.Tracing = TracingConfig{Enabled: false, Exporter: "noop"}

	// Server defaults - set to false by default
	cfg.Server.Enable = false
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080

	return cfg
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, defaultConfigDir)
	return filepath.Join(configDir, defaultConfigFile), nil
}

// LoadOrCreate loads the config file if it exists, or creates a default one if it doesn't
func LoadOrCreate() (*Config, bool, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, false, err
	}

	configDir := filepath.Dir(configPath)
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, false, fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.SaveTo(configPath); err != nil {
			return nil, false, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, true, nil
	}

	cfg, err := Load(configPath)
	return cfg, false, err
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with default config to ensure all fields have values
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveTo writes the configuration to path
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// may carry api keys
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that required fields are present and valid
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", c.LLM.Provider)
	}
	if c.LLM.MaxTurns <= 0 {
		return fmt.Errorf("llm.max_turns must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}

	if c.MCPServer.Command == "" {
		return fmt.Errorf("mcp_server.command is required")
	}

	if c.Tools.CallTimeout < 0 {
		return fmt.Errorf("tools.call_timeout must not be negative")
	}
	if c.Tools.SlowCallAfter <= 0 {
		return fmt.Errorf("tools.slow_call_after must be positive")
	}

	if c.Gmail.MaxResults <= 0 {
		return fmt.Errorf("gmail.max_results must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}
