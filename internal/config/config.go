package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all mediachat configuration.
type Config struct {
	// Chat client
	Client ClientConfig `yaml:"client"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Reference assistant service (mediachat serve)
	Server ServerConfig `yaml:"server"`
}

// ClientConfig configures the chat front-end.
type ClientConfig struct {
	Endpoint string `yaml:"endpoint"` // base URL, /api/chat is appended
	Locale   string `yaml:"locale"`   // es, en
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme string `yaml:"theme"` // auto, light, dark
}

// ServerConfig configures the reference assistant service.
type ServerConfig struct {
	Addr         string          `yaml:"addr"`
	DatabasePath string          `yaml:"database_path"`
	SeedDemo     bool            `yaml:"seed_demo"`
	LLM          LLMConfig       `yaml:"llm"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// LLMConfig configures the assistant model behind the service.
type LLMConfig struct {
	Provider     string `yaml:"provider"` // echo, openai, gemini
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	SystemPrompt string `yaml:"system_prompt"`
}

// RateLimitConfig bounds requests to /api/chat.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			Endpoint: "http://localhost:8080",
			Locale:   "es",
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			DebugMode: false,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			DatabasePath: filepath.Join(DefaultDir(), "catalog.db"),
			SeedDemo:     true,
			LLM: LLMConfig{
				Provider: "echo",
				SystemPrompt: "Eres un asistente que responde preguntas sobre un archivo multimedia " +
					"(imágenes, audios, videos y documentos). Responde de forma breve y en el idioma del usuario.",
			},
			RateLimit: RateLimitConfig{
				PerSecond: 5,
				Burst:     10,
			},
		},
	}
}

// DefaultDir returns ~/.mediachat, or .mediachat when the home directory is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mediachat"
	}
	return filepath.Join(home, ".mediachat")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Defaults, still subject to the environment
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MEDIACHAT_ENDPOINT"); v != "" {
		c.Client.Endpoint = v
	}
	if v := os.Getenv("MEDIACHAT_LOCALE"); v != "" {
		c.Client.Locale = v
	}
	if v := os.Getenv("MEDIACHAT_DB"); v != "" {
		c.Server.DatabasePath = v
	}
	if v := os.Getenv("MEDIACHAT_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}

	// A provider key in the environment picks the provider, later ones win.
	// The key itself is read by ResolveProvider once flags are applied.
	if os.Getenv(ProviderKeyEnv["openai"]) != "" {
		c.Server.LLM.Provider = "openai"
	}
	if os.Getenv(ProviderKeyEnv["gemini"]) != "" {
		c.Server.LLM.Provider = "gemini"
	}
}

// ProviderKeyEnv maps each hosted provider to the variable holding its API key.
var ProviderKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// ResolveProvider finalizes the LLM settings after every override has
// chosen the provider. Only the chosen provider's own key variable can
// replace the configured key, and a model named for the other provider is
// cleared so the assistant falls back to its default.
func (l *LLMConfig) ResolveProvider() {
	if env, ok := ProviderKeyEnv[l.Provider]; ok {
		if key := os.Getenv(env); key != "" {
			l.APIKey = key
		}
	}

	switch l.Provider {
	case "gemini":
		if strings.HasPrefix(l.Model, "gpt-") {
			l.Model = ""
		}
	case "openai":
		if strings.HasPrefix(l.Model, "gemini-") {
			l.Model = ""
		}
	}
}

// ValidProviders lists all supported assistant providers.
var ValidProviders = []string{"echo", "openai", "gemini"}

// Validate validates the client configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.Endpoint) == "" {
		return fmt.Errorf("client endpoint not configured (set client.endpoint or MEDIACHAT_ENDPOINT)")
	}
	if !strings.HasPrefix(c.Client.Endpoint, "http://") && !strings.HasPrefix(c.Client.Endpoint, "https://") {
		return fmt.Errorf("invalid client endpoint %q: must start with http:// or https://", c.Client.Endpoint)
	}
	switch c.UI.Theme {
	case "", "auto", "light", "dark":
	default:
		return fmt.Errorf("invalid ui theme: %s (valid: auto, light, dark)", c.UI.Theme)
	}
	return nil
}

// ValidateServer validates the settings used by mediachat serve.
func (c *Config) ValidateServer() error {
	validProvider := false
	for _, p := range ValidProviders {
		if c.Server.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.Server.LLM.Provider, ValidProviders)
	}
	if c.Server.LLM.Provider != "echo" && c.Server.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured for provider %s (set OPENAI_API_KEY or GEMINI_API_KEY)", c.Server.LLM.Provider)
	}
	if c.Server.RateLimit.PerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Server.DatabasePath == "" {
		return fmt.Errorf("server database_path is required")
	}
	return nil
}
