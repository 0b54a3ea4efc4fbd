package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration, shared by the client
// and the reference server
type Config struct {
	Client   ClientConfig   `mapstructure:"client"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Agents   []AgentConfig  `mapstructure:"agents"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ClientConfig holds settings for the API client
type ClientConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	CORSEnabled bool   `mapstructure:"cors_enabled"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LLMConfig holds the automated-reply model configuration. An empty
// BaseURL disables the model; the server then answers with a canned reply.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	// ContextBudget bounds how many history tokens are sent per reply
	ContextBudget int `mapstructure:"context_budget"`
}

// AgentConfig describes one member of the assistant roster
type AgentConfig struct {
	ID             string `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	Avatar         string `mapstructure:"avatar"`
	Role           string `mapstructure:"role"`
	Responsibility string `mapstructure:"responsibility"`
	Default        bool   `mapstructure:"default"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			CORSEnabled: true,
		},
		Database: DatabaseConfig{
			Path: "./data/deskchat.db",
		},
		LLM: LLMConfig{
			Model:         "gpt-4o-mini",
			MaxTokens:     1024,
			Temperature:   0.7,
			ContextBudget: 6000,
		},
		Agents: []AgentConfig{
			{ID: "alex", Name: "Alex", Avatar: "/avatars/alex.png", Role: "assistant", Responsibility: "coordination and general questions", Default: true},
			{ID: "emma", Name: "Emma", Avatar: "/avatars/emma.png", Role: "assistant", Responsibility: "requirements and user stories"},
			{ID: "sarah", Name: "Sarah", Avatar: "/avatars/sarah.png", Role: "assistant", Responsibility: "process and workflow analysis"},
			{ID: "david", Name: "David", Avatar: "/avatars/david.png", Role: "assistant", Responsibility: "data and reporting"},
			{ID: "paul", Name: "Paul", Avatar: "/avatars/paul.png", Role: "assistant", Responsibility: "technical feasibility"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from files and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DESKCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine, defaults + env vars apply
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Client.BaseURL == "" {
		return fmt.Errorf("client base URL cannot be empty")
	}

	if c.Client.Timeout <= 0 {
		return fmt.Errorf("client timeout must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	defaults := 0
	for _, agent := range c.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent id cannot be empty")
		}
		if agent.Default {
			defaults++
		}
	}
	if len(c.Agents) > 0 && defaults == 0 {
		return fmt.Errorf("one agent must be marked as default")
	}

	return nil
}
