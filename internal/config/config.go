package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Remote RemoteConfig `mapstructure:"remote"`
	Memory MemoryConfig `mapstructure:"memory"`
	Drafts DraftsConfig `mapstructure:"drafts"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LLMConfig holds the LLM configuration used by the bundled backend
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// RemoteConfig holds the game backend configuration. When BaseURL is empty
// the bundled LLM-backed transport is used instead.
type RemoteConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MemoryConfig holds the vector-memory MCP server configuration
type MemoryConfig struct {
	URL        string            `mapstructure:"url"`
	Type       string            `mapstructure:"type"` // "sse" or "streamable_http"
	Headers    map[string]string `mapstructure:"headers"`
	SearchTool string            `mapstructure:"search_tool"`
	DeleteTool string            `mapstructure:"delete_tool"`
}

// DraftsConfig holds the draft store configuration
type DraftsConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml, or from the file named by
// the CONFIG_PATH environment variable when set.
func Load() (*Config, error) {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("remote.timeout", 2*time.Minute)
	viper.SetDefault("memory.search_tool", "memory_search")
	viper.SetDefault("memory.delete_tool", "memory_delete")
	viper.SetDefault("drafts.db_path", "drafts.db")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
