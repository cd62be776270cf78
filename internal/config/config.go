package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Uploads   UploadsConfig   `mapstructure:"uploads" yaml:"uploads"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	AI        AIConfig        `mapstructure:"ai" yaml:"ai"`
	Functions FunctionsConfig `mapstructure:"functions" yaml:"functions"`
	Gemini    GeminiConfig    `mapstructure:"gemini" yaml:"gemini"`
	Claude    ClaudeConfig    `mapstructure:"claude" yaml:"claude"`
	Chat      ChatConfig      `mapstructure:"chat" yaml:"chat"`
}

// StorageConfig selects the key-value backend that plays the role of browser local storage.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // sqlite or pebble
	Path   string `mapstructure:"path" yaml:"path"`
}

// UploadsConfig describes the public attachment bucket.
type UploadsConfig struct {
	Dir           string `mapstructure:"dir" yaml:"dir"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// ResumeWindow is how long after issue a token can be exchanged for a new one.
	ResumeWindow time.Duration `mapstructure:"resume_window" yaml:"resume_window"`
}

// AIConfig configures the generic OpenAI-compatible completion endpoint.
type AIConfig struct {
	Endpoint     string        `mapstructure:"endpoint" yaml:"endpoint"`
	Model        string        `mapstructure:"model" yaml:"model"`
	SystemPrompt string        `mapstructure:"system_prompt" yaml:"system_prompt"`
	Temperature  float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// FunctionsConfig points provider adapters at the serverless function host.
// An empty BaseURL means the functions mounted on this server.
type FunctionsConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Key     string `mapstructure:"key" yaml:"key"`
}

// GeminiConfig configures the chat-with-gemini function.
type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	Model           string  `mapstructure:"model" yaml:"model"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	TopP            float64 `mapstructure:"top_p" yaml:"top_p"`
	TopK            float64 `mapstructure:"top_k" yaml:"top_k"`
}

// ClaudeConfig configures the chat-with-claude function.
type ClaudeConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ChatConfig holds session behaviour knobs.
type ChatConfig struct {
	TypingIdle        time.Duration `mapstructure:"typing_idle" yaml:"typing_idle"`
	SendRatePerMinute int           `mapstructure:"send_rate_per_minute" yaml:"send_rate_per_minute"`
	WelcomeText       string        `mapstructure:"welcome_text" yaml:"welcome_text"`

	// SessionIdle evicts live sessions with no subscribers and no pending calls.
	SessionIdle time.Duration `mapstructure:"session_idle" yaml:"session_idle"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "relaychat.db",
		},
		Uploads: UploadsConfig{
			Dir:           "data/storage",
			Bucket:        "chat-files",
			PublicBaseURL: "http://localhost:8080",
		},
		Auth: AuthConfig{
			Secret:       "change-me",
			Issuer:       "relaychat",
			Audience:     "relaychat",
			TTL:          7 * 24 * time.Hour,
			ResumeWindow: 30 * 24 * time.Hour,
		},
		AI: AIConfig{
			Endpoint:     "https://api.puter.com/v2/openai/chat/completions",
			Model:        "gpt-3.5-turbo",
			SystemPrompt: "You are a helpful assistant in a chat application. Be concise and friendly.",
			Temperature:  0.7,
			MaxTokens:    500,
			Timeout:      60 * time.Second,
		},
		Gemini: GeminiConfig{
			Model:           "gemini-2.0-flash",
			Temperature:     0.7,
			MaxOutputTokens: 800,
			TopP:            0.95,
			TopK:            40,
		},
		Claude: ClaudeConfig{
			BaseURL:   "https://api.anthropic.com/v1",
			Model:     "claude-3-5-haiku-latest",
			MaxTokens: 1024,
		},
		Chat: ChatConfig{
			TypingIdle:        1500 * time.Millisecond,
			SendRatePerMinute: 60,
			SessionIdle:       30 * time.Minute,
			WelcomeText:       "Welcome to the chat! Try sending a message or asking the AI assistant a question.",
		},
	}
}

// UpdateFrom overwrites non-zero top-level values from other config into receiver.
// Used to apply CLI flag overrides on top of the loaded configuration.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
}
