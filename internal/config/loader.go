package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "RELAYCHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars (.env included) < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) && logger != nil {
		logger.Warn().Err(err).Msg("failed to load .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("RELAYCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	// Provider secrets are commonly exported under their vendor names.
	if cfg.Gemini.APIKey == "" {
		cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Claude.APIKey == "" {
		cfg.Claude.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return cfg, configPath, nil
}

// setDefaults registers every key so AutomaticEnv can override nested values on Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	defaults := map[string]any{
		"addr":                      cfg.Addr,
		"read_header_timeout":       cfg.ReadHeaderTimeout,
		"shutdown_timeout":          cfg.ShutdownTimeout,
		"log_level":                 cfg.LogLevel,
		"storage.driver":            cfg.Storage.Driver,
		"storage.path":              cfg.Storage.Path,
		"uploads.dir":               cfg.Uploads.Dir,
		"uploads.bucket":            cfg.Uploads.Bucket,
		"uploads.public_base_url":   cfg.Uploads.PublicBaseURL,
		"auth.secret":               cfg.Auth.Secret,
		"auth.issuer":               cfg.Auth.Issuer,
		"auth.audience":             cfg.Auth.Audience,
		"auth.ttl":                  cfg.Auth.TTL,
		"auth.resume_window":        cfg.Auth.ResumeWindow,
		"ai.endpoint":               cfg.AI.Endpoint,
		"ai.model":                  cfg.AI.Model,
		"ai.system_prompt":          cfg.AI.SystemPrompt,
		"ai.temperature":            cfg.AI.Temperature,
		"ai.max_tokens":             cfg.AI.MaxTokens,
		"ai.timeout":                cfg.AI.Timeout,
		"functions.base_url":        cfg.Functions.BaseURL,
		"functions.key":             cfg.Functions.Key,
		"gemini.api_key":            cfg.Gemini.APIKey,
		"gemini.model":              cfg.Gemini.Model,
		"gemini.temperature":        cfg.Gemini.Temperature,
		"gemini.max_output_tokens":  cfg.Gemini.MaxOutputTokens,
		"gemini.top_p":              cfg.Gemini.TopP,
		"gemini.top_k":              cfg.Gemini.TopK,
		"claude.api_key":            cfg.Claude.APIKey,
		"claude.base_url":           cfg.Claude.BaseURL,
		"claude.model":              cfg.Claude.Model,
		"claude.max_tokens":         cfg.Claude.MaxTokens,
		"chat.typing_idle":          cfg.Chat.TypingIdle,
		"chat.send_rate_per_minute": cfg.Chat.SendRatePerMinute,
		"chat.welcome_text":         cfg.Chat.WelcomeText,
		"chat.session_idle":         cfg.Chat.SessionIdle,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// secrets never land in the generated file
	cfg.Gemini.APIKey = ""
	cfg.Claude.APIKey = ""
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
