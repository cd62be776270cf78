package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/functions"
	"github.com/vovakirdan/relaychat/internal/log"
	"github.com/vovakirdan/relaychat/internal/metrics"
	"github.com/vovakirdan/relaychat/internal/objectstore"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/provider"
	"github.com/vovakirdan/relaychat/internal/store"
	"github.com/vovakirdan/relaychat/internal/store/pebble"
	"github.com/vovakirdan/relaychat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/relaychat/internal/transport/http"
	"github.com/vovakirdan/relaychat/internal/upload"
)

const (
	DriverSQLite = "sqlite"
	DriverPebble = "pebble"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Storage.Driver).Str("path", cfg.Storage.Path).Msg("storage initialized")

	storage := persist.New(st, cfg.Chat.WelcomeText, log.Component(logger, "persist"))

	bucket, err := objectstore.NewOSBucket(cfg.Uploads.Dir, cfg.Uploads.Bucket, cfg.Uploads.PublicBaseURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	fnKey := functionsKey(cfg)
	fn, err := newFunctions(ctx, cfg, fnKey, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m := metrics.New()
	hub := core.NewHub(core.SessionDeps{
		Persister:   storage,
		Uploader:    upload.New(bucket),
		Router:      newRouter(cfg, fnKey),
		Metrics:     m,
		Logger:      log.Component(logger, "core"),
		TypingIdle:  cfg.Chat.TypingIdle,
		SessionIdle: cfg.Chat.SessionIdle,
	})

	authService := auth.NewService(&auth.JWTConfig{
		Secret:       []byte(cfg.Auth.Secret),
		Issuer:       cfg.Auth.Issuer,
		Audience:     cfg.Auth.Audience,
		TTL:          cfg.Auth.TTL,
		ResumeWindow: cfg.Auth.ResumeWindow,
	})

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:         hub,
		Auth:        authService,
		Preferences: storage,
		Bucket:      bucket,
		Functions:   fn,
		Metrics:     m,
	}, *cfg, log.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// OpenStore opens the key-value backend selected by cfg.Driver.
func OpenStore(cfg config.StorageConfig) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		st, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	case DriverPebble:
		st, err := pebble.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// functionsKey is the shared secret between the provider adapters and the function
// endpoints. In-process functions without a configured key get a random one so the
// endpoints are never open to anonymous callers.
func functionsKey(cfg *config.Config) string {
	if cfg.Functions.Key != "" || cfg.Functions.BaseURL != "" {
		return cfg.Functions.Key
	}
	return uuid.NewString()
}

func newFunctions(ctx context.Context, cfg *config.Config, key string, logger *zerolog.Logger) (*functions.Handler, error) {
	gemini, err := functions.NewGeminiModel(ctx, functions.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		Temperature:     float32(cfg.Gemini.Temperature),
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
		TopP:            float32(cfg.Gemini.TopP),
		TopK:            float32(cfg.Gemini.TopK),
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	if cfg.Gemini.APIKey == "" {
		logger.Warn().Msg("gemini api key not set, chat-with-gemini will fail")
	}
	if cfg.Claude.APIKey == "" {
		logger.Warn().Msg("claude api key not set, chat-with-claude will fail")
	}

	claude := functions.NewClaudeModel(functions.ClaudeConfig{
		APIKey:    cfg.Claude.APIKey,
		BaseURL:   cfg.Claude.BaseURL,
		Model:     cfg.Claude.Model,
		MaxTokens: cfg.Claude.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	}, nil)

	return functions.NewHandler(log.Component(logger, "functions"), key, map[string]functions.Model{
		functions.NameGemini: gemini,
		functions.NameClaude: claude,
	}), nil
}

// newRouter binds the slash commands in match order: gemini, ai, claude.
func newRouter(cfg *config.Config, fnKey string) *provider.Router {
	client := provider.NewHTTPClient(cfg.AI.Timeout)
	base := functionsBaseURL(cfg)

	return provider.NewRouter(
		provider.Route{
			Command:   provider.CommandGemini,
			Provider:  "Gemini",
			Completer: provider.NewFunctionAdapter(base, functions.NameGemini, fnKey, client),
		},
		provider.Route{
			Command:  provider.CommandAI,
			Provider: "AI",
			Completer: provider.NewGenericAdapter(provider.GenericConfig{
				Endpoint:     cfg.AI.Endpoint,
				Model:        cfg.AI.Model,
				SystemPrompt: cfg.AI.SystemPrompt,
				Temperature:  cfg.AI.Temperature,
				MaxTokens:    cfg.AI.MaxTokens,
			}, client),
		},
		provider.Route{
			Command:   provider.CommandClaude,
			Provider:  "Claude",
			Completer: provider.NewFunctionAdapter(base, functions.NameClaude, fnKey, client),
		},
	)
}

// functionsBaseURL falls back to the functions mounted on this server.
func functionsBaseURL(cfg *config.Config) string {
	if cfg.Functions.BaseURL != "" {
		return strings.TrimRight(cfg.Functions.BaseURL, "/")
	}

	host, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return "http://127.0.0.1:8080/functions/v1"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/functions/v1"
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup stops sessions before the store so final saves land.
func (a *App) cleanup() {
	a.hub.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
