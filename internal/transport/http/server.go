package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/functions"
	"github.com/vovakirdan/relaychat/internal/metrics"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/upload"
)

// Preferences is the per-session state kept next to the message list.
type Preferences interface {
	LoadTheme(ctx context.Context, namespace string) (persist.Theme, error)
	SaveTheme(ctx context.Context, namespace string, theme persist.Theme) error
	AddBookmark(ctx context.Context, namespace string, msg core.Message) (bool, error)
	ListBookmarks(ctx context.Context, namespace string) ([]core.Message, error)
}

// Bucket is the public object storage served under /storage/v1/object/public.
type Bucket interface {
	Name() string
	FileSystem() stdhttp.FileSystem
}

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Hub         *core.Hub
	Auth        *auth.Service
	Preferences Preferences
	Bucket      Bucket
	Functions   *functions.Handler
	Metrics     *metrics.Metrics
}

// NewServer builds an HTTP server with all routes.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the WebSocket endpoint on a plain mux, since the upgrade needs
// the raw connection, and hands every other path to the gin engine.
func NewHandler(deps Deps, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Auth, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))
	return mux
}

// NewRouter wires the gin engine for the REST API, functions and bucket.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := NewAPIHandlers(deps.Hub, deps.Auth, deps.Preferences, logger)
	limiter := newRateLimiter(cfg.Chat.SendRatePerMinute)
	requireSession := AuthMiddleware(deps.Auth, logger)

	apiGroup := router.Group("/api")
	apiGroup.POST("/sessions", api.CreateSession)

	authed := apiGroup.Group("", requireSession)
	authed.GET("/messages", api.ListMessages)
	authed.POST("/messages", RateLimitMiddleware(limiter), api.SendMessage)
	authed.DELETE("/messages/pending", api.CancelPending)
	authed.POST("/messages/:id/reactions", api.React)
	authed.GET("/messages/:id/share", api.Share)
	authed.POST("/messages/:id/bookmark", api.Bookmark)
	authed.GET("/bookmarks", api.ListBookmarks)
	authed.GET("/theme", api.GetTheme)
	authed.PUT("/theme", api.SetTheme)
	authed.POST("/typing", api.Typing)

	if deps.Functions != nil {
		deps.Functions.Register(router.Group("/functions/v1"))
	}
	if deps.Bucket != nil {
		router.GET("/storage/v1/object/public/:bucket/*name", objectHandler(deps.Bucket))
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

func objectHandler(bucket Bucket) gin.HandlerFunc {
	fs := bucket.FileSystem()
	return func(c *gin.Context) {
		name := c.Param("name")
		if c.Param("bucket") != bucket.Name() || name == "" || name == "/" || name[len(name)-1] == '/' {
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "object not found"})
			return
		}
		// only allow-listed types are served, never sniffed
		contentType, ok := upload.TypeByExtension(name)
		if !ok {
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "object not found"})
			return
		}
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Type", contentType)
		c.FileFromFS(name, fs)
	}
}
