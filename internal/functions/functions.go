// Package functions hosts the serverless chat functions that front the Gemini and
// Claude APIs. Each takes {"message"} and answers {"response"} or {"error"}.
package functions

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Function names as exposed under /functions/v1/.
const (
	NameGemini = "chat-with-gemini"
	NameClaude = "chat-with-claude"
)

const (
	allowOrigin  = "*"
	allowHeaders = "authorization, x-client-info, apikey, content-type"
)

// ErrMessageRequired is returned for requests without a message.
var ErrMessageRequired = errors.New("Message is required")

// Model produces one reply for one message.
type Model interface {
	Generate(ctx context.Context, message string) (string, error)
}

// Request is the body every function accepts.
type Request struct {
	Message string `json:"message"`
}

// Response is the body every function returns; exactly one field is set.
type Response struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler serves the registered functions.
type Handler struct {
	key    string
	models map[string]Model
	log    zerolog.Logger
}

// NewHandler creates a handler serving models keyed by function name. A non-empty
// key must be presented as a bearer token or in the apikey header.
func NewHandler(logger *zerolog.Logger, key string, models map[string]Model) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Handler{
		key:    key,
		models: make(map[string]Model, len(models)),
		log:    logger.With().Str("component", "functions").Logger(),
	}
	for name, m := range models {
		h.models[name] = m
	}
	return h
}

// Register mounts the function routes on rg.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.OPTIONS("/:name", h.Preflight)
	rg.POST("/:name", h.Invoke)
}

// Preflight answers CORS preflight requests.
func (h *Handler) Preflight(c *gin.Context) {
	setCORS(c)
	c.Status(http.StatusOK)
}

// Invoke runs the function named in the path.
func (h *Handler) Invoke(c *gin.Context) {
	setCORS(c)

	if !h.authorized(c.Request) {
		h.log.Warn().Str("remote", c.ClientIP()).Msg("function call without a valid key")
		c.JSON(http.StatusUnauthorized, Response{Error: "unauthorized"})
		return
	}

	name := c.Param("name")
	model, ok := h.models[name]
	if !ok {
		c.JSON(http.StatusNotFound, Response{Error: "function not found"})
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusInternalServerError, Response{Error: ErrMessageRequired.Error()})
		return
	}

	start := time.Now()
	reply, err := model.Generate(c.Request.Context(), req.Message)
	if err != nil {
		h.log.Error().Err(err).Str("function", name).Msg("function failed")
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}

	h.log.Debug().
		Str("function", name).
		Dur("latency", time.Since(start)).
		Int("response_len", len(reply)).
		Msg("function completed")
	c.JSON(http.StatusOK, Response{Response: reply})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.key == "" {
		return true
	}
	presented := r.Header.Get("apikey")
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		presented = bearer
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.key)) == 1
}

func setCORS(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", allowOrigin)
	c.Header("Access-Control-Allow-Headers", allowHeaders)
}
