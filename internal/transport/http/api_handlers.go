package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	hub         *core.Hub
	authService *auth.Service
	prefs       Preferences
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, authService *auth.Service, prefs Preferences, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:         hub,
		authService: authService,
		prefs:       prefs,
		log:         logger,
	}
}

// CreateSessionRequest represents the session request body. Both fields are optional;
// Token, a previously issued token that may have expired, resumes its session.
type CreateSessionRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// SessionResponse represents the session response body.
type SessionResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error  string        `json:"error"`
	Code   string        `json:"code,omitempty"`
	Notice *proto.Notice `json:"notice,omitempty"`
}

// CreateSession starts or resumes a chat session and returns its token.
// POST /api/sessions
func (h *APIHandlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid session request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	var (
		token, sessionID string
		err              error
	)
	if req.Token != "" {
		token, sessionID, err = h.authService.Resume(req.Token, req.UserID)
	} else {
		token, sessionID, err = h.authService.NewSession(req.UserID)
	}
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrResumeRejected):
			h.log.Debug().Err(err).Msg("session resume rejected")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "token cannot resume a session", Code: core.ErrCodeUnauthorized})
			return
		case errors.Is(err, auth.ErrInvalidUserID):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: core.ErrCodeBadRequest})
			return
		}
		h.log.Error().Err(err).Msg("failed to create session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Debug().Str("session_id", sessionID).Bool("resumed", req.Token != "").Msg("session issued")
	c.JSON(http.StatusCreated, SessionResponse{Token: token, SessionID: sessionID})
}

// session resolves the live session of the authenticated request.
func (h *APIHandlers) session(c *gin.Context) (*core.Session, bool) {
	s, err := h.hub.Session(c.Request.Context(), c.GetString(ContextKeySessionID))
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	return s, true
}

func (h *APIHandlers) writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, ErrorResponse{Error: "internal server error", Code: code})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
