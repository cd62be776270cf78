package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// ThemeRequest is the body of a theme change.
type ThemeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// BookmarkResponse reports whether a bookmark was added.
type BookmarkResponse struct {
	Bookmarked bool   `json:"bookmarked"`
	Message    string `json:"message"`
}

// TypingRequest reports composer activity; Active defaults to true.
type TypingRequest struct {
	Active *bool `json:"active"`
}

// Bookmark saves a copy of a message.
// POST /api/messages/:id/bookmark
func (h *APIHandlers) Bookmark(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	msg, err := s.Message(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	added, err := h.prefs.AddBookmark(c.Request.Context(), s.ID(), msg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !added {
		c.JSON(http.StatusOK, BookmarkResponse{Bookmarked: false, Message: "Already bookmarked"})
		return
	}
	c.JSON(http.StatusCreated, BookmarkResponse{Bookmarked: true, Message: "Message bookmarked"})
}

// ListBookmarks returns bookmarked messages.
// GET /api/bookmarks
func (h *APIHandlers) ListBookmarks(c *gin.Context) {
	sessionID := c.GetString(ContextKeySessionID)
	bookmarks, err := h.prefs.ListBookmarks(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarks": toProtoMessages(bookmarks)})
}

// GetTheme returns the session's theme.
// GET /api/theme
func (h *APIHandlers) GetTheme(c *gin.Context) {
	theme, err := h.prefs.LoadTheme(c.Request.Context(), c.GetString(ContextKeySessionID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// SetTheme stores the session's theme.
// PUT /api/theme
func (h *APIHandlers) SetTheme(c *gin.Context) {
	var req ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "theme is required", Code: core.ErrCodeBadRequest})
		return
	}

	theme := persist.Theme(req.Theme)
	if err := h.prefs.SaveTheme(c.Request.Context(), c.GetString(ContextKeySessionID), theme); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

// Typing records a keystroke in the composer.
// POST /api/typing
func (h *APIHandlers) Typing(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req TypingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
			return
		}
	}
	active := req.Active == nil || *req.Active
	s.Keystroke(active)
	c.JSON(http.StatusOK, proto.IndicatorData{Active: active})
}
