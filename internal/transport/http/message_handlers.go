package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
	"github.com/vovakirdan/relaychat/internal/upload"
)

// maxSendBody bounds a send request; it leaves room for an oversized file so the
// uploader can reject it with a size reason.
const maxSendBody = 2*upload.MaxFileSize + 1<<20

// SendMessageRequest is the JSON form of a send.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessageResponse reports the appended user message and, for slash commands,
// the bot reply or the notice explaining why there is none.
type SendMessageResponse struct {
	Message proto.Message  `json:"message"`
	Reply   *proto.Message `json:"reply,omitempty"`
	Notice  *proto.Notice  `json:"notice,omitempty"`
}

// ReactionRequest is the body of a reaction upsert.
type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ShareResponse carries the text a client puts on the clipboard or share sheet.
type ShareResponse struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// ListMessages returns the session's messages in order.
// GET /api/messages
func (h *APIHandlers) ListMessages(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": toProtoMessages(s.Messages())})
}

// SendMessage sends text and/or an attachment.
// POST /api/messages
func (h *APIHandlers) SendMessage(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSendBody)

	out, err := h.bindOutgoing(c)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid send request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	if out.File != nil {
		if closer, ok := out.File.Content.(io.Closer); ok {
			defer closer.Close()
		}
	}

	result, err := s.Send(c.Request.Context(), out)
	if err != nil {
		status, code := statusFor(err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code, Notice: toProtoNotice(result.Notice)})
		return
	}

	resp := SendMessageResponse{
		Message: toProtoMessage(result.User),
		Notice:  toProtoNotice(result.Notice),
	}
	if result.Bot != nil {
		reply := toProtoMessage(*result.Bot)
		resp.Reply = &reply
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *APIHandlers) bindOutgoing(c *gin.Context) (core.Outgoing, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return core.Outgoing{}, err
		}
		return core.Outgoing{Text: req.Text}, nil
	}

	out := core.Outgoing{Text: c.PostForm("text")}
	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return out, nil
	}
	if err != nil {
		return core.Outgoing{}, err
	}

	f, err := header.Open()
	if err != nil {
		return core.Outgoing{}, err
	}
	out.File = &upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     f,
	}
	return out, nil
}

// CancelPending aborts the outstanding provider call of the session.
// DELETE /api/messages/pending
func (h *APIHandlers) CancelPending(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	n := s.CancelPending()
	h.log.Info().Str("session_id", s.ID()).Int("cancelled", n).Msg("pending provider calls cancelled")
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

// React adds or replaces the caller's reaction on a message.
// POST /api/messages/:id/reactions
func (h *APIHandlers) React(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "emoji is required", Code: core.ErrCodeBadRequest})
		return
	}

	msg, err := s.React(c.Param("id"), req.Emoji, c.GetString(ContextKeyUserID))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProtoMessage(msg))
}

// Share returns the shareable text of a message.
// GET /api/messages/:id/share
func (h *APIHandlers) Share(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}

	msg, err := s.Message(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	url := msg.ImageURL
	if url == "" {
		url = msg.FileURL
	}
	c.JSON(http.StatusOK, ShareResponse{Text: msg.Text, URL: url})
}
