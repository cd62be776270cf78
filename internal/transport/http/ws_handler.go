package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/relaychat/internal/auth"
	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to a session's event stream.
// It is a plain http.Handler because the upgrade hijacks the connection.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authService, log: logger}
}

// ServeHTTP authenticates the session token, then runs one WebSocket connection.
// GET /ws
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, ok := requestToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header", Code: core.ErrCodeUnauthorized})
		return
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("invalid ws token")
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: core.ErrCodeUnauthorized})
		return
	}

	sessionID := claims.SessionID
	session, err := h.hub.Session(r.Context(), sessionID)
	if err != nil {
		status, code := statusFor(err)
		writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client, err := h.hub.Subscribe(ctx, sessionID, uuid.NewString())
	if err != nil {
		conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	defer h.hub.Unsubscribe(sessionID, client)

	log := h.log.With().Str("session_id", sessionID).Str("client_id", client.ID).Logger()
	log.Debug().Msg("ws client connected")

	errCh := make(chan error, 2)
	go func() {
		errCh <- readLoop(ctx, conn, session, &log)
	}()
	go func() {
		errCh <- writeLoop(ctx, conn, client, &log)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, log *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		reply, err := applyInbound(session, inbound)
		if err != nil {
			log.Warn().Err(err).Msg("failed to map inbound")
			reply = &proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed frame"},
			}
		}
		if reply != nil {
			if err := wsjson.Write(ctx, conn, reply); err != nil {
				return err
			}
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, log *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				// session torn down
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				log.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
