package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/persist"
	"github.com/vovakirdan/relaychat/internal/proto"
)

func toProtoMessage(msg core.Message) proto.Message {
	out := proto.Message{
		ID:        msg.ID,
		Text:      msg.Text,
		Sender:    string(msg.Sender),
		Timestamp: msg.Timestamp.UTC().Format(core.TimestampLayout),
		Read:      msg.Read,
		Reactions: make([]proto.Reaction, 0, len(msg.Reactions)),
		ImageURL:  msg.ImageURL,
		FileURL:   msg.FileURL,
	}
	for _, r := range msg.Reactions {
		pr := proto.Reaction{Emoji: r.Emoji, UserID: r.UserID}
		if !r.Timestamp.IsZero() {
			pr.Timestamp = r.Timestamp.UTC().Format(core.TimestampLayout)
		}
		out.Reactions = append(out.Reactions, pr)
	}
	return out
}

func toProtoMessages(msgs []core.Message) []proto.Message {
	out := make([]proto.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toProtoMessage(msg))
	}
	return out
}

func toProtoNotice(n *core.Notice) *proto.Notice {
	if n == nil {
		return nil
	}
	return &proto.Notice{
		Code:        n.Code,
		Title:       n.Title,
		Description: n.Description,
		Variant:     n.Variant,
	}
}

// applyInbound handles one client frame. It returns a reply to write back, if any.
func applyInbound(session *core.Session, inbound proto.Inbound) (*proto.Outbound, error) {
	switch inbound.Type {
	case proto.InboundTypeTyping:
		data := proto.TypingData{Active: true}
		if len(inbound.Data) > 0 {
			if err := json.Unmarshal(inbound.Data, &data); err != nil {
				return nil, err
			}
		}
		session.Keystroke(data.Active)
		return nil, nil
	case proto.InboundTypePing:
		return &proto.Outbound{Type: proto.OutboundTypePong}, nil
	default:
		return &proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: "invalid_message", Msg: "unknown message type"},
		}, nil
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  toProtoMessage(event.Message),
		}
	case core.EventReaction:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReaction,
			Data:  toProtoMessage(event.Message),
		}
	case core.EventBotTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventBotTyping,
			Data:  proto.IndicatorData{Active: event.Active},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data:  proto.IndicatorData{Active: event.Active},
		}
	case core.EventNotice:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNotice,
			Data:  toProtoNotice(event.Notice),
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data: proto.HistoryData{
				SessionID: event.SessionID,
				Messages:  toProtoMessages(event.Messages),
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

// statusFor maps a domain error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrSessionClosed):
		return http.StatusServiceUnavailable, ""
	case errors.Is(err, persist.ErrInvalidTheme):
		return http.StatusBadRequest, core.ErrCodeInvalidTheme
	}

	code := core.ErrorCode(err)
	switch code {
	case core.ErrCodeBadRequest, core.ErrCodeEmptyMessage:
		return http.StatusBadRequest, code
	case core.ErrCodeMessageNotFound:
		return http.StatusNotFound, code
	case core.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge, code
	case core.ErrCodeInvalidFileType:
		return http.StatusUnsupportedMediaType, code
	case core.ErrCodeUploadFailed:
		return http.StatusBadGateway, code
	case core.ErrCodeUnauthorized:
		return http.StatusUnauthorized, code
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests, code
	default:
		return http.StatusInternalServerError, code
	}
}
