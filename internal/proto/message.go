// Package proto defines the JSON shapes exchanged with the chat UI over HTTP and WebSocket.
package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeTyping = "typing"
	InboundTypePing   = "ping"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
	OutboundTypePong  = "pong"

	EventMessage    = "message"
	EventReaction   = "reaction"
	EventBotTyping  = "bot_typing"
	EventUserTyping = "user_typing"
	EventNotice     = "notice"
	EventHistory    = "history"
)

// TypingData reports keystroke activity in the composer.
type TypingData struct {
	Active bool `json:"active"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Reaction is the wire form of a reaction.
type Reaction struct {
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Message is the wire form of a chat message. Timestamps are ISO-8601 with milliseconds.
type Message struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Sender    string     `json:"sender"`
	Timestamp string     `json:"timestamp"`
	Read      *bool      `json:"read,omitempty"`
	Reactions []Reaction `json:"reactions"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	FileURL   string     `json:"fileUrl,omitempty"`
}

// HistoryData is the payload of the history event, sent once when a client subscribes.
type HistoryData struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

// IndicatorData carries a typing or composing state.
type IndicatorData struct {
	Active bool `json:"active"`
}

// Notice is a transient, user-visible notice.
type Notice struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
