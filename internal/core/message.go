package core

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderSystem Sender = "system"
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	switch s {
	case SenderSystem, SenderUser, SenderBot:
		return true
	default:
		return false
	}
}

// TimestampLayout is how message times are written on disk and on the wire:
// ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// AnonymousUserID is used for reactions when the session carries no user identity.
const AnonymousUserID = "anonymous"

// Reaction is a single emoji left on a message by one identity.
type Reaction struct {
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is the domain model for a chat message.
// At most one of ImageURL and FileURL is set.
type Message struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Sender    Sender     `json:"sender"`
	Timestamp time.Time  `json:"timestamp"`
	Read      *bool      `json:"read,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	FileURL   string     `json:"fileUrl,omitempty"`
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Read != nil {
		read := *m.Read
		out.Read = &read
	}
	if m.Reactions != nil {
		out.Reactions = append([]Reaction(nil), m.Reactions...)
	}
	return out
}
