package core

// EventKind is a notification the core emits to session subscribers.
type EventKind int

const (
	// EventHistory delivers the full message list to a subscriber upon connecting.
	EventHistory EventKind = iota
	// EventMessage notifies subscribers about an appended message.
	EventMessage
	// EventReaction notifies subscribers that a message's reactions changed.
	EventReaction
	// EventBotTyping reports the bot composing indicator.
	EventBotTyping
	// EventUserTyping reports the user typing indicator.
	EventUserTyping
	// EventNotice carries a transient, user-visible notice.
	EventNotice
)

// Notice is a transient message for the user, such as a failed upload or provider call.
type Notice struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// NoticeVariantDestructive marks failure notices.
const NoticeVariantDestructive = "destructive"

// Event is sent to subscribers to describe what happened in a session.
type Event struct {
	Kind      EventKind
	SessionID string
	Message   Message
	Messages  []Message // for EventHistory
	Active    bool      // for typing events
	Notice    *Notice
}
