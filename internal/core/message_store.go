package core

import "sync"

// ChangeKind describes which mutation produced a Change.
type ChangeKind int

const (
	// ChangeAppend is emitted after a message was appended.
	ChangeAppend ChangeKind = iota
	// ChangeReaction is emitted after a reaction was inserted or replaced.
	ChangeReaction
)

// Change is handed to observers after every successful mutation.
type Change struct {
	Kind     ChangeKind
	Message  Message   // the appended or updated message
	Messages []Message // full snapshot after the mutation
}

// Observer is notified synchronously, in mutation order. It must not call back into the store.
type Observer func(Change)

// MessageStore is the ordered, append-only message list of one session.
type MessageStore struct {
	mu        sync.Mutex
	messages  []Message
	index     map[string]int
	observers []Observer
}

// NewMessageStore builds a store hydrated with initial (copied).
func NewMessageStore(initial []Message) *MessageStore {
	s := &MessageStore{
		messages: make([]Message, 0, len(initial)+16),
		index:    make(map[string]int, len(initial)),
	}
	for _, msg := range initial {
		s.push(msg.Clone())
	}
	return s
}

// Observe registers an observer for future mutations.
func (s *MessageStore) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Append adds msg to the end of the list. Ids are not deduplicated.
func (s *MessageStore) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg = msg.Clone()
	s.push(msg)
	s.notify(ChangeAppend, msg)
}

// UpsertReaction applies r to the message with messageID. It reports false and leaves
// the store untouched when no such message exists.
func (s *MessageStore) UpsertReaction(messageID string, r Reaction) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[messageID]
	if !ok {
		return Message{}, false
	}

	s.messages[i].Reactions = upsertReaction(s.messages[i].Reactions, r)
	updated := s.messages[i].Clone()
	s.notify(ChangeReaction, updated)
	return updated, true
}

// Get returns a copy of the message with id.
func (s *MessageStore) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Snapshot returns a deep copy of all messages in order.
func (s *MessageStore) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *MessageStore) push(msg Message) {
	if _, exists := s.index[msg.ID]; !exists {
		s.index[msg.ID] = len(s.messages)
	}
	s.messages = append(s.messages, msg)
}

func (s *MessageStore) snapshotLocked() []Message {
	out := make([]Message, len(s.messages))
	for i, msg := range s.messages {
		out[i] = msg.Clone()
	}
	return out
}

func (s *MessageStore) notify(kind ChangeKind, msg Message) {
	if len(s.observers) == 0 {
		return
	}
	change := Change{Kind: kind, Message: msg, Messages: s.snapshotLocked()}
	for _, o := range s.observers {
		o(change)
	}
}
