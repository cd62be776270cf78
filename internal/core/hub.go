package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub keeps the live sessions of the process, hydrating each from persistence the
// first time it is used. Idle sessions are dropped by Sweep and hydrated again on
// next use; every mutation is already persisted, so nothing is lost.
type Hub struct {
	deps SessionDeps
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	lastUsed map[string]time.Time
	closed   bool
}

// NewHub creates a hub whose sessions share deps.
func NewHub(deps SessionDeps) *Hub {
	deps = deps.withDefaults()
	return &Hub{
		deps:     deps,
		log:      deps.Logger.With().Str("component", "hub").Logger(),
		sessions: make(map[string]*Session),
		lastUsed: make(map[string]time.Time),
	}
}

// Session returns the live session with id, loading its history on first use.
func (h *Hub) Session(ctx context.Context, id string) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrSessionClosed
	}
	if s, ok := h.sessions[id]; ok {
		h.lastUsed[id] = h.deps.Now()
		return s, nil
	}

	var initial []Message
	if h.deps.Persister != nil {
		msgs, err := h.deps.Persister.LoadMessages(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("hydrate session %s: %w", id, err)
		}
		initial = msgs
	}

	s := newSession(id, initial, h.deps)
	h.sessions[id] = s
	h.lastUsed[id] = h.deps.Now()
	h.log.Debug().Str("session_id", id).Int("messages", len(initial)).Msg("session hydrated")
	return s, nil
}

// Subscribe attaches a new client to a session. The client first receives the
// session history, then every later event.
func (h *Hub) Subscribe(ctx context.Context, sessionID, clientID string) (*Client, error) {
	s, err := h.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c := NewClient(clientID)
	if !s.subscribe(c) {
		return nil, ErrSessionClosed
	}
	return c, nil
}

// Unsubscribe detaches c and closes its event channel.
func (h *Hub) Unsubscribe(sessionID string, c *Client) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if ok {
		s.unsubscribe(c)
	}
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run sweeps idle sessions until ctx is done. It does not close the hub; the owner
// calls Close once in-flight requests have drained.
func (h *Hub) Run(ctx context.Context) {
	interval := h.deps.SessionIdle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := h.Sweep(h.deps.Now()); n > 0 {
				h.log.Debug().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

// Sweep closes and forgets sessions unused for SessionIdle that have no
// subscribers and no pending provider call. It returns how many were evicted.
func (h *Hub) Sweep(now time.Time) int {
	h.mu.Lock()
	var evicted []*Session
	for id, s := range h.sessions {
		if now.Sub(h.lastUsed[id]) < h.deps.SessionIdle || !s.idle() {
			continue
		}
		delete(h.sessions, id)
		delete(h.lastUsed, id)
		evicted = append(evicted, s)
	}
	h.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}

// Close tears down every session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.lastUsed = make(map[string]time.Time)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	h.log.Info().Int("sessions", len(sessions)).Msg("hub stopped")
}
