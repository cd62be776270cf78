package core

import "sync"

// audience groups the clients subscribed to one session.
type audience struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func newAudience() *audience {
	return &audience{clients: make(map[*Client]struct{})}
}

// add inserts a client. Returns false if the audience is closed or already has it.
func (a *audience) add(c *Client) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if _, exists := a.clients[c]; exists {
		return false
	}
	a.clients[c] = struct{}{}
	return true
}

// remove deletes a client and closes its event channel. Returns true if removed.
func (a *audience) remove(c *Client) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.clients[c]; !exists {
		return false
	}
	delete(a.clients, c)
	close(c.Events)
	return true
}

// broadcast sends an event to all clients, dropping it for slow consumers.
func (a *audience) broadcast(event *Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for client := range a.clients {
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

// send delivers an event to a single client.
func (a *audience) send(c *Client, event *Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.clients[c]; !ok {
		return
	}
	select {
	case c.Events <- event:
	default:
	}
}

// close removes every client and rejects future subscriptions.
func (a *audience) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for client := range a.clients {
		close(client.Events)
	}
	a.clients = make(map[*Client]struct{})
	a.closed = true
}

func (a *audience) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clients)
}
