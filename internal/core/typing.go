package core

import (
	"sort"
	"time"
)

type typingEntry struct {
	userID   string
	username string
	since    time.Time
}

// StartTyping records that the connection is typing in the room and tells
// the other listeners. Repeated calls refresh the expiry.
func (h *Hub) StartTyping(roomID, connID, username string) error {
	if roomID == "" {
		return ErrBadRequest
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if username == "" {
		username = c.name
	}

	entries, ok := h.typing[roomID]
	if !ok {
		entries = make(map[string]typingEntry)
		h.typing[roomID] = entries
	}
	entries[c.ID] = typingEntry{userID: c.userID, username: username, since: h.now()}

	h.broadcastLocked(roomID, c, &Event{Kind: EventUserTyping, Room: roomID, User: username})
	h.flushEvictionsLocked()
	return nil
}

// StopTyping clears the connection's indicator in the room. The stop signal
// is only sent if an indicator existed.
func (h *Hub) StopTyping(roomID, connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	h.clearTypingLocked(roomID, c)
	h.flushEvictionsLocked()
	return nil
}

// TypingUsers lists the usernames currently typing in the room, oldest first.
// Expired entries are filtered out even if the sweep has not run yet.
func (h *Hub) TypingUsers(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-h.cfg.TypingExpiry)
	active := make([]typingEntry, 0, len(h.typing[roomID]))
	for _, e := range h.typing[roomID] {
		if e.since.After(cutoff) {
			active = append(active, e)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].since.Before(active[j].since) })

	names := make([]string, 0, len(active))
	for _, e := range active {
		names = append(names, e.username)
	}
	return names
}

// sweepTyping clears indicators older than the expiry window.
func (h *Hub) sweepTyping() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-h.cfg.TypingExpiry)
	for roomID, entries := range h.typing {
		for connID, e := range entries {
			if e.since.After(cutoff) {
				continue
			}
			delete(entries, connID)
			h.log.Debug().Str("room_id", roomID).Str("client_id", connID).Msg("typing expired")
			h.broadcastLocked(roomID, h.clients[connID], &Event{Kind: EventUserStopTyping, Room: roomID, User: e.username})
		}
		if len(entries) == 0 {
			delete(h.typing, roomID)
		}
	}
	h.flushEvictionsLocked()
}

func (h *Hub) clearTypingLocked(roomID string, c *Client) {
	entries, ok := h.typing[roomID]
	if !ok {
		return
	}
	e, ok := entries[c.ID]
	if !ok {
		return
	}
	delete(entries, c.ID)
	if len(entries) == 0 {
		delete(h.typing, roomID)
	}
	h.broadcastLocked(roomID, c, &Event{Kind: EventUserStopTyping, Room: roomID, User: e.username})
}

func (h *Hub) clearClientTypingLocked(c *Client) {
	for roomID, entries := range h.typing {
		if _, ok := entries[c.ID]; ok {
			h.clearTypingLocked(roomID, c)
		}
	}
}
