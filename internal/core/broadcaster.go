package core

import (
	"context"
	"errors"
	"fmt"
)

// JoinResult describes how a join was resolved.
type JoinResult struct {
	Room RoomIdentity
	// Member is false when the user does not belong to a persisted room.
	// Such a connection still listens to the room but gets no history.
	Member bool
	// History is nil when no previous_messages event was sent.
	History []Message
}

// Join admits the connection to the room's live group and replays the
// recent history when the user is a member. userID defaults to the
// identified user of the connection.
func (h *Hub) Join(ctx context.Context, connID, roomID, userID string) (JoinResult, error) {
	if roomID == "" {
		return JoinResult{}, fmt.Errorf("%w: roomId is required", ErrBadRequest)
	}

	h.mu.Lock()
	c, ok := h.clients[connID]
	if ok && userID == "" {
		userID = c.userID
	}
	h.mu.Unlock()
	if !ok {
		return JoinResult{}, ErrUnknownConnection
	}

	room := h.resolver.Classify(roomID)
	result := JoinResult{Room: room}

	// Holding the room sequencer keeps sends from slipping between the
	// history read and the admission below.
	unlock := h.roomLocks.lock(roomID)
	defer unlock()

	var loadErr error
	switch room.Kind {
	case RoomVirtual:
		result.Member = true
		result.History = []Message{}
	default:
		result.Member = h.checkMembership(ctx, userID, roomID)
		if result.Member {
			result.History, loadErr = h.loadHistory(ctx, roomID)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return result, ErrUnknownConnection
	}
	h.addToRoomLocked(c, roomID)
	if result.History != nil {
		h.deliverLocked(c, &Event{
			Kind:     EventPreviousMessages,
			Room:     roomID,
			Messages: result.History,
		})
	}
	h.flushEvictionsLocked()

	h.log.Debug().
		Str("client_id", connID).
		Str("room_id", roomID).
		Str("user_id", userID).
		Stringer("kind", room.Kind).
		Bool("member", result.Member).
		Msg("joined room")

	return result, loadErr
}

func (h *Hub) checkMembership(ctx context.Context, userID, roomID string) bool {
	if h.store == nil || userID == "" {
		return false
	}
	member, err := h.store.IsMember(ctx, userID, roomID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("membership check failed")
		return false
	}
	return member
}

func (h *Hub) loadHistory(ctx context.Context, roomID string) ([]Message, error) {
	if h.store == nil {
		return []Message{}, nil
	}
	stored, err := h.store.ListRecentMessages(ctx, roomID, h.cfg.HistoryLimit)
	if err != nil {
		return nil, errors.Join(ErrPersistenceFailure, fmt.Errorf("load history: %w", err))
	}
	history := make([]Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, messageFromStore(m))
	}
	return history, nil
}

// Leave removes the connection from the room. Leaving a room the
// connection is not in is a no-op.
func (h *Hub) Leave(connID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	h.clearTypingLocked(roomID, c)
	if _, joined := c.rooms[roomID]; joined {
		h.removeFromRoomLocked(c, roomID)
		h.log.Debug().Str("client_id", connID).Str("room_id", roomID).Msg("left room")
	}
	h.flushEvictionsLocked()
	return nil
}

// Broadcast sends the event to every connection in the room.
// Broadcasting to an empty or unknown room does nothing.
func (h *Hub) Broadcast(roomID string, ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(roomID, nil, ev)
	h.flushEvictionsLocked()
}

// BroadcastExcept sends the event to every connection in the room but one.
func (h *Hub) BroadcastExcept(connID, roomID string, ev *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.broadcastLocked(roomID, h.clients[connID], ev)
	h.flushEvictionsLocked()
}

// InRoom reports whether the connection currently listens to the room.
func (h *Hub) InRoom(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	room, ok := h.rooms[roomID]
	return ok && room.Has(c)
}

func (h *Hub) broadcastLocked(roomID string, except *Client, ev *Event) {
	room, ok := h.rooms[roomID]
	if !ok {
		return
	}
	room.each(except, func(c *Client) {
		h.deliverLocked(c, ev)
	})
}

func (h *Hub) addToRoomLocked(c *Client, roomID string) {
	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	room.AddClient(c)
	c.rooms[roomID] = struct{}{}
}

func (h *Hub) removeFromRoomLocked(c *Client, roomID string) {
	if room, ok := h.rooms[roomID]; ok {
		room.RemoveClient(c)
		if room.Empty() {
			delete(h.rooms, roomID)
		}
	}
	delete(c.rooms, roomID)
}

// deliverLocked queues the event without blocking. A client whose buffer is
// full is marked for eviction so that it cannot miss events silently.
func (h *Hub) deliverLocked(c *Client, ev *Event) {
	if c.closed || c.lagging {
		return
	}
	select {
	case c.Events <- ev:
	default:
		c.lagging = true
		h.evict = append(h.evict, c)
		h.log.Warn().Str("client_id", c.ID).Stringer("event", ev.Kind).Msg("slow consumer, evicting")
	}
}

// flushEvictionsLocked unregisters lagging clients. Evicting one client can
// publish presence and mark more clients, so it loops until the queue drains.
func (h *Hub) flushEvictionsLocked() {
	for len(h.evict) > 0 {
		c := h.evict[0]
		h.evict = h.evict[1:]
		h.unregisterLocked(c)
	}
}
