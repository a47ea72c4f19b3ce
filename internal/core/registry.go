package core

import "fmt"

// Identity is what a connection announces when it goes online.
type Identity struct {
	UserID   string
	Username string
	Avatar   string
}

// Register adds a connection to the registry and returns its id.
func (h *Hub) Register(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ID] = c
	h.log.Debug().Str("client_id", c.ID).Msg("client registered")
	return c.ID
}

// Identify binds a user identity to the connection and publishes presence.
// Re-identifying with the same user id refreshes the display data.
func (h *Hub) Identify(connID string, id Identity) error {
	if id.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrBadRequest)
	}
	if id.Username == "" {
		id.Username = placeholderUsername
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if c.userID != "" && c.userID != id.UserID {
		return ErrAlreadyIdentified
	}

	h.seq++
	c.userID = id.UserID
	c.name = id.Username
	c.avatar = id.Avatar
	c.identified = h.seq

	h.presence.set(presenceEntryOf(c))
	h.log.Info().Str("client_id", c.ID).Str("user_id", id.UserID).Msg("user online")

	h.publishPresenceLocked()
	h.flushEvictionsLocked()
	return nil
}

// Unregister runs the disconnect cascade: the connection leaves every room,
// its typing indicators are cleared and its presence entry is dropped.
func (h *Hub) Unregister(connID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return ErrUnknownConnection
	}
	h.unregisterLocked(c)
	h.flushEvictionsLocked()
	return nil
}

func (h *Hub) unregisterLocked(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	delete(h.clients, c.ID)

	h.clearClientTypingLocked(c)
	for roomID := range c.rooms {
		h.removeFromRoomLocked(c, roomID)
	}

	if c.userID != "" && h.presence.owns(c.userID, c.ID) {
		if next := h.latestConnectionLocked(c.userID); next != nil {
			h.presence.set(presenceEntryOf(next))
		} else {
			h.presence.remove(c.userID, c.ID)
			h.log.Info().Str("client_id", c.ID).Str("user_id", c.userID).Msg("user offline")
		}
		h.publishPresenceLocked()
	}

	close(c.done)
	close(c.Events)
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

// latestConnectionLocked returns the most recently identified registered
// connection of the user, or nil.
func (h *Hub) latestConnectionLocked(userID string) *Client {
	var latest *Client
	for _, c := range h.clients {
		if c.userID != userID {
			continue
		}
		if latest == nil || c.identified > latest.identified {
			latest = c
		}
	}
	return latest
}

func presenceEntryOf(c *Client) PresenceEntry {
	return PresenceEntry{
		ConnID:   c.ID,
		UserID:   c.userID,
		Username: c.name,
		Avatar:   c.avatar,
	}
}
