package core

// PresenceEntry is the online record of one user.
type PresenceEntry struct {
	ConnID   string
	UserID   string
	Username string
	Avatar   string
}

// presence keeps one entry per online user in first-seen order.
type presence struct {
	entries map[string]PresenceEntry
	order   []string
}

func newPresence() *presence {
	return &presence{entries: make(map[string]PresenceEntry)}
}

// set inserts or overwrites the user's entry. An overwrite keeps the position.
func (p *presence) set(e PresenceEntry) {
	if _, exists := p.entries[e.UserID]; !exists {
		p.order = append(p.order, e.UserID)
	}
	p.entries[e.UserID] = e
}

// owns reports whether the user's entry belongs to connID.
func (p *presence) owns(userID, connID string) bool {
	e, ok := p.entries[userID]
	return ok && e.ConnID == connID
}

// remove drops the user's entry only if it belongs to connID.
func (p *presence) remove(userID, connID string) bool {
	if !p.owns(userID, connID) {
		return false
	}
	delete(p.entries, userID)
	for i, id := range p.order {
		if id == userID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

func (p *presence) snapshot() []Profile {
	out := make([]Profile, 0, len(p.order))
	for _, id := range p.order {
		e := p.entries[id]
		out = append(out, Profile{ID: e.UserID, Username: e.Username, Avatar: e.Avatar})
	}
	return out
}

// OnlineUsers returns the current presence snapshot.
func (h *Hub) OnlineUsers() []Profile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presence.snapshot()
}

// publishPresenceLocked sends the snapshot to every registered client.
func (h *Hub) publishPresenceLocked() {
	ev := &Event{Kind: EventOnlineUsers, Online: h.presence.snapshot()}
	for _, c := range h.clients {
		h.deliverLocked(c, ev)
	}
}
