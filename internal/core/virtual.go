package core

import "strings"

// RoomKind tells whether a room is backed by the store or synthesized in memory.
type RoomKind int

const (
	// RoomPersisted rooms keep their messages and membership in the store.
	RoomPersisted RoomKind = iota
	// RoomVirtual rooms are private conversations with the counterpart bot.
	// Their messages are never persisted.
	RoomVirtual
)

func (k RoomKind) String() string {
	if k == RoomVirtual {
		return "virtual"
	}
	return "persisted"
}

// RoomIdentity is a room id together with its classification.
// RealUserID and CounterpartID are set for virtual rooms only.
type RoomIdentity struct {
	ID            string
	Kind          RoomKind
	RealUserID    string
	CounterpartID string
}

const virtualRoomPrefix = "private_"

// DefaultCounterpart is the bot identity used when none is configured.
var DefaultCounterpart = Profile{
	ID:       "bot_luna_1",
	Username: "Anya Bot",
	Avatar:   "/avatar1.jpg",
}

// Resolver classifies room ids. Virtual room ids have the form
// private_<realUserID>_<counterpartID>.
type Resolver struct {
	counterpart Profile
	suffix      string
}

// NewResolver builds a resolver for the given counterpart identity.
func NewResolver(counterpart Profile) *Resolver {
	if counterpart.ID == "" {
		counterpart = DefaultCounterpart
	}
	if counterpart.Username == "" {
		counterpart.Username = DefaultCounterpart.Username
	}
	return &Resolver{
		counterpart: counterpart,
		suffix:      "_" + counterpart.ID,
	}
}

// Classify resolves a room id. It is pure and never touches the store.
func (r *Resolver) Classify(roomID string) RoomIdentity {
	if !strings.HasPrefix(roomID, virtualRoomPrefix) || !strings.HasSuffix(roomID, r.suffix) {
		return RoomIdentity{ID: roomID, Kind: RoomPersisted}
	}
	realUserID := roomID[len(virtualRoomPrefix) : len(roomID)-len(r.suffix)]
	if realUserID == "" {
		return RoomIdentity{ID: roomID, Kind: RoomPersisted}
	}
	return RoomIdentity{
		ID:            roomID,
		Kind:          RoomVirtual,
		RealUserID:    realUserID,
		CounterpartID: r.counterpart.ID,
	}
}

// SyntheticMembers returns the two participants of a virtual room.
func (r *Resolver) SyntheticMembers(roomID string) (realUserID, counterpartID string, ok bool) {
	room := r.Classify(roomID)
	if room.Kind != RoomVirtual {
		return "", "", false
	}
	return room.RealUserID, room.CounterpartID, true
}

// VirtualRoomID builds the id of the user's private room with the counterpart.
func (r *Resolver) VirtualRoomID(userID string) string {
	return virtualRoomPrefix + userID + r.suffix
}

// Counterpart returns the fixed display identity of the counterpart.
func (r *Resolver) Counterpart() Profile {
	return r.counterpart
}
