package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

const virtualMessagePrefix = "temp_"

var errNoStore = errors.New("no message store configured")

// Send validates a message, persists it (or synthesizes it for a virtual
// room) and broadcasts it to the room. Nothing is broadcast if persistence
// fails. Per room, broadcast order equals persistence completion order.
func (h *Hub) Send(ctx context.Context, roomID, authorID, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, ErrEmptyMessage
	}
	if roomID == "" || authorID == "" {
		return Message{}, fmt.Errorf("%w: roomId and userId are required", ErrBadRequest)
	}

	room := h.resolver.Classify(roomID)

	unlock := h.roomLocks.lock(roomID)
	defer unlock()

	var msg Message
	if room.Kind == RoomVirtual {
		msg = h.synthesize(ctx, room, authorID, content)
	} else {
		persisted, err := h.persist(ctx, roomID, authorID, content)
		if err != nil {
			return Message{}, err
		}
		msg = persisted
	}

	h.Broadcast(roomID, &Event{Kind: EventReceiveMessage, Room: roomID, Message: msg})

	h.log.Debug().
		Str("room_id", roomID).
		Str("user_id", authorID).
		Str("message_id", msg.ID).
		Stringer("kind", room.Kind).
		Msg("message sent")

	if room.Kind == RoomVirtual && authorID != room.CounterpartID && h.cfg.Replier != nil {
		h.autoReply(room, msg)
	}
	return msg, nil
}

func (h *Hub) persist(ctx context.Context, roomID, authorID, content string) (Message, error) {
	if h.store == nil {
		return Message{}, errors.Join(ErrPersistenceFailure, errNoStore)
	}
	stored, err := h.store.CreateMessage(ctx, roomID, authorID, content)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Str("user_id", authorID).Msg("persist message")
		return Message{}, errors.Join(ErrPersistenceFailure, err)
	}
	return messageFromStore(stored), nil
}

// synthesize builds an in-memory message for a virtual room.
func (h *Hub) synthesize(ctx context.Context, room RoomIdentity, authorID, content string) Message {
	author, err := h.authorProfile(ctx, room, authorID)
	if err != nil {
		h.log.Debug().Err(err).Str("user_id", authorID).Msg("using placeholder author")
	}
	return Message{
		ID:        virtualMessagePrefix + uuid.NewString(),
		RoomID:    room.ID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: h.now(),
		Author:    author,
	}
}

// authorProfile resolves the display identity of a virtual room author.
// It always returns a usable profile, falling back to a placeholder.
func (h *Hub) authorProfile(ctx context.Context, room RoomIdentity, authorID string) (Profile, error) {
	if authorID == room.CounterpartID {
		return h.resolver.Counterpart(), nil
	}
	if h.store == nil {
		return placeholderProfile(authorID), ErrProfileNotFound
	}
	user, err := h.store.GetUserByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return placeholderProfile(authorID), ErrProfileNotFound
		}
		return placeholderProfile(authorID), fmt.Errorf("lookup profile: %w", err)
	}
	return profileFromUser(user), nil
}

// autoReply asks the Replier for the counterpart's answer and sends it
// through the normal pipeline.
func (h *Hub) autoReply(room RoomIdentity, msg Message) {
	if h.ctx.Err() != nil {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.ReplyTimeout)
		defer cancel()

		reply, err := h.cfg.Replier.Reply(ctx, msg.Content)
		if err != nil {
			h.log.Warn().Err(err).Str("room_id", room.ID).Msg("bot reply failed")
			return
		}
		if _, err := h.Send(ctx, room.ID, room.CounterpartID, reply); err != nil {
			h.log.Warn().Err(err).Str("room_id", room.ID).Msg("send bot reply")
		}
	}()
}

// keyedMutex serializes work per key. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
