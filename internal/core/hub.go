package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

// Store is the persistence collaborator consumed by the hub.
type Store interface {
	IsMember(ctx context.Context, userID, roomID string) (bool, error)
	ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error)
	CreateMessage(ctx context.Context, roomID, userID, content string) (*store.Message, error)
	GetUserByID(ctx context.Context, id string) (*store.User, error)
}

// Replier produces the counterpart's answer to a message in a virtual room.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// HubConfig tunes the hub.
type HubConfig struct {
	// HistoryLimit caps the number of messages replayed on join.
	HistoryLimit int
	// TypingExpiry is how long a typing indicator lives without a refresh.
	TypingExpiry time.Duration
	// TypingSweepInterval is how often Run clears expired indicators.
	TypingSweepInterval time.Duration
	// Counterpart is the identity of the bot in virtual rooms.
	Counterpart Profile
	// Replier, when set, answers user messages in virtual rooms.
	Replier Replier
	// ReplyTimeout bounds a single Replier call.
	ReplyTimeout time.Duration
}

// DefaultHubConfig returns the settings used when a field is left zero.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		HistoryLimit:        50,
		TypingExpiry:        5 * time.Second,
		TypingSweepInterval: time.Second,
		Counterpart:         DefaultCounterpart,
		ReplyTimeout:        30 * time.Second,
	}
}

func (c HubConfig) withDefaults() HubConfig {
	def := DefaultHubConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = def.HistoryLimit
	}
	if c.TypingExpiry <= 0 {
		c.TypingExpiry = def.TypingExpiry
	}
	if c.TypingSweepInterval <= 0 {
		c.TypingSweepInterval = def.TypingSweepInterval
	}
	if c.ReplyTimeout <= 0 {
		c.ReplyTimeout = def.ReplyTimeout
	}
	return c
}

// Hub coordinates clients, presence, rooms and typing state.
// All in-memory state is guarded by mu; store calls are never made with mu held.
type Hub struct {
	store    Store
	cfg      HubConfig
	resolver *Resolver
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	clients  map[string]*Client
	presence *presence
	rooms    map[string]*Room
	typing   map[string]map[string]typingEntry // room id -> client id -> entry
	evict    []*Client
	seq      uint64

	roomLocks keyedMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub creates a new chat hub instance. st may be nil, in which case
// persisted rooms have no history and reject messages.
func NewHub(st Store, cfg HubConfig, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		store:     st,
		cfg:       cfg,
		resolver:  NewResolver(cfg.Counterpart),
		log:       logger.With().Str("component", "hub").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		clients:   make(map[string]*Client),
		presence:  newPresence(),
		rooms:     make(map[string]*Room),
		typing:    make(map[string]map[string]typingEntry),
		roomLocks: keyedMutex{locks: make(map[string]*refLock)},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Resolver returns the room classifier used by the hub.
func (h *Hub) Resolver() *Resolver {
	return h.resolver
}

// Run sweeps expired typing indicators until ctx is done, then stops
// every dispatcher and waits for pending work.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.TypingSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.cancel()
			h.wg.Wait()
			return
		case <-ticker.C:
			h.sweepTyping()
		}
	}
}

// RegisterClient registers the client and starts its command dispatcher.
func (h *Hub) RegisterClient(c *Client) {
	h.Register(c)
	h.wg.Add(1)
	go h.dispatch(c)
}

// UnregisterClient runs the disconnect cascade for the client.
func (h *Hub) UnregisterClient(c *Client) {
	_ = h.Unregister(c.ID) //nolint:errcheck // already gone is fine on disconnect
}

// dispatch handles the client's commands one at a time.
func (h *Hub) dispatch(c *Client) {
	defer h.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-h.ctx.Done():
			return
		case cmd := <-c.Commands:
			if cmd != nil {
				h.handleCommand(c, cmd)
			}
		}
	}
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandUserOnline:
		err = h.Identify(c.ID, Identity{UserID: cmd.UserID, Username: cmd.Username, Avatar: cmd.Avatar})
	case CommandJoinRoom:
		_, err = h.Join(h.ctx, c.ID, cmd.Room, cmd.UserID)
	case CommandLeaveRoom:
		err = h.Leave(c.ID, cmd.Room)
	case CommandSendMessage:
		_, err = h.Send(h.ctx, cmd.Room, cmd.UserID, cmd.Content)
	case CommandTyping:
		err = h.StartTyping(cmd.Room, c.ID, cmd.Username)
	case CommandStopTyping:
		err = h.StopTyping(cmd.Room, c.ID)
	default:
		err = ErrBadRequest
	}
	if err == nil || errors.Is(err, ErrUnknownConnection) {
		return
	}

	h.log.Warn().Err(err).
		Str("client_id", c.ID).
		Str("room_id", cmd.Room).
		Stringer("command", cmd.Kind).
		Msg("command failed")
	h.sendError(c.ID, toCoreError(err))
}

// sendError delivers an error event to a single client.
func (h *Hub) sendError(connID string, ce *CoreError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.deliverLocked(c, &Event{Kind: EventError, Error: ce})
	h.flushEvictionsLocked()
}
