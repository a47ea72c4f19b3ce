package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// expectNoEvent fails if an event of the given kind arrives within wait.
func expectNoEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-timer.C:
			return
		}
	}
}

// waitClosed drains ch until it is closed.
func waitClosed(t *testing.T, ch <-chan *Event) {
	t.Helper()

	timer := time.NewTimer(2 * time.Second)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-timer.C:
			t.Fatalf("events channel was not closed")
		}
	}
}

func newTestHub(t *testing.T, st Store, cfg HubConfig, opts ...func(*Hub)) *Hub {
	t.Helper()

	hub := NewHub(st, cfg, nil)
	for _, opt := range opts {
		opt(hub)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()

	c := NewClient(id)
	hub.RegisterClient(c)
	return c
}

func online(t *testing.T, hub *Hub, c *Client, userID, username string) {
	t.Helper()

	if err := hub.Identify(c.ID, Identity{UserID: userID, Username: username}); err != nil {
		t.Fatalf("identify %s: %v", userID, err)
	}
	mustEvent(t, c.Events, EventOnlineUsers)
}

func join(t *testing.T, hub *Hub, c *Client, roomID, userID string) JoinResult {
	t.Helper()

	res, err := hub.Join(context.Background(), c.ID, roomID, userID)
	if err != nil {
		t.Fatalf("join %s: %v", roomID, err)
	}
	return res
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory Store with failure hooks.
type fakeStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*store.User
	members  map[string]map[string]bool // room id -> user id
	messages map[string][]*store.Message

	createErr  error
	memberErr  error
	historyErr error
	// gates blocks CreateMessage for a room until the channel is closed.
	gates map[string]chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*store.User),
		members:  make(map[string]map[string]bool),
		messages: make(map[string][]*store.Message),
		gates:    make(map[string]chan struct{}),
	}
}

func (s *fakeStore) addUser(id, username, avatar string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &store.User{ID: id, Username: username}
	if avatar != "" {
		u.Avatar = &avatar
	}
	s.users[id] = u
}

func (s *fakeStore) addMember(roomID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[roomID] == nil {
		s.members[roomID] = make(map[string]bool)
	}
	for _, id := range userIDs {
		s.members[roomID][id] = true
	}
}

func (s *fakeStore) setCreateErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *fakeStore) gate(roomID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{})
	s.gates[roomID] = ch
	return ch
}

func (s *fakeStore) messageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[roomID])
}

func (s *fakeStore) IsMember(_ context.Context, userID, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memberErr != nil {
		return false, s.memberErr
	}
	return s.members[roomID][userID], nil
}

func (s *fakeStore) ListRecentMessages(_ context.Context, roomID string, limit int) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.historyErr != nil {
		return nil, s.historyErr
	}
	all := s.messages[roomID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*store.Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, roomID, userID, content string) (*store.Message, error) {
	s.mu.Lock()
	gate := s.gates[roomID]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	s.seq++
	msg := &store.Message{
		ID:        fmt.Sprintf("m%05d", s.seq),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second),
		User:      s.users[userID],
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

// stubReplier answers every message with a fixed text.
type stubReplier struct {
	reply string
	err   error
}

func (r stubReplier) Reply(context.Context, string) (string, error) {
	return r.reply, r.err
}
