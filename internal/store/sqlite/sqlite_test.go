package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Deterministic, strictly increasing clock.
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	return s
}

func TestCreateUserIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	avatar := "/a.png"
	first, err := s.CreateUser(ctx, "u1", "alice", "alice@example.com", &avatar)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if first.Avatar == nil || *first.Avatar != avatar {
		t.Fatalf("unexpected avatar: %+v", first.Avatar)
	}

	again, err := s.CreateUser(ctx, "u1", "other-name", "", nil)
	if err != nil {
		t.Fatalf("create user again: %v", err)
	}
	if again.Username != "alice" {
		t.Fatalf("expected existing user to be returned, got %+v", again)
	}

	if _, err := s.CreateUser(ctx, "u2", "alice", "", nil); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", err)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetUserByID(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	member, err := s.IsMember(ctx, "u1", room.ID)
	if err != nil || member {
		t.Fatalf("expected non-member, got %v %v", member, err)
	}

	added, err := s.AddMember(ctx, "u1", room.ID)
	if err != nil || !added {
		t.Fatalf("expected first add to insert, got %v %v", added, err)
	}
	added, err = s.AddMember(ctx, "u1", room.ID)
	if err != nil || added {
		t.Fatalf("expected second add to be a no-op, got %v %v", added, err)
	}

	member, err = s.IsMember(ctx, "u1", room.ID)
	if err != nil || !member {
		t.Fatalf("expected member, got %v %v", member, err)
	}
}

func TestListRecentMessagesReturnsNewestInChronologicalOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "u1", "alice", "", nil); err != nil {
		t.Fatalf("create user: %v", err)
	}
	room, err := s.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	for i := range 60 {
		if _, err := s.CreateMessage(ctx, room.ID, "u1", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("create message %d: %v", i, err)
		}
	}

	msgs, err := s.ListRecentMessages(ctx, room.ID, 50)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "m10" || msgs[49].Content != "m59" {
		t.Fatalf("unexpected window: first=%s last=%s", msgs[0].Content, msgs[49].Content)
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Fatalf("messages not in creation order at %d", i)
		}
	}
	if msgs[0].User == nil || msgs[0].User.Username != "alice" {
		t.Fatalf("expected author to be joined, got %+v", msgs[0].User)
	}
}

func TestCreateMessageWithUnknownAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	msg, err := s.CreateMessage(ctx, room.ID, "ghost", "boo")
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Fatalf("expected canonical id and timestamp, got %+v", msg)
	}
	if msg.User != nil {
		t.Fatalf("expected no author row, got %+v", msg.User)
	}
}

func TestCreateMessageAuthorLookupFailureStoresNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	if _, err := s.db.Exec(`ALTER TABLE users RENAME TO users_offline`); err != nil {
		t.Fatalf("rename users: %v", err)
	}
	if _, err := s.CreateMessage(ctx, room.ID, "u1", "lost"); err == nil {
		t.Fatalf("expected author lookup to fail")
	}
	if _, err := s.db.Exec(`ALTER TABLE users_offline RENAME TO users`); err != nil {
		t.Fatalf("restore users: %v", err)
	}

	history, err := s.ListRecentMessages(ctx, room.ID, 50)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("failed send must not be stored, got %d messages", len(history))
	}
}

func TestListRoomsCountsAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	older, _ := s.CreateRoom(ctx, "older", false)
	newer, _ := s.CreateRoom(ctx, "newer", false)
	if _, err := s.AddMember(ctx, "u1", older.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	// A message bumps the room to the top.
	if _, err := s.CreateMessage(ctx, older.ID, "u1", "hello"); err != nil {
		t.Fatalf("create message: %v", err)
	}

	rooms, err := s.ListRooms(ctx)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != older.ID || rooms[1].ID != newer.ID {
		t.Fatalf("unexpected order: %s, %s", rooms[0].Name, rooms[1].Name)
	}
	if rooms[0].MemberCount != 1 || rooms[0].MessageCount != 1 {
		t.Fatalf("unexpected counts: %+v", rooms[0])
	}
}

func TestPrivateRoomFindOrCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.FindPrivateRoom(ctx, "u1", "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := s.CreatePrivateRoom(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("create private room: %v", err)
	}
	if !created.IsPrivate || created.MemberCount != 2 || created.Name != store.PrivateRoomName {
		t.Fatalf("unexpected room: %+v", created)
	}

	found, err := s.FindPrivateRoom(ctx, "u2", "u1")
	if err != nil {
		t.Fatalf("find private room: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, found.ID)
	}

	// A third member makes it no longer a two-person room.
	if _, err := s.AddMember(ctx, "u3", created.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := s.FindPrivateRoom(ctx, "u1", "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after third member, got %v", err)
	}
}
