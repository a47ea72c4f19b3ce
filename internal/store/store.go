package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// PrivateRoomName is the display name given to two-person rooms.
const PrivateRoomName = "Private Chat"

// User represents a user profile. IDs are issued by the external auth provider.
type User struct {
	ID        string
	Username  string
	Email     string
	Avatar    *string
	CreatedAt time.Time
}

// Room represents a chat room.
type Room struct {
	ID           string
	Name         string
	IsPrivate    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MemberCount  int
	MessageCount int
}

// Message represents a persisted chat message.
type Message struct {
	ID        string
	RoomID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	User      *User // author, nil if the user row is missing
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user, or returns the existing one with the same ID.
	CreateUser(ctx context.Context, id, username, email string, avatar *string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// ListUsers lists all users, newest first.
	ListUsers(ctx context.Context) ([]*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// CreateRoom creates a new room.
	CreateRoom(ctx context.Context, name string, isPrivate bool) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListRooms lists all rooms with member and message counts, most recently updated first.
	ListRooms(ctx context.Context) ([]*Room, error)

	// AddMember adds a user to a room. Returns false if the user already was a member.
	AddMember(ctx context.Context, userID, roomID string) (bool, error)

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID string) (bool, error)

	// ListMembers lists the users of a room in join order.
	ListMembers(ctx context.Context, roomID string) ([]*User, error)

	// FindPrivateRoom returns the private room whose members are exactly the two users.
	FindPrivateRoom(ctx context.Context, user1ID, user2ID string) (*Room, error)

	// CreatePrivateRoom creates a private room and adds both users as members.
	CreatePrivateRoom(ctx context.Context, user1ID, user2ID string) (*Room, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message and returns it with its canonical ID and timestamp.
	CreateMessage(ctx context.Context, roomID, userID, content string) (*Message, error)

	// ListRecentMessages returns the newest limit messages of a room, oldest first.
	ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Migrate creates the schema if it does not exist yet.
	Migrate(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
