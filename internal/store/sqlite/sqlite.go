package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db, now: utcNow}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema or seed rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Set connection pool limits before setup
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

// Migrate applies the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var user store.User
	var avatar sql.NullString
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &avatar, &user.CreatedAt); err != nil {
		return nil, err
	}
	if avatar.Valid {
		user.Avatar = &avatar.String
	}
	return &user, nil
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.IsPrivate,
		&room.CreatedAt,
		&room.UpdatedAt,
		&room.MemberCount,
		&room.MessageCount,
	); err != nil {
		return nil, err
	}
	return &room, nil
}

// ==== UserStore implementation ====

// CreateUser creates a user, or returns the existing one with the same ID.
func (s *SQLiteStore) CreateUser(ctx context.Context, id, username, email string, avatar *string) (*store.User, error) {
	query := `
		INSERT INTO users (id, username, email, avatar, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, email, avatar, s.now()); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, email, avatar, created_at
		FROM users
		WHERE id = ?
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return user, nil
}

// ListUsers lists all users, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, username, email, avatar, created_at
		FROM users
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ==== RoomStore implementation ====

const roomColumns = `
	r.id, r.name, r.is_private, r.created_at, r.updated_at,
	(SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id),
	(SELECT COUNT(*) FROM messages g WHERE g.room_id = r.id)
`

// CreateRoom creates a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, isPrivate bool) (*store.Room, error) {
	query := `
		INSERT INTO rooms (id, name, is_private, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	now := s.now()
	if _, err := s.db.ExecContext(ctx, query, id, name, isPrivate, now, now); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r WHERE r.id = ?`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	return room, nil
}

// ListRooms lists all rooms, most recently updated first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r ORDER BY r.updated_at DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*store.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		INSERT OR IGNORE INTO room_members (user_id, room_id, joined_at)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, roomID, s.now())
	if err != nil {
		return false, fmt.Errorf("insert room member: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return n > 0, nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE user_id = ? AND room_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}

	return true, nil
}

// ListMembers lists the users of a room in join order.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.email, u.avatar, u.created_at
		FROM room_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make([]*store.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, user)
	}

	return members, rows.Err()
}

// FindPrivateRoom returns the private room whose members are exactly the two users.
func (s *SQLiteStore) FindPrivateRoom(ctx context.Context, user1ID, user2ID string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms r
		WHERE r.is_private = 1
		  AND (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) = 2
		  AND EXISTS (SELECT 1 FROM room_members m WHERE m.room_id = r.id AND m.user_id = ?)
		  AND EXISTS (SELECT 1 FROM room_members m WHERE m.room_id = r.id AND m.user_id = ?)
		ORDER BY r.created_at ASC
		LIMIT 1
	`
	room, err := scanRoom(s.db.QueryRowContext(ctx, query, user1ID, user2ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("private room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query private room: %w", err)
	}

	return room, nil
}

// CreatePrivateRoom creates a private room and adds both users as members.
func (s *SQLiteStore) CreatePrivateRoom(ctx context.Context, user1ID, user2ID string) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	id := uuid.NewString()
	now := s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, name, is_private, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
	`, id, store.PrivateRoomName, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	memberQuery := `
		INSERT OR IGNORE INTO room_members (user_id, room_id, joined_at)
		VALUES (?, ?, ?)
	`
	for _, userID := range []string{user1ID, user2ID} {
		if _, err := tx.ExecContext(ctx, memberQuery, userID, id, now); err != nil {
			return nil, fmt.Errorf("insert room member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and bumps the room's update time.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID, userID, content string) (*store.Message, error) {
	msg := &store.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, user_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.RoomID, msg.UserID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE rooms SET updated_at = ? WHERE id = ?`, msg.CreatedAt, roomID); err != nil {
		return nil, fmt.Errorf("touch room: %w", err)
	}

	author, err := scanUser(tx.QueryRowContext(ctx, `
		SELECT id, username, email, avatar, created_at
		FROM users
		WHERE id = ?
	`, userID))
	switch {
	case err == nil:
		msg.User = author
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("query author: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return msg, nil
}

// ListRecentMessages returns the newest limit messages of a room, oldest first.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, roomID string, limit int) ([]*store.Message, error) {
	query := `
		SELECT m.id, m.room_id, m.user_id, m.content, m.created_at,
		       u.id, u.username, u.email, u.avatar, u.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.seq DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		var uID, uName, uEmail, uAvatar sql.NullString
		var uCreated sql.NullTime
		if err := rows.Scan(
			&msg.ID, &msg.RoomID, &msg.UserID, &msg.Content, &msg.CreatedAt,
			&uID, &uName, &uEmail, &uAvatar, &uCreated,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if uID.Valid {
			msg.User = &store.User{
				ID:        uID.String,
				Username:  uName.String,
				Email:     uEmail.String,
				CreatedAt: uCreated.Time,
			}
			if uAvatar.Valid {
				msg.User.Avatar = &uAvatar.String
			}
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, nil
}

var _ store.Store = (*SQLiteStore)(nil)
