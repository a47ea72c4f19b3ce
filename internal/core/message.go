package core

import (
	"time"

	"github.com/Ppongpitch/Project-Network/internal/store"
)

// Profile is the display identity attached to a message author or an online user.
type Profile struct {
	ID       string
	Username string
	Avatar   string
}

// placeholderUsername is shown when the author profile cannot be found.
const placeholderUsername = "User"

func placeholderProfile(userID string) Profile {
	return Profile{ID: userID, Username: placeholderUsername}
}

// Message is the domain model for a chat message.
// Messages of virtual rooms exist only while they are being delivered.
type Message struct {
	ID        string
	RoomID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	Author    Profile
}

func profileFromUser(u *store.User) Profile {
	p := Profile{ID: u.ID, Username: u.Username}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	return p
}

func messageFromStore(m *store.Message) Message {
	msg := Message{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Author:    placeholderProfile(m.UserID),
	}
	if m.User != nil {
		msg.Author = profileFromUser(m.User)
	}
	return msg
}
