package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeUserOnline  = "user_online"
	InboundTypeJoinRoom    = "join_room"
	InboundTypeLeaveRoom   = "leave_room"
	InboundTypeSendMessage = "send_message"
	InboundTypeTyping      = "typing"
	InboundTypeStopTyping  = "stop_typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventOnlineUsers      = "online_users"
	EventPreviousMessages = "previous_messages"
	EventReceiveMessage   = "receive_message"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
)

// UserOnlineData announces who is behind the connection.
type UserOnlineData struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// JoinRoomData requests to join a room. UserID defaults to the identified user.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId,omitempty"`
}

// LeaveRoomData requests to leave a room.
type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Content string `json:"content"`
}

// TypingData starts or stops the typing indicator.
type TypingData struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// User is the public profile attached to messages and presence.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Message is a chat message as delivered to clients.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	User      User   `json:"user"`
}

// EventTyping notifies that someone started or stopped typing.
type EventTyping struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
