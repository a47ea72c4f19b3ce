package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandUserOnline identifies the connection and marks the user online.
	CommandUserOnline CommandKind = iota
	// CommandJoinRoom subscribes the client to a room.
	CommandJoinRoom
	// CommandLeaveRoom unsubscribes the client from a room.
	CommandLeaveRoom
	// CommandSendMessage delivers a chat message to room participants.
	CommandSendMessage
	// CommandTyping starts the typing indicator in a room.
	CommandTyping
	// CommandStopTyping clears the typing indicator in a room.
	CommandStopTyping
)

func (k CommandKind) String() string {
	switch k {
	case CommandUserOnline:
		return "user_online"
	case CommandJoinRoom:
		return "join_room"
	case CommandLeaveRoom:
		return "leave_room"
	case CommandSendMessage:
		return "send_message"
	case CommandTyping:
		return "typing"
	case CommandStopTyping:
		return "stop_typing"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Room     string
	UserID   string
	Username string
	Avatar   string
	Content  string
}
