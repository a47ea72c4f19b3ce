package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventOnlineUsers carries the full presence snapshot.
	EventOnlineUsers EventKind = iota
	// EventPreviousMessages delivers room history to a client upon joining.
	EventPreviousMessages
	// EventReceiveMessage notifies room members about a chat message.
	EventReceiveMessage
	// EventUserTyping notifies room members that someone is typing.
	EventUserTyping
	// EventUserStopTyping clears a typing indicator.
	EventUserStopTyping
	// EventError notifies a single client about a failed command.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOnlineUsers:
		return "online_users"
	case EventPreviousMessages:
		return "previous_messages"
	case EventReceiveMessage:
		return "receive_message"
	case EventUserTyping:
		return "user_typing"
	case EventUserStopTyping:
		return "user_stop_typing"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated after publishing.
type Event struct {
	Kind     EventKind
	Room     string
	User     string    // username, for typing events
	Message  Message   // for EventReceiveMessage
	Messages []Message // for EventPreviousMessages
	Online   []Profile // for EventOnlineUsers
	Error    *CoreError
}
