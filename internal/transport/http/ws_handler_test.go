package http

import (
	"net/http"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/Ppongpitch/Project-Network/internal/bot"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketOnlineJoinAndMessage(t *testing.T) {
	env := startTestServer(t, nil)
	roomID := env.seedRoom(t, map[string]string{"u1": "alice", "u2": "bob"})
	ctx := testContext(t)

	connA := env.dial(t, ctx, "", nil)
	connB := env.dial(t, ctx, "", nil)

	sendFrame(t, ctx, connA, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	sendFrame(t, ctx, connB, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u2", Username: "bob"})
	readUntil(t, ctx, connA, onlineCount(2))
	readUntil(t, ctx, connB, onlineCount(2))

	sendFrame(t, ctx, connA, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: "u1"})
	sendFrame(t, ctx, connB, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: "u2"})
	readUntil(t, ctx, connA, isEvent(proto.EventPreviousMessages))
	history := decode[[]proto.Message](t, readUntil(t, ctx, connB, isEvent(proto.EventPreviousMessages)).Data)
	if history == nil || len(history) != 0 {
		t.Fatalf("unexpected history: %+v", history)
	}

	sendFrame(t, ctx, connA, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, UserID: "u1", Content: "hi"})

	msg := decode[proto.Message](t, readUntil(t, ctx, connB, isEvent(proto.EventReceiveMessage)).Data)
	if msg.Content != "hi" || msg.RoomID != roomID || msg.UserID != "u1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.User.Username != "alice" || msg.ID == "" || strings.HasPrefix(msg.ID, "temp_") {
		t.Fatalf("expected persisted message with author, got %+v", msg)
	}
	if msg.CreatedAt == "" {
		t.Fatalf("expected createdAt")
	}

	// a later joiner receives the stored message as history
	connC := env.dial(t, ctx, "", nil)
	sendFrame(t, ctx, connC, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: "u2"})
	history = decode[[]proto.Message](t, readUntil(t, ctx, connC, isEvent(proto.EventPreviousMessages)).Data)
	if len(history) != 1 || history[0].ID != msg.ID || history[0].RoomID != roomID {
		t.Fatalf("expected stored message in history, got %+v", history)
	}

	resp := doJSON(t, env.server.Handler, http.MethodGet, "/api/users/online", nil, "")
	online := decode[[]proto.User](t, resp.Body.Bytes())
	if len(online) != 2 {
		t.Fatalf("expected two online users, got %+v", online)
	}
}

func TestWebSocketDisconnectUpdatesPresence(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	connA := env.dial(t, ctx, "", nil)
	connB := env.dial(t, ctx, "", nil)

	sendFrame(t, ctx, connA, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	sendFrame(t, ctx, connB, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u2", Username: "bob"})
	readUntil(t, ctx, connA, onlineCount(2))

	if err := connB.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close B: %v", err)
	}

	f := readUntil(t, ctx, connA, onlineCount(1))
	users := decode[[]proto.User](t, f.Data)
	if users[0].ID != "u1" {
		t.Fatalf("expected only u1 online, got %+v", users)
	}
}

func TestWebSocketMalformedFramesAreDropped(t *testing.T) {
	env := startTestServer(t, nil)
	ctx := testContext(t)

	conn := env.dial(t, ctx, "", nil)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	sendFrame(t, ctx, conn, proto.InboundTypeJoinRoom, map[string]string{})
	sendFrame(t, ctx, conn, "dance", map[string]string{"roomId": "r1"})
	sendFrame(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})

	f := readFrame(t, ctx, conn)
	if f.Type != proto.OutboundTypeEvent || f.Event != proto.EventOnlineUsers {
		t.Fatalf("expected connection to survive and presence to follow, got %+v", f)
	}
}

func TestWebSocketEmptyMessageIsRejected(t *testing.T) {
	env := startTestServer(t, nil)
	roomID := env.seedRoom(t, map[string]string{"u1": "alice"})
	ctx := testContext(t)

	conn := env.dial(t, ctx, "", nil)
	sendFrame(t, ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, UserID: "u1", Content: "   "})

	f := readUntil(t, ctx, conn, func(f frame) bool { return f.Type == proto.OutboundTypeError })
	if f.Error.Code != core.ErrCodeEmptyMessage {
		t.Fatalf("expected empty_message error, got %+v", f.Error)
	}
}

func TestWebSocketTyping(t *testing.T) {
	env := startTestServer(t, nil)
	roomID := env.seedRoom(t, map[string]string{"u1": "alice", "u2": "bob"})
	ctx := testContext(t)

	connA := env.dial(t, ctx, "", nil)
	connB := env.dial(t, ctx, "", nil)
	for _, join := range []struct {
		conn *websocket.Conn
		user string
	}{{connA, "u1"}, {connB, "u2"}} {
		sendFrame(t, ctx, join.conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: join.user})
		readUntil(t, ctx, join.conn, isEvent(proto.EventPreviousMessages))
	}

	sendFrame(t, ctx, connA, proto.InboundTypeTyping, proto.TypingData{RoomID: roomID, Username: "alice"})
	typing := decode[proto.EventTyping](t, readUntil(t, ctx, connB, isEvent(proto.EventUserTyping)).Data)
	if typing.RoomID != roomID || typing.Username != "alice" {
		t.Fatalf("unexpected typing event: %+v", typing)
	}

	sendFrame(t, ctx, connA, proto.InboundTypeStopTyping, proto.TypingData{RoomID: roomID})
	readUntil(t, ctx, connB, isEvent(proto.EventUserStopTyping))
}

func TestWebSocketVirtualRoomAutoReply(t *testing.T) {
	env := startTestServer(t, func(_ *config.Config, hc *core.HubConfig) {
		hc.Replier = bot.Static("Waku waku!")
	})
	ctx := testContext(t)
	roomID := env.hub.Resolver().VirtualRoomID("u1")

	conn := env.dial(t, ctx, "", nil)
	sendFrame(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	sendFrame(t, ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: "u1"})
	history := decode[[]proto.Message](t, readUntil(t, ctx, conn, isEvent(proto.EventPreviousMessages)).Data)
	if len(history) != 0 {
		t.Fatalf("virtual rooms have no history, got %+v", history)
	}

	sendFrame(t, ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, UserID: "u1", Content: "ping"})

	own := decode[proto.Message](t, readUntil(t, ctx, conn, messageFrom("u1")).Data)
	if own.Content != "ping" || !strings.HasPrefix(own.ID, "temp_") {
		t.Fatalf("unexpected own message: %+v", own)
	}
	if own.User.Username != "User" {
		t.Fatalf("expected placeholder author for unknown profile, got %+v", own.User)
	}

	reply := decode[proto.Message](t, readUntil(t, ctx, conn, messageFrom(core.DefaultCounterpart.ID)).Data)
	if reply.Content != "Waku waku!" || reply.User.Username != core.DefaultCounterpart.Username {
		t.Fatalf("unexpected bot reply: %+v", reply)
	}
}

func TestWebSocketRateLimit(t *testing.T) {
	env := startTestServer(t, func(cfg *config.Config, _ *core.HubConfig) {
		cfg.RateLimitPerMinute = 2
	})
	ctx := testContext(t)

	conn := env.dial(t, ctx, "", nil)
	for i := 0; i < 3; i++ {
		sendFrame(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	}

	readUntil(t, ctx, conn, isError(core.ErrCodeRateLimited))
}
