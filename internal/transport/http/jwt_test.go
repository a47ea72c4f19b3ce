package http

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Ppongpitch/Project-Network/internal/auth"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/proto"
)

const testSecret = "testsecret"

func startJWTTestServer(t *testing.T) *testEnv {
	t.Helper()
	return startTestServer(t, func(cfg *config.Config, _ *core.HubConfig) {
		cfg.JWTSecret = testSecret
		cfg.JWTIssuer = "lunachat"
		cfg.JWTAudience = "lunachat-web"
	})
}

func makeToken(t *testing.T, userID, username string) string {
	t.Helper()

	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "lunachat",
		Audience: "lunachat-web",
		TTL:      time.Hour,
	}, userID, username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestWebSocketJWTMissingToken(t *testing.T) {
	env := startJWTTestServer(t)
	ctx := testContext(t)

	_, resp, err := websocket.Dial(ctx, env.wsURL(""), nil)
	if err == nil {
		t.Fatalf("expected handshake to fail without token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketJWTInvalidToken(t *testing.T) {
	env := startJWTTestServer(t)
	ctx := testContext(t)

	_, resp, err := websocket.Dial(ctx, env.wsURL("token=garbage"), nil)
	if err == nil {
		t.Fatalf("expected handshake to fail with invalid token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func TestWebSocketJWTQueryTokenBindsIdentity(t *testing.T) {
	env := startJWTTestServer(t)
	ctx := testContext(t)

	query := url.Values{"token": {makeToken(t, "u1", "alice")}}.Encode()
	conn := env.dial(t, ctx, query, nil)

	sendFrame(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u2", Username: "mallory"})
	readUntil(t, ctx, conn, isError(core.ErrCodeUnauthorized))

	sendFrame(t, ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	readUntil(t, ctx, conn, onlineCount(1))
}

func TestWebSocketJWTHeaderTokenGuardsAuthor(t *testing.T) {
	env := startJWTTestServer(t)
	ctx := testContext(t)
	roomID := env.hub.Resolver().VirtualRoomID("u1")

	conn := env.dial(t, ctx, "", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + makeToken(t, "u1", "alice")}},
	})

	sendFrame(t, ctx, conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID})
	readUntil(t, ctx, conn, isEvent(proto.EventPreviousMessages))

	sendFrame(t, ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, UserID: "u2", Content: "spoof"})
	readUntil(t, ctx, conn, isError(core.ErrCodeUnauthorized))

	// the counterpart of the user's own virtual room may be voiced by the client
	counterpart := core.DefaultCounterpart.ID
	sendFrame(t, ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, UserID: counterpart, Content: "Waku waku!"})
	msg := decode[proto.Message](t, readUntil(t, ctx, conn, messageFrom(counterpart)).Data)
	if msg.Content != "Waku waku!" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestAPIRequiresTokenWhenEnabled(t *testing.T) {
	env := startJWTTestServer(t)

	resp := doJSON(t, env.server.Handler, http.MethodGet, "/api/users", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	resp = doJSON(t, env.server.Handler, http.MethodGet, "/api/users", nil, makeToken(t, "u1", "alice"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAPIJoinUsesTokenUser(t *testing.T) {
	env := startJWTTestServer(t)
	roomID := env.seedRoom(t, map[string]string{"u2": "bob"})
	token := makeToken(t, "u1", "alice")

	resp := doJSON(t, env.server.Handler, http.MethodPost, "/api/rooms/"+roomID+"/join", JoinRoomRequest{UserID: "u2"}, token)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when acting for another user, got %d", resp.Code)
	}

	resp = doJSON(t, env.server.Handler, http.MethodPost, "/api/rooms/"+roomID+"/join", nil, token)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected join with token user, got %d: %s", resp.Code, resp.Body.String())
	}
	member, err := env.store.IsMember(testContext(t), "u1", roomID)
	if err != nil || !member {
		t.Fatalf("expected u1 to be a member: %v %v", member, err)
	}
}

func TestWebSocketJWTTypingUsesIdentifiedName(t *testing.T) {
	env := startJWTTestServer(t)
	ctx := testContext(t)
	roomID := env.seedRoom(t, map[string]string{"u1": "alice", "u2": "bob"})

	connA := env.dial(t, ctx, url.Values{"token": {makeToken(t, "u1", "alice")}}.Encode(), nil)
	connB := env.dial(t, ctx, url.Values{"token": {makeToken(t, "u2", "bob")}}.Encode(), nil)

	sendFrame(t, ctx, connA, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: "u1", Username: "alice"})
	readUntil(t, ctx, connA, onlineCount(1))
	for _, join := range []struct {
		conn *websocket.Conn
		user string
	}{{connA, "u1"}, {connB, "u2"}} {
		sendFrame(t, ctx, join.conn, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, UserID: join.user})
		readUntil(t, ctx, join.conn, isEvent(proto.EventPreviousMessages))
	}

	sendFrame(t, ctx, connA, proto.InboundTypeTyping, proto.TypingData{RoomID: roomID, Username: "bob"})
	typing := decode[proto.EventTyping](t, readUntil(t, ctx, connB, isEvent(proto.EventUserTyping)).Data)
	if typing.Username != "alice" {
		t.Fatalf("expected identified name in typing event, got %+v", typing)
	}
}
