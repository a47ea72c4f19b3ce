package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/bot"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/proto"
	"github.com/Ppongpitch/Project-Network/internal/store/sqlite"
)

const testBotReply = "Heh-heh! 🥜"

type testEnv struct {
	ts     *httptest.Server
	server *http.Server
	hub    *core.Hub
	store  *sqlite.SQLiteStore
	cfg    config.Config
}

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// startTestServer runs a hub and the HTTP server over an in-memory store.
// mutate may adjust both configurations before anything starts.
func startTestServer(t *testing.T, mutate func(*config.Config, *core.HubConfig)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.RateLimitPerMinute = 0
	hubCfg := core.DefaultHubConfig()
	if mutate != nil {
		mutate(&cfg, &hubCfg)
	}

	disabledLogger := zerolog.Nop()
	st := createTestStore(t)

	hub := core.NewHub(st, hubCfg, &disabledLogger)
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

	server := NewServer(hub, st, bot.Static(testBotReply), &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, server: server, hub: hub, store: st, cfg: cfg}
}

// seedRoom creates the users and a room they all belong to.
func (e *testEnv) seedRoom(t *testing.T, users map[string]string) string {
	t.Helper()
	ctx := context.Background()

	room, err := e.store.CreateRoom(ctx, "general", false)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	for id, name := range users {
		if _, err := e.store.CreateUser(ctx, id, name, name+"@example.com", nil); err != nil {
			t.Fatalf("create user %s: %v", id, err)
		}
		if _, err := e.store.AddMember(ctx, id, room.ID); err != nil {
			t.Fatalf("add member %s: %v", id, err)
		}
	}
	return room.ID
}

func (e *testEnv) wsURL(query string) string {
	u := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, query string, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(query), opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) frame {
	t.Helper()

	var f frame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// readUntil skips frames until match accepts one.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()

	for {
		f := readFrame(t, ctx, conn)
		if match(f) {
			return f
		}
	}
}

func isEvent(name string) func(frame) bool {
	return func(f frame) bool { return f.Type == proto.OutboundTypeEvent && f.Event == name }
}

func isError(code string) func(frame) bool {
	return func(f frame) bool {
		return f.Type == proto.OutboundTypeError && f.Error != nil && f.Error.Code == code
	}
}

func onlineCount(n int) func(frame) bool {
	return func(f frame) bool {
		if !isEvent(proto.EventOnlineUsers)(f) {
			return false
		}
		var users []proto.User
		return json.Unmarshal(f.Data, &users) == nil && len(users) == n
	}
}

func messageFrom(userID string) func(frame) bool {
	return func(f frame) bool {
		if !isEvent(proto.EventReceiveMessage)(f) {
			return false
		}
		var msg proto.Message
		return json.Unmarshal(f.Data, &msg) == nil && msg.UserID == userID
	}
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

// doJSON runs a request directly against the server handler.
func doJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}
