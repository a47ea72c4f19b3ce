package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Ppongpitch/Project-Network/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3001/ws", "WebSocket address")
	userID := flag.String("user-id", "smoke-user", "user id to announce")
	username := flag.String("user", "tester", "username to announce")
	room := flag.String("room", "", "room id (defaults to the user's bot room)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	token := flag.String("token", "", "optional bearer token")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *room == "" {
		*room = "private_" + *userID + "_bot_luna_1"
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	target := *addr
	if *token != "" {
		target += "?token=" + *token
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: *userID, Username: *username}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: *room, UserID: *userID}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: *room, UserID: *userID, Content: *text}); err != nil {
		return err
	}

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if f.Type == proto.OutboundTypeError && f.Error != nil {
			return fmt.Errorf("server error %s: %s", f.Error.Code, f.Error.Msg)
		}
		fmt.Printf("Received event=%s\n", f.Event)

		switch f.Event {
		case proto.EventPreviousMessages:
			var history []proto.Message
			if err := json.Unmarshal(f.Data, &history); err == nil {
				fmt.Printf("History: room=%s messages=%d\n", *room, len(history))
			}
		case proto.EventReceiveMessage:
			var msg proto.Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("Message: room=%s user=%s text=%q at=%s\n", msg.RoomID, msg.User.Username, msg.Content, msg.CreatedAt)
			if msg.UserID == *userID {
				return nil
			}
		}
	}
}
