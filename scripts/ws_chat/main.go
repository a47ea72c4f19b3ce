package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

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
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:3001/ws", "WebSocket address")
	userID := flag.String("user-id", "cli-user", "user id")
	username := flag.String("user", "cli-user", "username")
	room := flag.String("room", "", "room id to join (defaults to the user's bot room)")
	flag.Parse()

	if *room == "" {
		*room = "private_" + *userID + "_bot_luna_1"
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
	}

	if err := send(proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: *userID, Username: *username}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: *room, UserID: *userID}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s in room %s\n", *addr, *username, *room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, *room, func(text string) error {
		return send(proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: *room, UserID: *userID, Content: text})
	})

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if f.Type == proto.OutboundTypeError && f.Error != nil {
			fmt.Printf("! %s: %s\n", f.Error.Code, f.Error.Msg)
			continue
		}

		switch f.Event {
		case proto.EventReceiveMessage:
			var msg proto.Message
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s: %s\n", msg.RoomID, msg.User.Username, msg.Content)
		case proto.EventPreviousMessages:
			var history []proto.Message
			if err := json.Unmarshal(f.Data, &history); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			for _, msg := range history {
				fmt.Printf("[%s] %s: %s\n", msg.RoomID, msg.User.Username, msg.Content)
			}
		case proto.EventOnlineUsers:
			var users []proto.User
			if err := json.Unmarshal(f.Data, &users); err != nil {
				log.Printf("unmarshal online users: %v", err)
				continue
			}
			names := make([]string, 0, len(users))
			for _, u := range users {
				names = append(names, u.Username)
			}
			fmt.Printf("* online: %s\n", strings.Join(names, ", "))
		case proto.EventUserTyping:
			var evt proto.EventTyping
			if err := json.Unmarshal(f.Data, &evt); err == nil {
				fmt.Printf("* %s is typing...\n", evt.Username)
			}
		case proto.EventUserStopTyping:
		default:
			fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
		}
	}
}

func writeLoop(ctx context.Context, room string, send func(string) error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(text); err != nil {
				log.Printf("send to %s: %v", room, err)
				return
			}
		}
	}
}
