package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/proto"
)

// isoMillis matches the timestamps browsers produce with toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var errMalformedFrame = errors.New("malformed frame")

// inboundToCommand maps a client frame onto a core command. Frames that do
// not decode or miss their room are reported as errMalformedFrame.
func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Type {
	case proto.InboundTypeUserOnline:
		var data proto.UserOnlineData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if data.UserID == "" {
			return nil, fmt.Errorf("%w: userId is required", errMalformedFrame)
		}
		return &core.Command{
			Kind:     core.CommandUserOnline,
			UserID:   data.UserID,
			Username: data.Username,
			Avatar:   data.Avatar,
		}, nil
	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := decodeRoomData(inbound, &data, func() string { return data.RoomID }); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandJoinRoom, Room: data.RoomID, UserID: data.UserID}, nil
	case proto.InboundTypeLeaveRoom:
		var data proto.LeaveRoomData
		if err := decodeRoomData(inbound, &data, func() string { return data.RoomID }); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandLeaveRoom, Room: data.RoomID}, nil
	case proto.InboundTypeSendMessage:
		var data proto.SendMessageData
		if err := decodeRoomData(inbound, &data, func() string { return data.RoomID }); err != nil {
			return nil, err
		}
		if data.UserID == "" {
			return nil, fmt.Errorf("%w: userId is required", errMalformedFrame)
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Room:    data.RoomID,
			UserID:  data.UserID,
			Content: data.Content,
		}, nil
	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := decodeRoomData(inbound, &data, func() string { return data.RoomID }); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandTyping, Room: data.RoomID, Username: data.Username}, nil
	case proto.InboundTypeStopTyping:
		var data proto.TypingData
		if err := decodeRoomData(inbound, &data, func() string { return data.RoomID }); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandStopTyping, Room: data.RoomID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", errMalformedFrame, inbound.Type)
	}
}

func decodeData(inbound proto.Inbound, dst any) error {
	if len(inbound.Data) == 0 {
		return fmt.Errorf("%w: missing data", errMalformedFrame)
	}
	if err := json.Unmarshal(inbound.Data, dst); err != nil {
		return fmt.Errorf("%w: %w", errMalformedFrame, err)
	}
	return nil
}

func decodeRoomData(inbound proto.Inbound, dst any, room func() string) error {
	if err := decodeData(inbound, dst); err != nil {
		return err
	}
	if room() == "" {
		return fmt.Errorf("%w: roomId is required", errMalformedFrame)
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventOnlineUsers:
		return eventFrame(proto.EventOnlineUsers, usersFromProfiles(event.Online))
	case core.EventPreviousMessages:
		messages := make([]proto.Message, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageToProto(msg))
		}
		return eventFrame(proto.EventPreviousMessages, messages)
	case core.EventReceiveMessage:
		return eventFrame(proto.EventReceiveMessage, messageToProto(event.Message))
	case core.EventUserTyping:
		return eventFrame(proto.EventUserTyping, proto.EventTyping{RoomID: event.Room, Username: event.User})
	case core.EventUserStopTyping:
		return eventFrame(proto.EventUserStopTyping, proto.EventTyping{RoomID: event.Room, Username: event.User})
	case core.EventError:
		if event.Error == nil {
			return errorFrame(core.ErrCodeInternal, "unknown error")
		}
		return errorFrame(event.Error.Code, event.Error.Message)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventFrame(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func errorFrame(code, msg string) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: code, Msg: msg}}
}

func messageToProto(msg core.Message) proto.Message {
	return proto.Message{
		ID:        msg.ID,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		Content:   msg.Content,
		CreatedAt: formatTime(msg.CreatedAt),
		User:      userFromProfile(msg.Author),
	}
}

func userFromProfile(p core.Profile) proto.User {
	return proto.User{ID: p.ID, Username: p.Username, Avatar: p.Avatar}
}

func usersFromProfiles(profiles []core.Profile) []proto.User {
	users := make([]proto.User, 0, len(profiles))
	for _, p := range profiles {
		users = append(users, userFromProfile(p))
	}
	return users
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
