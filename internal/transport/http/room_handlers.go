package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store    store.Store
	resolver *core.Resolver
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, resolver *core.Resolver, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:    st,
		resolver: resolver,
		log:      logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=64"`
}

// JoinRoomRequest represents the join room request body.
type JoinRoomRequest struct {
	UserID string `json:"userId"`
}

// PrivateRoomRequest names the two participants of a private room.
type PrivateRoomRequest struct {
	User1ID string `json:"user1Id" binding:"required"`
	User2ID string `json:"user2Id" binding:"required"`
}

// RoomCount carries the aggregate counts of a room.
type RoomCount struct {
	Members  int `json:"members"`
	Messages int `json:"messages"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	IsPrivate bool           `json:"isPrivate"`
	Virtual   bool           `json:"virtual,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
	Members   []UserResponse `json:"members"`
	Count     RoomCount      `json:"_count"`
}

// MessageResponse is a plain status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// ListRooms lists rooms with their members, most recently active first.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()

	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		resp, err := h.roomResponse(ctx, room)
		if err != nil {
			h.log.Error().Err(err).Str("room_id", room.ID).Msg("failed to list room members")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response = append(response, resp)
	}

	c.JSON(http.StatusOK, response)
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, false)
	if err != nil {
		h.log.Error().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room_id", room.ID).Str("room_name", room.Name).Msg("room created")
	c.JSON(http.StatusCreated, RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
		CreatedAt: formatTime(room.CreatedAt),
		UpdatedAt: formatTime(room.UpdatedAt),
		Members:   []UserResponse{},
	})
}

// JoinRoom adds a user to a room. Joining twice is not an error.
// POST /api/rooms/:roomId/join
func (h *RoomHandlers) JoinRoom(c *gin.Context) {
	roomID := c.Param("roomId")

	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid join room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID, ok := h.actingUser(c, req.UserID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	added, err := h.store.AddMember(ctx, userID, roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("failed to join room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !added {
		c.JSON(http.StatusOK, MessageResponse{Message: "Already a member"})
		return
	}

	h.log.Info().Str("room_id", roomID).Str("user_id", userID).Msg("user joined room")
	c.JSON(http.StatusOK, MessageResponse{Message: "Joined room successfully"})
}

// PrivateRoom finds or creates the private room of exactly two users. A
// conversation with the bot counterpart lives in a virtual room that is
// never stored.
// POST /api/rooms/private
func (h *RoomHandlers) PrivateRoom(c *gin.Context) {
	var req PrivateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid private room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.User1ID == req.User2ID {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "a private room needs two different users"})
		return
	}

	if resp, ok := h.virtualRoom(req.User1ID, req.User2ID); ok {
		c.JSON(http.StatusOK, resp)
		return
	}

	ctx := c.Request.Context()
	room, err := h.store.FindPrivateRoom(ctx, req.User1ID, req.User2ID)
	if errors.Is(err, store.ErrNotFound) {
		room, err = h.store.CreatePrivateRoom(ctx, req.User1ID, req.User2ID)
		if err == nil {
			h.log.Info().Str("room_id", room.ID).Msg("private room created")
		}
	}
	if err != nil {
		h.log.Error().Err(err).Msg("failed to resolve private room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp, err := h.roomResponse(ctx, room)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", room.ID).Msg("failed to list room members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RoomHandlers) virtualRoom(user1ID, user2ID string) (RoomResponse, bool) {
	counterpart := h.resolver.Counterpart()

	var realUserID string
	switch counterpart.ID {
	case user1ID:
		realUserID = user2ID
	case user2ID:
		realUserID = user1ID
	default:
		return RoomResponse{}, false
	}

	bot := UserResponse{ID: counterpart.ID, Username: counterpart.Username}
	if counterpart.Avatar != "" {
		avatar := counterpart.Avatar
		bot.Avatar = &avatar
	}
	return RoomResponse{
		ID:        h.resolver.VirtualRoomID(realUserID),
		Name:      counterpart.Username,
		IsPrivate: true,
		Virtual:   true,
		Members:   []UserResponse{{ID: realUserID}, bot},
		Count:     RoomCount{Members: 2},
	}, true
}

func (h *RoomHandlers) roomResponse(ctx context.Context, room *store.Room) (RoomResponse, error) {
	members, err := h.store.ListMembers(ctx, room.ID)
	if err != nil {
		return RoomResponse{}, err
	}

	users := make([]UserResponse, 0, len(members))
	for _, m := range members {
		users = append(users, userResponse(m))
	}

	return RoomResponse{
		ID:        room.ID,
		Name:      room.Name,
		IsPrivate: room.IsPrivate,
		CreatedAt: formatTime(room.CreatedAt),
		UpdatedAt: formatTime(room.UpdatedAt),
		Members:   users,
		Count:     RoomCount{Members: room.MemberCount, Messages: room.MessageCount},
	}, nil
}

// actingUser resolves the user a request acts for. With authentication on,
// the token's user wins and a different explicit id is refused.
func (h *RoomHandlers) actingUser(c *gin.Context, requested string) (string, bool) {
	authed := c.GetString(ContextKeyUserID)
	switch {
	case authed != "" && requested != "" && requested != authed:
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot act for another user"})
		return "", false
	case authed != "":
		return authed, true
	case requested == "":
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "userId is required"})
		return "", false
	default:
		return requested, true
	}
}
