package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/auth"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	jwt *auth.JWTConfig
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, jwtConfig *auth.JWTConfig, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, jwt: jwtConfig, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var claims *auth.Claims
	if h.jwt.Enabled() {
		var err error
		claims, err = auth.ValidateToken(h.jwt, tokenFromRequest(r))
		if err != nil {
			h.log.Debug().Err(err).Msg("ws handshake rejected")
			stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.AllowedOrigins,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(uuid.NewString())
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, claims)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, claims *auth.Claims) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			if err := wsjson.Write(ctx, conn, errorFrame(core.ErrCodeRateLimited, "too many messages")); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("dropping undecodable frame")
			continue
		}

		cmd, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Str("type", inbound.Type).Msg("dropping frame")
			continue
		}

		if msg := h.authorize(claims, cmd); msg != "" {
			if err := wsjson.Write(ctx, conn, errorFrame(core.ErrCodeUnauthorized, msg)); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// authorize checks a command against the handshake token. It returns an
// error message, or "" when the command may proceed. Without a token every
// command is allowed. With a token, typing indicators always carry the
// connection's identified name.
func (h *WSHandler) authorize(claims *auth.Claims, cmd *core.Command) string {
	if claims == nil {
		return ""
	}
	user := claims.User()

	switch cmd.Kind {
	case core.CommandUserOnline:
		if cmd.UserID != user {
			return "userId does not match token"
		}
	case core.CommandJoinRoom:
		if cmd.UserID != "" && cmd.UserID != user {
			return "userId does not match token"
		}
	case core.CommandSendMessage:
		if cmd.UserID == user {
			return ""
		}
		room := h.hub.Resolver().Classify(cmd.Room)
		if room.Kind == core.RoomVirtual && room.RealUserID == user && cmd.UserID == room.CounterpartID {
			return ""
		}
		return "cannot send as another user"
	case core.CommandTyping:
		cmd.Username = ""
	}
	return ""
}

// tokenFromRequest reads the token from the Authorization header or the
// token query parameter, which browsers use since they cannot set headers
// on websocket requests.
func tokenFromRequest(r *stdhttp.Request) string {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token
	}
	return r.URL.Query().Get("token")
}
