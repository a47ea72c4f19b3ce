package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/auth"
	"github.com/Ppongpitch/Project-Network/internal/bot"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer builds the HTTP server. /ws is served straight from the mux so
// the websocket handshake can hijack the raw connection; everything else goes
// through the gin router.
func NewServer(hub *core.Hub, st store.Store, replier bot.Replier, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	jwtConfig := jwtConfigFrom(cfg)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", healthHandler)

	userHandlers := NewUserHandlers(st, logger)
	roomHandlers := NewRoomHandlers(st, hub.Resolver(), logger)
	botHandlers := NewBotHandlers(replier, logger)

	api := router.Group("/api")
	if jwtConfig.Enabled() {
		api.Use(AuthMiddleware(jwtConfig, logger))
	}
	{
		api.GET("/users", userHandlers.ListUsers)
		api.POST("/users", userHandlers.CreateUser)
		api.GET("/users/online", func(c *gin.Context) {
			c.JSON(stdhttp.StatusOK, usersFromProfiles(hub.OnlineUsers()))
		})

		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.POST("/rooms/private", roomHandlers.PrivateRoom)
		api.POST("/rooms/:roomId/join", roomHandlers.JoinRoom)

		api.POST("/bot", botHandlers.Reply)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, jwtConfig, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func jwtConfigFrom(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
