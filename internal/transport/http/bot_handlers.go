package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/bot"
)

const botErrorReply = "Sorry, something went wrong! 🥜"

// BotHandlers exposes the counterpart's replier over HTTP.
type BotHandlers struct {
	replier bot.Replier
	log     *zerolog.Logger
}

// NewBotHandlers creates a new bot handlers instance.
func NewBotHandlers(replier bot.Replier, logger *zerolog.Logger) *BotHandlers {
	return &BotHandlers{replier: replier, log: logger}
}

// BotRequest is the message to answer.
type BotRequest struct {
	Message string `json:"message"`
}

// BotResponse carries the counterpart's reply.
type BotResponse struct {
	Reply   string `json:"reply"`
	Success bool   `json:"success,omitempty"`
}

// Reply answers a single message.
// POST /api/bot
func (h *BotHandlers) Reply(c *gin.Context) {
	var req BotRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Message is required"})
		return
	}
	if h.replier == nil {
		c.JSON(http.StatusOK, BotResponse{Reply: bot.NotConfiguredReply})
		return
	}

	reply, err := h.replier.Reply(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, bot.ErrEmptyPrompt) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Message is required"})
			return
		}
		h.log.Error().Err(err).Msg("bot reply failed")
		c.JSON(http.StatusInternalServerError, BotResponse{Reply: botErrorReply})
		return
	}

	c.JSON(http.StatusOK, BotResponse{Reply: reply, Success: true})
}
