package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

const (
	// FallbackReply is shown when the completion service fails.
	FallbackReply = "Oops! I'm having trouble right now. Please try again! 🥜"
	// NotConfiguredReply is shown when no API key is configured.
	NotConfiguredReply = "API key not configured. Please add OPENAI_API_KEY to your environment variables."
)

var (
	ErrEmptyPrompt = errors.New("message is required")
	ErrNoChoices   = errors.New("completion returned no choices")
)

// Persona is the system prompt of the counterpart.
const Persona = `You are Anya, a cheerful little girl who loves spies, peanuts and cartoons.
Speak like a small child: short, simple sentences, excited and a bit dramatic.
Use emojis such as 🥜✨😳😆🤩😱 and exclamations like "Waku waku!" or "Heh-heh".
Refer to yourself as "Anya". Treat the user as a friend, get excited about missions
and secrets, react scared or silly to anything violent, and never speak formally.
Stay in character at all times.`

// Replier produces the counterpart's answer to a user message.
type Replier interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Config configures the OpenAI backed replier.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	Persona     string
}

// OpenAIReplier answers through the chat completions API.
type OpenAIReplier struct {
	client openai.Client
	cfg    Config
	log    zerolog.Logger
}

// New returns an OpenAI replier, or a static one explaining that the bot is
// not configured when no API key is set.
func New(cfg Config, logger *zerolog.Logger) Replier {
	if cfg.APIKey == "" {
		return Static(NotConfiguredReply)
	}
	return NewOpenAIReplier(cfg, logger)
}

// NewOpenAIReplier builds a replier for the given configuration.
func NewOpenAIReplier(cfg Config, logger *zerolog.Logger) *OpenAIReplier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT3_5Turbo
	}
	if cfg.Persona == "" {
		cfg.Persona = Persona
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIReplier{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		log:    logger.With().Str("component", "bot").Logger(),
	}
}

// Reply asks the completion service for the counterpart's answer.
func (r *OpenAIReplier) Reply(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyPrompt
	}

	params := openai.ChatCompletionNewParams{
		Model: r.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(r.cfg.Persona),
			openai.UserMessage(message),
		},
	}
	if r.cfg.MaxTokens > 0 {
		params.MaxTokens = openai.Int(r.cfg.MaxTokens)
	}
	if r.cfg.Temperature > 0 {
		params.Temperature = openai.Float(r.cfg.Temperature)
	}

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		r.log.Error().Err(err).Msg("chat completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

type staticReplier string

// Static returns a replier that always answers with text.
func Static(text string) Replier {
	return staticReplier(text)
}

func (s staticReplier) Reply(context.Context, string) (string, error) {
	return string(s), nil
}

type fallbackReplier struct {
	next Replier
}

// WithFallback wraps a replier so that upstream failures turn into
// FallbackReply. Empty prompts are still rejected.
func WithFallback(next Replier) Replier {
	return fallbackReplier{next: next}
}

func (f fallbackReplier) Reply(ctx context.Context, message string) (string, error) {
	reply, err := f.next.Reply(ctx, message)
	if err != nil {
		if errors.Is(err, ErrEmptyPrompt) {
			return "", err
		}
		return FallbackReply, nil
	}
	return reply, nil
}
