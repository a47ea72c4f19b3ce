package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ppongpitch/Project-Network/internal/bot"
	"github.com/Ppongpitch/Project-Network/internal/config"
	"github.com/Ppongpitch/Project-Network/internal/core"
	"github.com/Ppongpitch/Project-Network/internal/store"
	"github.com/Ppongpitch/Project-Network/internal/store/postgres"
	"github.com/Ppongpitch/Project-Network/internal/store/sqlite"
	transporthttp "github.com/Ppongpitch/Project-Network/internal/transport/http"
)

// ErrUnknownDriver is returned for an unsupported database driver.
var ErrUnknownDriver = errors.New("unknown database driver")

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	logger.Info().Str("driver", cfg.Database.Driver).Msg("database initialized")

	replier := bot.WithFallback(bot.New(botConfig(cfg.Bot), logger))

	hubCfg := core.HubConfig{
		HistoryLimit:        cfg.Chat.HistoryLimit,
		TypingExpiry:        cfg.Chat.TypingExpiry,
		TypingSweepInterval: cfg.Chat.TypingSweepInterval,
		Counterpart: core.Profile{
			ID:       cfg.Bot.ID,
			Username: cfg.Bot.Name,
			Avatar:   cfg.Bot.Avatar,
		},
		ReplyTimeout: cfg.Bot.Timeout,
	}
	if cfg.Bot.AutoReply {
		hubCfg.Replier = replier
	}

	hub := core.NewHub(st, hubCfg, logger)
	server := transporthttp.NewServer(hub, st, replier, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		return postgres.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func botConfig(cfg config.BotConfig) bot.Config {
	return bot.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxRetries:  1,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-hubDone
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)

		stopHub()
		<-hubDone
		a.cleanup()
		if err != nil {
			return err
		}
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
