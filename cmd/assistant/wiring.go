package main

import (
	"context"
	"errors"
	"fmt"

	errbuilder "github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/creastat/feedback-assistant/config"
	"github.com/creastat/feedback-assistant/conversation"
	"github.com/creastat/feedback-assistant/session"
	"github.com/creastat/feedback-assistant/session/drivers"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/creastat/feedback-assistant/view"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// openStore builds the snapshot store selected by session.driver.
func openStore(cfg *config.Config) (session.Store, error) {
	storeType := drivers.StoreType(cfg.Session.Driver)

	var opts []drivers.StoreOption
	switch storeType {
	case drivers.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, drivers.WithRedisClient(client), drivers.WithRedisTTL(cfg.Session.TTL))
	case drivers.StoreTypeFile:
		opts = append(opts, drivers.WithDir(cfg.Session.Dir))
	case drivers.StoreTypeSQLite:
		opts = append(opts, drivers.WithSQLitePath(cfg.Session.SQLitePath))
	}

	store, err := drivers.NewStore(storeType, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s session store: %w", storeType, err)
	}
	return store, nil
}

func newClient(cfg *config.Config, logger *zap.Logger) (*transport.Client, error) {
	return transport.New(cfg.Server.BaseURL,
		transport.WithTimeout(cfg.Server.Timeout),
		transport.WithLogger(logger.Named("transport")))
}

// sessionID returns the configured session id, or a new one when none is set.
func sessionID(cfg *config.Config) (string, error) {
	if cfg.Session.ID == "" {
		return uuid.NewString(), nil
	}
	return parseSessionID(cfg.Session.ID)
}

// parseSessionID accepts only UUIDs, which are safe to use as store keys and paths.
func parseSessionID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("invalid session id %q", id)).
			WithCause(err)
	}
	return u.String(), nil
}

// chatSession ties one conversation to its store and the query service.
type chatSession struct {
	store   session.Store
	history *session.History
	ctrl    *conversation.Controller
}

func startSession(ctx context.Context, cfg *config.Config, logger *zap.Logger, docsOnly bool) (*chatSession, error) {
	id, err := sessionID(cfg)
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	history := session.NewHistory(id, store,
		session.WithLogger(logger.Named("session")),
		session.WithIOTimeout(cfg.Session.IOTimeout))
	history.Initialize(ctx)

	ctrl := conversation.New(history, client,
		conversation.WithLogger(logger.Named("conversation")),
		conversation.WithTimeout(cfg.Query.Timeout),
		conversation.WithSourceFilter(view.FilterFor(docsOnly)))

	logger.Debug("session started",
		zap.String("session_id", id),
		zap.String("driver", cfg.Session.Driver),
		zap.Int("messages", len(history.Messages())))

	return &chatSession{store: store, history: history, ctrl: ctrl}, nil
}

func (s *chatSession) ID() string {
	return s.history.ID()
}

// Close cancels any in-flight query, flushes the log and releases the store.
func (s *chatSession) Close() error {
	return errors.Join(s.ctrl.Close(), s.history.Close(), s.store.Close())
}
