package drivers

import (
	"github.com/creastat/feedback-assistant/session"
)

// StoreType represents the type of snapshot store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeFile   StoreType = "file"
	StoreTypeSQLite StoreType = "sqlite"
)

// NewStore creates a new session.Store based on the given type.
// Supports "memory", "redis", "file" and "sqlite" driver types.
// For Redis, requires WithRedisClient option.
// For file, requires WithDir option.
// For SQLite, requires WithSQLitePath option.
func NewStore(storeType StoreType, opts ...StoreOption) (session.Store, error) {
	config := &storeConfig{}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewInMemoryStore(), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, session.ErrInvalidConfig
		}
		return NewRedisStore(config.redisClient, config.redisTTL), nil

	case StoreTypeFile:
		if config.dir == "" {
			return nil, session.ErrInvalidConfig
		}
		return NewFileStore(config.dir)

	case StoreTypeSQLite:
		if config.sqlitePath == "" {
			return nil, session.ErrInvalidConfig
		}
		return NewSQLiteStore(config.sqlitePath)

	default:
		return nil, session.ErrInvalidStoreType
	}
}
