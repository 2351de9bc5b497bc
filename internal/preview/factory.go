package preview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

// NewStore creates the preview store configured by storeType.
// An empty storeType selects the in-memory store.
func NewStore(storeType, connectionString string, ttl time.Duration) (store Store, err error) {
	switch storeType {
	case "", TypeMemory:
		store = NewMemoryStore()
	case TypeSQLite:
		store, err = NewSQLiteStore(connectionString)
	case TypeRedis:
		store, err = NewRedisStore(connectionString, ttl)
	default:
		return nil, fmt.Errorf("unsupported preview store type: %s", storeType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s preview store: %w", storeType, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("preview store %s is not reachable: %w", storeType, err)
	}

	slog.Info("preview store initialized", "type", storeType)
	return store, nil
}

func newID() string {
	return uuid.NewString()
}
