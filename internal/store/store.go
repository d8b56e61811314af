// Package store is the key-value persistence port used for saved carts.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/iurnickita/posmart/internal/store/config"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

var (
	ErrNotFound      = errors.New("key not found")
	ErrUnknownDriver = errors.New("unknown store driver")
)

func NewStore(cfg config.Config) (Store, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverRedis:
		return NewRedisStore(cfg)
	case config.DriverPostgres:
		return newSQLStore("pgx", cfg.DBDsn)
	case config.DriverSQLite:
		return newSQLStore("sqlite3", cfg.DBDsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
