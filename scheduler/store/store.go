// Package store persists scheduler records: session transitions and emitted
// events. Writes go through a handle and only become visible on Commit.
package store

//go:generate mockgen -source=store.go -package=store -destination=store_mock.go

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// Handle identifies an open store session. Handles are not shared between
// goroutines.
type Handle int64

// Record is one stored entry. Several records may share a category and key; Fetch
// returns them in the order they were stored.
type Record struct {
	Key    string
	Time   time.Time
	Fields map[string]string
}

const (
	CategorySession = "SESSION"
	CategoryEvent   = "RAS-EVENT"

	// Open property: commit after every Store.
	PropAutocommit = "autocommit"
)

// Store is the persistence contract. Implementations must be safe for concurrent
// use through distinct handles.
type Store interface {
	Open(name string, props map[string]string) (Handle, error)
	Close(h Handle) error
	Store(h Handle, category string, rec Record) error
	Fetch(h Handle, category, key string) ([]Record, error)
	Remove(h Handle, category, key string) error
	Commit(h Handle) error
	Rollback(h Handle) error
}

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Config selects and parameterizes a backend.
type Config struct {
	Type   string
	Addr   string // redis only
	Prefix string // redis only
}

func (c Config) String() string {
	return fmt.Sprintf("type:%s, addr:%s, prefix:%s", c.Type, c.Addr, c.Prefix)
}

// New builds the backend named by cfg.Type. An empty type means memory.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return NewMemStore()
	case TypeRedis:
		if cfg.Addr == "" {
			return nil, fmt.Errorf("redis store requires an address")
		}
		return NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.Addr}), cfg.Prefix), nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}
