package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"

	"github.com/twitter/scd/scheduler/domain"
)

const (
	keyField  = "_key"
	timeField = "_time"

	DefaultRedisPrefix = "scd"
)

type redisHandle struct {
	name       string
	autocommit bool
	pipe       redis.Pipeliner
}

// redisStore keeps each record in a hash and lists the hashes of a category+key in
// insertion order. Each handle queues its writes in a MULTI/EXEC pipeline.
type redisStore struct {
	db     redis.UniversalClient
	prefix string
	seq    uint64

	mu      sync.Mutex
	handles map[Handle]*redisHandle
	nextH   Handle
}

func NewRedisStore(db redis.UniversalClient, prefix string) Store {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &redisStore{db: db, prefix: prefix, handles: map[Handle]*redisHandle{}}
}

func (r *redisStore) listKey(category, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, category, key)
}

func (r *redisStore) recordKey(category, key string) string {
	return fmt.Sprintf("%s:rec:%s:%s:%d", r.prefix, category, key, atomic.AddUint64(&r.seq, 1))
}

func (r *redisStore) handle(h Handle) (*redisHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rh, ok := r.handles[h]
	if !ok {
		return nil, errors.Wrapf(domain.ErrBadParameter, "unknown store handle %d", h)
	}
	return rh, nil
}

func (r *redisStore) Open(name string, props map[string]string) (Handle, error) {
	if err := r.db.Ping().Err(); err != nil {
		return 0, errors.Wrapf(domain.ErrTransport, "redis ping: %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextH++
	r.handles[r.nextH] = &redisHandle{
		name:       name,
		autocommit: props[PropAutocommit] == "true",
		pipe:       r.db.TxPipeline(),
	}
	return r.nextH, nil
}

func (r *redisStore) Close(h Handle) error {
	rh, err := r.handle(h)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.handles, h)
	r.mu.Unlock()
	return rh.pipe.Close()
}

func (r *redisStore) Store(h Handle, category string, rec Record) error {
	rh, err := r.handle(h)
	if err != nil {
		return err
	}
	fields := make(map[string]interface{}, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		fields[k] = v
	}
	fields[keyField] = rec.Key
	fields[timeField] = rec.Time.UTC().Format(time.RFC3339Nano)

	recKey := r.recordKey(category, rec.Key)
	rh.pipe.HMSet(recKey, fields)
	rh.pipe.RPush(r.listKey(category, rec.Key), recKey)
	if rh.autocommit {
		return r.Commit(h)
	}
	return nil
}

// Remove reads the record list outside the transaction, then queues deletion of the
// list and every hash it names.
func (r *redisStore) Remove(h Handle, category, key string) error {
	rh, err := r.handle(h)
	if err != nil {
		return err
	}
	list := r.listKey(category, key)
	recKeys, err := r.db.LRange(list, 0, -1).Result()
	if err != nil {
		return errors.Wrapf(domain.ErrTransport, "redis lrange %s: %v", list, err)
	}
	rh.pipe.Del(append(recKeys, list)...)
	if rh.autocommit {
		return r.Commit(h)
	}
	return nil
}

func (r *redisStore) Fetch(h Handle, category, key string) ([]Record, error) {
	if _, err := r.handle(h); err != nil {
		return nil, err
	}
	list := r.listKey(category, key)
	recKeys, err := r.db.LRange(list, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(domain.ErrTransport, "redis lrange %s: %v", list, err)
	}
	out := make([]Record, 0, len(recKeys))
	for _, recKey := range recKeys {
		fields, err := r.db.HGetAll(recKey).Result()
		if err != nil {
			return nil, errors.Wrapf(domain.ErrTransport, "redis hgetall %s: %v", recKey, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec := Record{Key: fields[keyField], Fields: map[string]string{}}
		rec.Time, _ = time.Parse(time.RFC3339Nano, fields[timeField])
		for k, v := range fields {
			if k != keyField && k != timeField {
				rec.Fields[k] = v
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *redisStore) Commit(h Handle) error {
	rh, err := r.handle(h)
	if err != nil {
		return err
	}
	if _, err := rh.pipe.Exec(); err != nil {
		return errors.Wrapf(domain.ErrTransport, "redis exec on %s: %v", rh.name, err)
	}
	return nil
}

func (r *redisStore) Rollback(h Handle) error {
	rh, err := r.handle(h)
	if err != nil {
		return err
	}
	return rh.pipe.Discard()
}
