// Package redisstore provides a Redis-backed implementation of
// docstore.Store. Each document is a hash holding the body, the version
// tag and the last write time. Conditional writes use WATCH/MULTI so the
// version check and the replace are one optimistic transaction on the
// server side.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jcmexdev/order-desk/internal/docstore"
)

const (
	fieldBody      = "body"
	fieldVersion   = "version"
	fieldUpdatedAt = "updated_at"
)

type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New wraps an existing client. prefix namespaces every key, so several
// deployments can share one Redis.
func New(client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Dial connects to a single Redis node at addr.
func Dial(addr, prefix string) *Store {
	return New(redis.NewClient(&redis.Options{Addr: addr}), prefix)
}

// Ping checks the connection; used at startup to fail fast.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisstore: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// DocumentKey builds the Redis key for a document, e.g. "order-desk:data:orders".
func (s *Store) DocumentKey(collection, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, collection, key)
}

func (s *Store) Get(ctx context.Context, collection, key string) (docstore.Document, error) {
	fields, err := s.client.HGetAll(ctx, s.DocumentKey(collection, key)).Result()
	if err != nil {
		return docstore.Document{}, fmt.Errorf("redisstore: get %s/%s: %w", collection, key, err)
	}
	if len(fields) == 0 {
		return docstore.Document{}, nil
	}

	doc := docstore.Document{
		Data:    []byte(fields[fieldBody]),
		Version: docstore.Version(fields[fieldVersion]),
	}
	if ts := fields[fieldUpdatedAt]; ts != "" {
		doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return docstore.Document{}, fmt.Errorf("redisstore: parse time %q: %w", ts, err)
		}
	}
	return doc, nil
}

func (s *Store) Put(ctx context.Context, collection, key string, data []byte, expected docstore.Version) (docstore.Version, error) {
	k := s.DocumentKey(collection, key)
	next := docstore.NewVersion()
	values := s.fields(data, next)

	if expected == docstore.NoVersion {
		if err := s.client.HSet(ctx, k, values...).Err(); err != nil {
			return docstore.NoVersion, fmt.Errorf("redisstore: put %s/%s: %w", collection, key, err)
		}
		return next, nil
	}

	err := s.compareAndSet(ctx, k, values, func(current string) bool {
		return docstore.Version(current) == expected
	})
	if err != nil {
		return docstore.NoVersion, s.wrap("put", collection, key, err)
	}
	return next, nil
}

func (s *Store) Create(ctx context.Context, collection, key string, data []byte) (docstore.Version, error) {
	next := docstore.NewVersion()
	values := s.fields(data, next)

	err := s.compareAndSet(ctx, s.DocumentKey(collection, key), values, func(current string) bool {
		return current == ""
	})
	if err != nil {
		return docstore.NoVersion, s.wrap("create", collection, key, err)
	}
	return next, nil
}

func (s *Store) fields(data []byte, v docstore.Version) []any {
	return []any{
		fieldBody, data,
		fieldVersion, string(v),
		fieldUpdatedAt, s.now().UTC().Format(time.RFC3339Nano),
	}
}

// compareAndSet replaces the hash at k with values if ok accepts the
// version currently stored there ("" when k does not exist).
func (s *Store) compareAndSet(ctx context.Context, k string, values []any, ok func(current string) bool) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldVersion).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !ok(current) {
			return docstore.ErrVersionConflict
		}

		// EXEC aborts if k changed after WATCH.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, values...)
			return nil
		})
		return err
	}
	return s.client.Watch(ctx, txf, k)
}

func (s *Store) wrap(op, collection, key string, err error) error {
	if errors.Is(err, docstore.ErrVersionConflict) || errors.Is(err, redis.TxFailedErr) {
		return docstore.ErrVersionConflict
	}
	return fmt.Errorf("redisstore: %s %s/%s: %w", op, collection, key, err)
}
