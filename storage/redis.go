package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"agentcore/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps agent records in Redis so several processes share them.
// Records live at "<prefix>:<id>"; the id set lives at "<prefix>:index".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix (default "agent").
func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = p
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "agent"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) indexKey() string { return s.prefix + ":index" }

func (s *RedisStore) Put(ctx context.Context, st model.AgentState) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(st.Definition.ID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), st.Definition.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save agent %s: %w", st.Definition.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (model.AgentState, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.AgentState{}, false, nil
	}
	if err != nil {
		return model.AgentState{}, false, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	st, err := decodeState(data)
	if err != nil {
		return model.AgentState{}, false, err
	}
	return st, true, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
