// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long Redis keeps a bucket after its last write.
const DefaultRetention = 7 * 24 * time.Hour

const (
	reserveOK            = 0
	reserveGlobalExceeds = 1
	reserveUserExceeds   = 2
)

var _ Store = (*redisStore)(nil)

// Volumes are compared inside Lua, so they must stay below 2^53.
var reserveScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local global = tonumber(redis.call("GET", KEYS[1]) or "0")
if global + amount > limit then
  return 1
end
local user = tonumber(redis.call("GET", KEYS[2]) or "0")
if user + amount > limit then
  return 2
end
redis.call("INCRBY", KEYS[1], amount)
redis.call("INCRBY", KEYS[2], amount)
redis.call("PEXPIRE", KEYS[1], ARGV[3])
redis.call("PEXPIRE", KEYS[2], ARGV[3])
return 0
`)

var releaseScript = redis.NewScript(`
local amount = tonumber(ARGV[1])
for i = 1, 2 do
  local current = tonumber(redis.call("GET", KEYS[i]) or "0")
  if current > amount then
    redis.call("DECRBY", KEYS[i], amount)
  else
    redis.call("DEL", KEYS[i])
  end
end
return 0
`)

// redisStore shares counters between coordinator replicas.
type redisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisStore returns a Store that keeps counters in Redis under [prefix].
func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) Store {
	trimmedPrefix := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmedPrefix == "" {
		trimmedPrefix = "bridge:ratelimit"
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &redisStore{
		client:    client,
		prefix:    trimmedPrefix,
		retention: retention,
	}
}

func (s *redisStore) globalKey(day uint64) string {
	return fmt.Sprintf("%s:%d:global", s.prefix, day)
}

func (s *redisStore) userKey(day uint64, user common.Address) string {
	return fmt.Sprintf("%s:%d:user:%s", s.prefix, day, strings.ToLower(user.Hex()))
}

func (s *redisStore) Volume(ctx context.Context, key BucketKey) (uint64, error) {
	redisKey := s.globalKey(key.Day)
	if key.PerUser {
		redisKey = s.userKey(key.Day, key.User)
	}
	v, err := s.client.Get(ctx, redisKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (s *redisStore) Reserve(ctx context.Context, day uint64, user common.Address, amount, limit uint64) error {
	keys := []string{s.globalKey(day), s.userKey(day, user)}
	result, err := reserveScript.Run(ctx, s.client, keys, amount, limit, s.retention.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to reserve volume: %w", err)
	}
	switch result {
	case reserveOK:
		return nil
	case reserveGlobalExceeds:
		return fmt.Errorf("%w: %w", ErrLimitExceeded, ErrGlobalLimitExceeded)
	case reserveUserExceeds:
		return fmt.Errorf("%w: %w", ErrLimitExceeded, ErrUserLimitExceeded)
	default:
		return fmt.Errorf("unexpected redis limiter response: %d", result)
	}
}

func (s *redisStore) Release(ctx context.Context, day uint64, user common.Address, amount uint64) error {
	keys := []string{s.globalKey(day), s.userKey(day, user)}
	if err := releaseScript.Run(ctx, s.client, keys, amount).Err(); err != nil {
		return fmt.Errorf("failed to release volume: %w", err)
	}
	return nil
}

func (s *redisStore) Prune(ctx context.Context, beforeDay uint64) (int, error) {
	var stale []string
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		dayPart, _, ok := strings.Cut(strings.TrimPrefix(key, s.prefix+":"), ":")
		if !ok {
			continue
		}
		day, err := strconv.ParseUint(dayPart, 10, 64)
		if err != nil || day >= beforeDay {
			continue
		}
		stale = append(stale, key)
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.client.Del(ctx, stale...).Err(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
