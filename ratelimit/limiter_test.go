// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ratelimit

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/timer/mockable"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob   = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
)

func newTestLimiter(t *testing.T, limit uint64) (*Limiter, *mockable.Clock) {
	t.Helper()

	clock := &mockable.Clock{}
	clock.Set(time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC))
	return New(NewDBStore(memdb.New()), clock, limit), clock
}

func TestDay(t *testing.T) {
	require := require.New(t)

	require.Zero(Day(time.Unix(0, 0)))
	require.Zero(Day(time.Unix(SecondsPerDay-1, 0)))
	require.Equal(uint64(1), Day(time.Unix(SecondsPerDay, 0)))
	require.Zero(Day(time.Unix(-5, 0)))
	require.Equal(time.Unix(2*SecondsPerDay, 0).UTC(), DayStart(2))
}

func TestWouldExceed(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1_000)
	day := l.Today()

	require.NoError(t, l.Reserve(ctx, day, alice, 600))

	tests := []struct {
		name   string
		key    BucketKey
		amount uint64
		want   bool
	}{
		{
			name:   "global at limit",
			key:    GlobalKey(day),
			amount: 400,
			want:   false,
		},
		{
			name:   "global past limit",
			key:    GlobalKey(day),
			amount: 401,
			want:   true,
		},
		{
			name:   "user past limit",
			key:    UserKey(day, alice),
			amount: 401,
			want:   true,
		},
		{
			name:   "fresh user",
			key:    UserKey(day, bob),
			amount: 1_000,
			want:   false,
		},
		{
			name:   "next day is empty",
			key:    GlobalKey(day + 1),
			amount: 1_000,
			want:   false,
		},
		{
			name:   "overflow",
			key:    GlobalKey(day),
			amount: math.MaxUint64,
			want:   true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := l.WouldExceed(ctx, test.key, test.amount)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestReserveLimits(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l, _ := newTestLimiter(t, 1_000)

	require.NoError(l.Reserve(ctx, l.Today(), alice, 700))

	err := l.Reserve(ctx, l.Today(), bob, 400)
	require.ErrorIs(err, ErrLimitExceeded)
	require.ErrorIs(err, ErrGlobalLimitExceeded)

	// rejected reservations leave no trace
	info, err := l.Info(ctx)
	require.NoError(err)
	require.Equal(uint64(700), info.Used)
	require.Equal(uint64(300), info.Remaining)

	userInfo, err := l.UserInfo(ctx, bob)
	require.NoError(err)
	require.Zero(userInfo.Used)
}

// The per-user ceiling is the global daily limit.
func TestPerUserCeilingEqualsGlobalLimit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l, _ := newTestLimiter(t, 1_000)

	require.NoError(l.Reserve(ctx, l.Today(), alice, 1_000))

	info, err := l.UserInfo(ctx, alice)
	require.NoError(err)
	require.Equal(l.Limit(), info.Limit)
	require.Zero(info.Remaining)

	exceeds, err := l.WouldExceed(ctx, UserKey(l.Today(), alice), 1)
	require.NoError(err)
	require.True(exceeds)
}

func TestReleaseAndRollover(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l, clock := newTestLimiter(t, 1_000)

	day := l.Today()
	require.NoError(l.Reserve(ctx, day, alice, 1_000))

	clock.Set(clock.Time().Add(24 * time.Hour))
	require.NoError(l.Reserve(ctx, l.Today(), alice, 1_000))

	// releasing into the old bucket does not touch the new one
	require.NoError(l.Release(ctx, day, alice, 250))
	old, err := l.store.Volume(ctx, UserKey(day, alice))
	require.NoError(err)
	require.Equal(uint64(750), old)

	info, err := l.Info(ctx)
	require.NoError(err)
	require.Equal(uint64(1_000), info.Used)
	require.Equal(DayStart(l.Today()+1), info.ResetsAt)

	// releasing more than was booked saturates at zero
	require.NoError(l.Release(ctx, day, alice, 5_000))
	old, err = l.store.Volume(ctx, GlobalKey(day))
	require.NoError(err)
	require.Zero(old)
}

func TestPrune(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	l, clock := newTestLimiter(t, 1_000)
	first := l.Today()
	for i := 0; i < 3; i++ {
		require.NoError(l.Reserve(ctx, l.Today(), alice, 10))
		require.NoError(l.Reserve(ctx, l.Today(), bob, 10))
		clock.Set(clock.Time().Add(24 * time.Hour))
	}

	// two days, each with a global and two user buckets
	pruned, err := l.Prune(ctx, first+2)
	require.NoError(err)
	require.Equal(6, pruned)

	used, err := l.store.Volume(ctx, GlobalKey(first))
	require.NoError(err)
	require.Zero(used)
	used, err = l.store.Volume(ctx, GlobalKey(first+2))
	require.NoError(err)
	require.Equal(uint64(20), used)
}

func TestConcurrentReserveNeverExceedsLimit(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	const (
		limit   = 10_000
		amount  = 300
		callers = 64
	)
	l, _ := newTestLimiter(t, limit)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted uint64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var user common.Address
			user[0] = byte(i + 1)
			if err := l.Reserve(ctx, l.Today(), user, amount); err == nil {
				mu.Lock()
				accepted += amount
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	info, err := l.Info(ctx)
	require.NoError(err)
	require.LessOrEqual(info.Used, uint64(limit))
	require.Equal(accepted, info.Used)
	require.Equal(uint64(limit/amount*amount), accepted)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("BRIDGE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BRIDGE_TEST_REDIS_URL not set")
	}

	require := require.New(t)
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(err)
	client := redis.NewClient(opts)
	defer client.Close()

	prefix := "bridge:test:" + time.Now().Format("150405.000000")
	store := NewRedisStore(client, prefix, time.Minute)

	require.NoError(store.Reserve(ctx, 7, alice, 600, 1_000))
	err = store.Reserve(ctx, 7, bob, 401, 1_000)
	require.ErrorIs(err, ErrGlobalLimitExceeded)

	used, err := store.Volume(ctx, UserKey(7, alice))
	require.NoError(err)
	require.Equal(uint64(600), used)

	require.NoError(store.Release(ctx, 7, alice, 100))
	used, err = store.Volume(ctx, GlobalKey(7))
	require.NoError(err)
	require.Equal(uint64(500), used)

	pruned, err := store.Prune(ctx, 8)
	require.NoError(err)
	require.Equal(2, pruned)
}
