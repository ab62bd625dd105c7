// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ratelimit bounds the volume that may cross the bridge per UTC day,
// both in aggregate and per sending account.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/timer/mockable"

	safemath "github.com/luxfi/math"
)

// SecondsPerDay is the width of a volume bucket.
const SecondsPerDay = 86_400

var (
	ErrLimitExceeded       = errors.New("daily limit exceeded")
	ErrGlobalLimitExceeded = errors.New("global daily limit exceeded")
	ErrUserLimitExceeded   = errors.New("user daily limit exceeded")
)

// Day returns the bucket index of [t].
func Day(t time.Time) uint64 {
	return uint64(max(t.Unix(), 0)) / SecondsPerDay
}

// DayStart returns the first instant of bucket [day].
func DayStart(day uint64) time.Time {
	return time.Unix(int64(day*SecondsPerDay), 0).UTC()
}

// BucketKey addresses one volume counter. When PerUser is false the key
// refers to the global counter of Day and User is ignored.
type BucketKey struct {
	Day     uint64
	User    common.Address
	PerUser bool
}

func GlobalKey(day uint64) BucketKey {
	return BucketKey{Day: day}
}

func UserKey(day uint64, user common.Address) BucketKey {
	return BucketKey{Day: day, User: user, PerUser: true}
}

// Store holds the volume counters.
//
// Reserve must check both the global and the user counter against limit and
// add amount to both as a single atomic step.
type Store interface {
	Volume(ctx context.Context, key BucketKey) (uint64, error)
	Reserve(ctx context.Context, day uint64, user common.Address, amount, limit uint64) error
	Release(ctx context.Context, day uint64, user common.Address, amount uint64) error
	Prune(ctx context.Context, beforeDay uint64) (int, error)
}

// Info describes the state of one bucket.
type Info struct {
	Day       uint64    `json:"day"`
	Limit     uint64    `json:"limit"`
	Used      uint64    `json:"used"`
	Remaining uint64    `json:"remaining"`
	ResetsAt  time.Time `json:"resetsAt"`
}

// Limiter applies a daily ceiling to a Store. The same ceiling is used for
// the global and the per-user buckets.
type Limiter struct {
	store Store
	clock *mockable.Clock

	lock  sync.RWMutex
	limit uint64
}

func New(store Store, clock *mockable.Clock, limit uint64) *Limiter {
	return &Limiter{
		store: store,
		clock: clock,
		limit: limit,
	}
}

func (l *Limiter) Limit() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.limit
}

func (l *Limiter) SetLimit(limit uint64) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.limit = limit
}

// Today returns the current bucket index.
func (l *Limiter) Today() uint64 {
	return Day(l.clock.Time())
}

// Volume returns the amount booked in the bucket at [key].
func (l *Limiter) Volume(ctx context.Context, key BucketKey) (uint64, error) {
	return l.store.Volume(ctx, key)
}

// WouldExceed reports whether adding [amount] to the bucket at [key] would
// push it past the daily limit.
func (l *Limiter) WouldExceed(ctx context.Context, key BucketKey, amount uint64) (bool, error) {
	used, err := l.store.Volume(ctx, key)
	if err != nil {
		return false, err
	}
	total, err := safemath.Add64(used, amount)
	if err != nil {
		return true, nil
	}
	return total > l.Limit(), nil
}

// Reserve books [amount] against the global and [user] buckets of [day].
func (l *Limiter) Reserve(ctx context.Context, day uint64, user common.Address, amount uint64) error {
	return l.store.Reserve(ctx, day, user, amount, l.Limit())
}

// Release returns a reservation made on [day].
func (l *Limiter) Release(ctx context.Context, day uint64, user common.Address, amount uint64) error {
	return l.store.Release(ctx, day, user, amount)
}

// Info returns today's global bucket.
func (l *Limiter) Info(ctx context.Context) (Info, error) {
	return l.info(ctx, GlobalKey(l.Today()))
}

// UserInfo returns today's bucket for [user].
func (l *Limiter) UserInfo(ctx context.Context, user common.Address) (Info, error) {
	return l.info(ctx, UserKey(l.Today(), user))
}

// Prune drops every bucket older than [beforeDay].
func (l *Limiter) Prune(ctx context.Context, beforeDay uint64) (int, error) {
	return l.store.Prune(ctx, beforeDay)
}

func (l *Limiter) info(ctx context.Context, key BucketKey) (Info, error) {
	used, err := l.store.Volume(ctx, key)
	if err != nil {
		return Info{}, err
	}
	limit := l.Limit()
	var remaining uint64
	if used < limit {
		remaining = limit - used
	}
	return Info{
		Day:       key.Day,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  DayStart(key.Day + 1),
	}, nil
}
