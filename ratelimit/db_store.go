// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ratelimit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"

	safemath "github.com/luxfi/math"
)

var (
	_ Store = (*dbStore)(nil)

	errCorruptVolume = errors.New("corrupt volume value")
)

// dbStore keeps counters under day (8 bytes) for the global bucket and
// day ‖ address for user buckets. All writes are serialized by a mutex.
type dbStore struct {
	lock sync.Mutex
	db   database.Database
}

// NewDBStore returns a Store backed by [db].
func NewDBStore(db database.Database) Store {
	return &dbStore{db: db}
}

func bucketKey(day uint64, user *common.Address) []byte {
	size := 8
	if user != nil {
		size += common.AddressLength
	}
	key := make([]byte, size)
	binary.BigEndian.PutUint64(key, day)
	if user != nil {
		copy(key[8:], user[:])
	}
	return key
}

func (s *dbStore) Volume(_ context.Context, key BucketKey) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if key.PerUser {
		return s.get(bucketKey(key.Day, &key.User))
	}
	return s.get(bucketKey(key.Day, nil))
}

func (s *dbStore) Reserve(_ context.Context, day uint64, user common.Address, amount, limit uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	globalKey := bucketKey(day, nil)
	userKey := bucketKey(day, &user)

	global, err := s.get(globalKey)
	if err != nil {
		return err
	}
	newGlobal, err := safemath.Add64(global, amount)
	if err != nil || newGlobal > limit {
		return fmt.Errorf("%w: %w", ErrLimitExceeded, ErrGlobalLimitExceeded)
	}

	used, err := s.get(userKey)
	if err != nil {
		return err
	}
	newUsed, err := safemath.Add64(used, amount)
	if err != nil || newUsed > limit {
		return fmt.Errorf("%w: %w", ErrLimitExceeded, ErrUserLimitExceeded)
	}

	batch := s.db.NewBatch()
	if err := batch.Put(globalKey, encodeVolume(newGlobal)); err != nil {
		return err
	}
	if err := batch.Put(userKey, encodeVolume(newUsed)); err != nil {
		return err
	}
	return batch.Write()
}

func (s *dbStore) Release(_ context.Context, day uint64, user common.Address, amount uint64) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	batch := s.db.NewBatch()
	for _, key := range [][]byte{bucketKey(day, nil), bucketKey(day, &user)} {
		used, err := s.get(key)
		if err != nil {
			return err
		}
		if used > amount {
			used -= amount
		} else {
			used = 0
		}
		if err := batch.Put(key, encodeVolume(used)); err != nil {
			return err
		}
	}
	return batch.Write()
}

func (s *dbStore) Prune(_ context.Context, beforeDay uint64) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var stale [][]byte
	iter := s.db.NewIterator()
	for iter.Next() {
		key := iter.Key()
		if len(key) < 8 || binary.BigEndian.Uint64(key) >= beforeDay {
			break
		}
		stale = append(stale, slices.Clone(key))
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return 0, err
	}

	batch := s.db.NewBatch()
	for _, key := range stale {
		if err := batch.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(stale), batch.Write()
}

func (s *dbStore) get(key []byte) (uint64, error) {
	value, err := s.db.Get(key)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, errCorruptVolume
	}
	return binary.BigEndian.Uint64(value), nil
}

func encodeVolume(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
