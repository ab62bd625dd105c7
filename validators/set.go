// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validators maintains the set of addresses authorized to attest to
// cross-chain transfers, together with the quorum required to confirm one.
package validators

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
)

const (
	inactive byte = 0
	active   byte = 1

	// DefaultQuorum is used until an operator configures a threshold.
	DefaultQuorum = 1
)

var (
	ErrZeroAddress        = errors.New("validator address is zero")
	ErrValidatorExists    = errors.New("validator already active")
	ErrValidatorNotFound  = errors.New("validator not active")
	ErrInvalidQuorum      = errors.New("quorum must be at least 1")
	errCorruptQuorumValue = errors.New("corrupt quorum value")

	memberPrefix = []byte("member")
	metaPrefix   = []byte("meta")
	quorumKey    = []byte("quorum")
)

// Snapshot is an immutable view of the validator set. Signature verification
// works against a single snapshot so that membership and quorum are read
// together.
type Snapshot struct {
	Quorum  int
	members set.Set[common.Address]
}

// Contains reports whether [addr] was an active validator when the snapshot
// was taken.
func (s Snapshot) Contains(addr common.Address) bool {
	return s.members.Contains(addr)
}

// Len returns the number of active validators in the snapshot.
func (s Snapshot) Len() int {
	return s.members.Len()
}

// Set is the persistent validator registry. It is safe for concurrent use.
type Set struct {
	log log.Logger

	mu       sync.RWMutex
	memberDB database.Database
	metaDB   database.Database
	members  set.Set[common.Address]
	quorum   int
}

// New loads the validator set stored in [db].
func New(db database.Database, logger log.Logger) (*Set, error) {
	s := &Set{
		log:      logger,
		memberDB: prefixdb.New(memberPrefix, db),
		metaDB:   prefixdb.New(metaPrefix, db),
		members:  set.NewSet[common.Address](0),
		quorum:   DefaultQuorum,
	}

	iter := s.memberDB.NewIterator()
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if len(value) != 1 || value[0] != active {
			continue
		}
		s.members.Add(common.BytesToAddress(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to load validators: %w", err)
	}

	quorumBytes, err := s.metaDB.Get(quorumKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load quorum: %w", err)
	case len(quorumBytes) != 8:
		return nil, errCorruptQuorumValue
	default:
		s.quorum = int(binary.BigEndian.Uint64(quorumBytes))
	}
	return s, nil
}

// Add activates [addr]. A previously removed validator may be added again.
func (s *Set) Add(addr common.Address) error {
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members.Contains(addr) {
		return fmt.Errorf("%w: %s", ErrValidatorExists, addr)
	}
	if err := s.memberDB.Put(addr.Bytes(), []byte{active}); err != nil {
		return fmt.Errorf("failed to persist validator %s: %w", addr, err)
	}
	s.members.Add(addr)

	s.log.Info("validator added",
		log.Stringer("address", addr),
		log.Int("active", s.members.Len()),
	)
	return nil
}

// Remove deactivates [addr]. The entry is kept so the address history is
// preserved.
func (s *Set) Remove(addr common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.members.Contains(addr) {
		return fmt.Errorf("%w: %s", ErrValidatorNotFound, addr)
	}
	if err := s.memberDB.Put(addr.Bytes(), []byte{inactive}); err != nil {
		return fmt.Errorf("failed to persist validator %s: %w", addr, err)
	}
	s.members.Remove(addr)

	s.log.Info("validator removed",
		log.Stringer("address", addr),
		log.Int("active", s.members.Len()),
	)
	if s.members.Len() < s.quorum {
		s.log.Warn("active validators below quorum",
			log.Int("active", s.members.Len()),
			log.Int("quorum", s.quorum),
		)
	}
	return nil
}

// IsActive reports whether [addr] is currently an authorized signer.
func (s *Set) IsActive(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.members.Contains(addr)
}

// Quorum returns the number of distinct signatures required to confirm a
// transfer.
func (s *Set) Quorum() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quorum
}

// SetQuorum changes the confirmation threshold.
func (s *Set) SetQuorum(n int) error {
	if n < 1 {
		return ErrInvalidQuorum
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quorumBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(quorumBytes, uint64(n))
	if err := s.metaDB.Put(quorumKey, quorumBytes); err != nil {
		return fmt.Errorf("failed to persist quorum: %w", err)
	}

	s.log.Info("quorum updated",
		log.Int("old", s.quorum),
		log.Int("new", n),
	)
	s.quorum = n
	return nil
}

// List returns the active validators in byte order.
func (s *Set) List() []common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addrs := s.members.List()
	slices.SortFunc(addrs, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return addrs
}

// Snapshot returns a consistent copy of membership and quorum.
func (s *Set) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := set.NewSet[common.Address](s.members.Len())
	for addr := range s.members {
		members.Add(addr)
	}
	return Snapshot{
		Quorum:  s.quorum,
		members: members,
	}
}
