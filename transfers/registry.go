// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transfers stores transfer records, the per-account transfer index
// and the aggregate statistics of the bridge.
package transfers

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/math"
)

// DefaultCacheSize is the number of decoded transfers kept in memory.
const DefaultCacheSize = 4096

var (
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrTransferExists    = errors.New("transfer already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrImmutableField    = errors.New("immutable transfer field changed")
	ErrAlreadyProcessed  = errors.New("transfer already processed")

	transferPrefix = []byte("transfer")
	userPrefix     = []byte("user")
	metaPrefix     = []byte("meta")

	statsKey    = []byte("stats")
	sequenceKey = []byte("sequence")
)

// Registry is the persistent transfer store. It is safe for concurrent use;
// callers serialize writers of the same transfer themselves.
type Registry struct {
	log log.Logger

	lock       sync.RWMutex
	db         *versiondb.Database
	transferDB database.Database
	userDB     database.Database
	metaDB     database.Database
	cache      *lru.Cache

	stats    Stats
	sequence uint64
}

// New opens the registry stored in [db].
func New(db database.Database, logger log.Logger, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	vdb := versiondb.New(db)
	r := &Registry{
		log:        logger,
		db:         vdb,
		transferDB: prefixdb.New(transferPrefix, vdb),
		userDB:     prefixdb.New(userPrefix, vdb),
		metaDB:     prefixdb.New(metaPrefix, vdb),
		cache:      cache,
	}

	statsBytes, err := r.metaDB.Get(statsKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load stats: %w", err)
	default:
		if _, err := Codec.Unmarshal(statsBytes, &r.stats); err != nil {
			return nil, fmt.Errorf("failed to parse stats: %w", err)
		}
	}

	seqBytes, err := r.metaDB.Get(sequenceKey)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("failed to load sequence: %w", err)
	case len(seqBytes) != 8:
		return nil, fmt.Errorf("failed to parse sequence: expected 8 bytes, got %d", len(seqBytes))
	default:
		r.sequence = binary.BigEndian.Uint64(seqBytes)
	}
	return r, nil
}

// NextSequence reserves and persists the next sequence number.
func (r *Registry) NextSequence() (uint64, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	next := r.sequence + 1
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, next)
	if err := r.metaDB.Put(sequenceKey, seqBytes); err != nil {
		r.db.Abort()
		return 0, fmt.Errorf("failed to persist sequence: %w", err)
	}
	if err := r.db.Commit(); err != nil {
		r.db.Abort()
		return 0, fmt.Errorf("failed to persist sequence: %w", err)
	}
	r.sequence = next
	return next, nil
}

// Create stores a new pending transfer and indexes it under its sender.
func (r *Registry) Create(t *Transfer) error {
	if t.Status != Pending {
		return fmt.Errorf("%w: new transfer must be %s, got %s", ErrInvalidTransition, Pending, t.Status)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	has, err := r.transferDB.Has(t.ID[:])
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("%w: %s", ErrTransferExists, t.ID)
	}

	stats := r.stats
	stats.TotalTransfers++
	stats.PendingCount++

	err = errors.Join(
		r.putTransfer(t),
		r.userDB.Put(userIndexKey(t.From, t.Sequence), t.ID[:]),
		r.putStats(stats),
	)
	if err == nil {
		err = r.db.Commit()
	}
	if err != nil {
		r.db.Abort()
		return fmt.Errorf("failed to write transfer %s: %w", t.ID, err)
	}

	r.stats = stats
	r.cache.Add(t.ID, t.Copy())
	return nil
}

// Get returns a copy of the transfer with [id].
func (r *Registry) Get(id ids.ID) (*Transfer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	t, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return t.Copy(), nil
}

// Update persists a status change of an existing transfer. Only the status,
// the confirmation data, the cancel reason and the update time may change.
func (r *Registry) Update(t *Transfer) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	old, err := r.get(t.ID)
	if err != nil {
		return err
	}
	if err := checkUpdate(old, t); err != nil {
		return err
	}

	stats := r.stats
	switch t.Status {
	case Completed:
		stats.PendingCount--
		stats.CompletedCount++
		stats.TotalVolume, err = safemath.Add64(stats.TotalVolume, t.Amount)
		if err != nil {
			return fmt.Errorf("total volume: %w", err)
		}
	case Cancelled:
		stats.PendingCount--
		stats.CancelledCount++
	}

	err = errors.Join(
		r.putTransfer(t),
		r.putStats(stats),
	)
	if err == nil {
		err = r.db.Commit()
	}
	if err != nil {
		r.db.Abort()
		return fmt.Errorf("failed to update transfer %s: %w", t.ID, err)
	}

	r.stats = stats
	r.cache.Add(t.ID, t.Copy())

	r.log.Debug("transfer status changed",
		log.Stringer("transferID", t.ID),
		log.Stringer("from", old.Status),
		log.Stringer("to", t.Status),
	)
	return nil
}

// UserTransfers returns the ids of every transfer sent by [addr], oldest
// first.
func (r *Registry) UserTransfers(addr common.Address) ([]ids.ID, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	iter := r.userDB.NewIteratorWithPrefix(addr[:])
	defer iter.Release()

	var result []ids.ID
	for iter.Next() {
		id, err := ids.ToID(iter.Value())
		if err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	return result, iter.Error()
}

// Stats returns the aggregate counters.
func (r *Registry) Stats() Stats {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.stats
}

func (r *Registry) get(id ids.ID) (*Transfer, error) {
	if cached, ok := r.cache.Get(id); ok {
		return cached.(*Transfer), nil
	}

	b, err := r.transferDB.Get(id[:])
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	t := &Transfer{}
	if _, err := Codec.Unmarshal(b, t); err != nil {
		return nil, fmt.Errorf("failed to parse transfer %s: %w", id, err)
	}
	r.cache.Add(id, t)
	return t, nil
}

func (r *Registry) putTransfer(t *Transfer) error {
	b, err := Codec.Marshal(CodecVersion, t)
	if err != nil {
		return fmt.Errorf("failed to marshal transfer %s: %w", t.ID, err)
	}
	return r.transferDB.Put(t.ID[:], b)
}

func (r *Registry) putStats(stats Stats) error {
	b, err := Codec.Marshal(CodecVersion, &stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	return r.metaDB.Put(statsKey, b)
}

func checkUpdate(old, next *Transfer) error {
	if old.From != next.From ||
		old.To != next.To ||
		old.Amount != next.Amount ||
		old.Fee != next.Fee ||
		old.SourceChain != next.SourceChain ||
		old.TargetChain != next.TargetChain ||
		old.CreatedAt != next.CreatedAt ||
		old.Sequence != next.Sequence {
		return fmt.Errorf("%w: %s", ErrImmutableField, next.ID)
	}
	if !old.Status.CanTransitionTo(next.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Status, next.Status)
	}
	if old.Processed {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, next.ID)
	}
	if next.Processed != (next.Status == Completed) {
		return fmt.Errorf("%w: processed flag must be set only on completion", ErrInvalidTransition)
	}
	return nil
}

func userIndexKey(addr common.Address, sequence uint64) []byte {
	key := make([]byte, common.AddressLength+8)
	copy(key, addr[:])
	binary.BigEndian.PutUint64(key[common.AddressLength:], sequence)
	return key
}
