// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"

	safemath "github.com/luxfi/math"
)

var (
	_ Ledger = (*State)(nil)

	ErrStateCorrupted = errors.New("state corrupted")
)

// State is a Ledger kept in a local database, with balances cached in
// memory. It backs the standalone daemon and tests.
type State struct {
	log log.Logger

	mu       sync.RWMutex
	db       database.Database
	balances map[common.Address]uint64
}

// New creates a new state manager.
func New(db database.Database, logger log.Logger) *State {
	return &State{
		log:      logger,
		db:       db,
		balances: make(map[common.Address]uint64),
	}
}

// BalanceOf returns the balance of [account].
func (s *State) BalanceOf(_ context.Context, account common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(account)
}

// Burn removes [amount] from [account].
func (s *State) Burn(_ context.Context, account common.Address, amount uint64, memo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.getLocked(account)
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientBalance, account, balance, amount)
	}
	if err := s.putLocked(account, balance-amount); err != nil {
		return err
	}

	s.log.Debug("burned",
		log.Stringer("account", account),
		log.Uint64("amount", amount),
		log.String("memo", memo),
	)
	return nil
}

// Mint adds [amount] to [account].
func (s *State) Mint(_ context.Context, account common.Address, amount uint64, memo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.getLocked(account)
	if err != nil {
		return err
	}
	newBalance, err := safemath.Add64(balance, amount)
	if err != nil {
		return fmt.Errorf("mint to %s: %w", account, err)
	}
	if err := s.putLocked(account, newBalance); err != nil {
		return err
	}

	s.log.Debug("minted",
		log.Stringer("account", account),
		log.Uint64("amount", amount),
		log.String("memo", memo),
	)
	return nil
}

func (s *State) getLocked(account common.Address) (uint64, error) {
	if balance, ok := s.balances[account]; ok {
		return balance, nil
	}

	data, err := s.db.Get(account[:])
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load balance of %s: %w", account, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: balance of %s", ErrStateCorrupted, account)
	}

	balance := binary.BigEndian.Uint64(data)
	s.balances[account] = balance
	return balance, nil
}

func (s *State) putLocked(account common.Address, balance uint64) error {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, balance)
	if err := s.db.Put(account[:], data); err != nil {
		return fmt.Errorf("failed to store balance of %s: %w", account, err)
	}
	s.balances[account] = balance
	return nil
}
