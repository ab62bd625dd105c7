// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger defines the token ledger the bridge burns from and mints to.
package ledger

import (
	"context"
	"errors"

	"github.com/luxfi/geth/common"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the token contract of one chain as seen by the bridge.
// Implementations must make Burn fail without side effects when the account
// cannot cover [amount]. [memo] identifies the operation for auditing.
type Ledger interface {
	Burn(ctx context.Context, account common.Address, amount uint64, memo string) error
	Mint(ctx context.Context, account common.Address, amount uint64, memo string) error
	BalanceOf(ctx context.Context, account common.Address) (uint64, error)
}
