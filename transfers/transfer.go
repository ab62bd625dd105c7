// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transfers

import (
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Transfer is the record of one cross-chain movement of funds.
type Transfer struct {
	ID          ids.ID         `serialize:"true" json:"id"`
	From        common.Address `serialize:"true" json:"from"`
	To          common.Address `serialize:"true" json:"to"`
	Amount      uint64         `serialize:"true" json:"amount"`
	Fee         uint64         `serialize:"true" json:"fee"`
	SourceChain string         `serialize:"true" json:"sourceChain"`
	TargetChain string         `serialize:"true" json:"targetChain"`
	Status      Status         `serialize:"true" json:"status"`
	CreatedAt   int64          `serialize:"true" json:"createdAt"`
	UpdatedAt   int64          `serialize:"true" json:"updatedAt"`
	// Sequence is the per-registry counter value mixed into ID.
	Sequence         uint64      `serialize:"true" json:"sequence"`
	ConfirmationHash common.Hash `serialize:"true" json:"confirmationHash"`
	// Processed is set exactly once, when funds are minted on the target.
	Processed    bool   `serialize:"true" json:"processed"`
	CancelReason string `serialize:"true" json:"cancelReason,omitempty"`
}

// Created returns the creation time.
func (t *Transfer) Created() time.Time {
	return time.Unix(t.CreatedAt, 0)
}

// Copy returns a deep copy of t.
func (t *Transfer) Copy() *Transfer {
	c := *t
	return &c
}

// Stats are the aggregate counters of the registry. Transfers in the
// Processing state are counted as pending.
type Stats struct {
	TotalTransfers uint64 `serialize:"true" json:"totalTransfers"`
	TotalVolume    uint64 `serialize:"true" json:"totalVolume"`
	PendingCount   uint64 `serialize:"true" json:"pendingCount"`
	CompletedCount uint64 `serialize:"true" json:"completedCount"`
	CancelledCount uint64 `serialize:"true" json:"cancelledCount"`
}
