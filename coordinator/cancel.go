// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"context"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/bridge/events"
	"github.com/luxfi/bridge/transfers"
)

const opCancel = "cancel"

// Cancel aborts a pending transfer. The owner may cancel at any time, anyone
// else only once the transfer timeout has passed. Cancellation is allowed
// while the bridge is paused.
//
// Transfers that originated on the local chain are refunded amount plus fee
// and their volume is returned to the daily buckets. Transfers that
// originated on the remote chain burned funds there, so nothing is refunded
// here.
func (c *Coordinator) Cancel(ctx context.Context, caller common.Address, transferID ids.ID, reason string) error {
	unlock := c.locks.Lock(transferID)
	defer unlock()

	transfer, err := c.registry.Get(transferID)
	if err != nil {
		return c.reject(opCancel, err)
	}
	if transfer.Status != transfers.Pending {
		return c.reject(opCancel, fmt.Errorf("%w: %s is %s", ErrTransferNotPending, transferID, transfer.Status))
	}

	now := c.clock.Time()
	expired := now.After(transfer.Created().Add(c.config.TransferTimeout))
	if caller != c.config.Owner && !expired {
		return c.reject(opCancel, fmt.Errorf("%w: %s may not cancel %s before %s",
			ErrUnauthorized, caller, transferID, transfer.Created().Add(c.config.TransferTimeout)))
	}

	transfer.Status = transfers.Cancelled
	transfer.CancelReason = reason
	transfer.UpdatedAt = now.Unix()
	if err := c.registry.Update(transfer); err != nil {
		return err
	}
	c.updatePending()

	refund := transfer.SourceChain == c.config.LocalChain
	event := newEvent(events.TransferCancelled, transfer)
	event.Reason = reason

	if refund {
		total := transfer.Amount + transfer.Fee
		memo := "bridge:refund:" + transferID.String()
		if err := c.ledger.Mint(ctx, transfer.From, total, memo); err != nil {
			c.metrics.RefundFailed()
			c.metrics.Cancelled(false)
			c.log.Error("transfer cancelled but refund failed",
				log.Stringer("transferID", transferID),
				log.Stringer("account", transfer.From),
				log.Uint64("amount", total),
				log.Err(err),
			)
			c.publish(ctx, event)
			return fmt.Errorf("%w: %w", ErrRefundFailed, err)
		}
		c.releaseReservation(ctx, transfer)
		event.Refunded = true
	}

	c.metrics.Cancelled(refund)
	c.log.Info("transfer cancelled",
		log.Stringer("transferID", transferID),
		log.Stringer("caller", caller),
		log.String("reason", reason),
		log.String("sourceChain", transfer.SourceChain),
		log.Bool("refunded", refund),
	)
	c.publish(ctx, event)
	return nil
}
