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

const opConfirm = "confirm"

// Confirm completes a pending transfer once [signatures] from a quorum of
// distinct active validators attest to [confirmationHash]. The recipient is
// minted the transfer amount exactly once.
func (c *Coordinator) Confirm(
	ctx context.Context,
	transferID ids.ID,
	confirmationHash common.Hash,
	signatures [][]byte,
) error {
	if c.Params().Paused {
		return c.reject(opConfirm, ErrPaused)
	}

	unlock := c.locks.Lock(transferID)
	defer unlock()

	transfer, err := c.registry.Get(transferID)
	if err != nil {
		return c.reject(opConfirm, err)
	}
	if transfer.Status != transfers.Pending || transfer.Processed {
		return c.reject(opConfirm, fmt.Errorf("%w: %s is %s", ErrTransferNotPending, transferID, transfer.Status))
	}

	signers, err := c.verifier.Verify(ctx, transferID, confirmationHash, signatures)
	if err != nil {
		return c.reject(opConfirm, err)
	}

	transfer.Status = transfers.Processing
	transfer.UpdatedAt = c.clock.Time().Unix()
	if err := c.registry.Update(transfer); err != nil {
		return err
	}

	memo := "bridge:mint:" + transferID.String()
	if err := c.ledger.Mint(ctx, transfer.To, transfer.Amount, memo); err != nil {
		c.log.Error("mint failed, returning transfer to pending",
			log.Stringer("transferID", transferID),
			log.Err(err),
		)
		transfer.Status = transfers.Pending
		transfer.UpdatedAt = c.clock.Time().Unix()
		if rollbackErr := c.registry.Update(transfer); rollbackErr != nil {
			// The transfer stays in processing and can be neither confirmed
			// nor cancelled until an operator intervenes.
			c.log.Error("failed to roll back transfer",
				log.Stringer("transferID", transferID),
				log.Err(rollbackErr),
			)
		}
		return fmt.Errorf("mint failed: %w", err)
	}

	transfer.Status = transfers.Completed
	transfer.Processed = true
	transfer.ConfirmationHash = confirmationHash
	transfer.UpdatedAt = c.clock.Time().Unix()
	if err := c.registry.Update(transfer); err != nil {
		c.log.Error("minted but failed to record completion",
			log.Stringer("transferID", transferID),
			log.Err(err),
		)
		return err
	}

	c.metrics.Completed(transfer.Amount)
	c.updatePending()
	c.log.Info("transfer completed",
		log.Stringer("transferID", transferID),
		log.Stringer("to", transfer.To),
		log.Uint64("amount", transfer.Amount),
		log.Stringer("confirmationHash", confirmationHash),
		log.Int("signers", len(signers)),
	)

	event := newEvent(events.TransferCompleted, transfer)
	event.ConfirmationHash = &confirmationHash
	c.publish(ctx, event)
	return nil
}
