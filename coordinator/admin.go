// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"context"
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
)

func (c *Coordinator) checkOwner(caller common.Address) error {
	if caller != c.config.Owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller)
	}
	return nil
}

// updateParams applies [f] to a copy of the current params and persists the
// result if it validates.
func (c *Coordinator) updateParams(caller common.Address, op string, f func(*Params)) error {
	if err := c.checkOwner(caller); err != nil {
		return c.reject(op, err)
	}

	c.paramsLock.Lock()
	defer c.paramsLock.Unlock()

	p := c.params
	f(&p)
	if err := p.Validate(); err != nil {
		return c.reject(op, err)
	}
	if err := c.storeParams(p); err != nil {
		return err
	}
	c.limiter.SetLimit(p.DailyLimit)

	c.log.Info("bridge parameters updated",
		log.String("op", op),
		log.Uint64("minTransferAmount", p.MinTransferAmount),
		log.Uint64("maxTransferAmount", p.MaxTransferAmount),
		log.Uint64("dailyLimit", p.DailyLimit),
		log.Uint64("transferFee", p.TransferFee),
		log.Bool("paused", p.Paused),
	)
	return nil
}

// SetLimits replaces the per-transfer bounds and the daily limit.
func (c *Coordinator) SetLimits(caller common.Address, minAmount, maxAmount, dailyLimit uint64) error {
	return c.updateParams(caller, "setLimits", func(p *Params) {
		p.MinTransferAmount = minAmount
		p.MaxTransferAmount = maxAmount
		p.DailyLimit = dailyLimit
	})
}

// SetTransferFee changes the fee charged on top of each transfer.
func (c *Coordinator) SetTransferFee(caller common.Address, fee uint64) error {
	return c.updateParams(caller, "setTransferFee", func(p *Params) {
		p.TransferFee = fee
	})
}

// Pause stops new initiations and confirmations.
func (c *Coordinator) Pause(caller common.Address) error {
	return c.updateParams(caller, "pause", func(p *Params) {
		p.Paused = true
	})
}

// Unpause resumes normal operation.
func (c *Coordinator) Unpause(caller common.Address) error {
	return c.updateParams(caller, "unpause", func(p *Params) {
		p.Paused = false
	})
}

// AddValidator authorizes [addr] to sign confirmations.
func (c *Coordinator) AddValidator(caller common.Address, addr common.Address) error {
	if err := c.checkOwner(caller); err != nil {
		return c.reject("addValidator", err)
	}
	return c.validators.Add(addr)
}

// RemoveValidator revokes [addr]. Signatures it already contributed to
// completed transfers are unaffected.
func (c *Coordinator) RemoveValidator(caller common.Address, addr common.Address) error {
	if err := c.checkOwner(caller); err != nil {
		return c.reject("removeValidator", err)
	}
	return c.validators.Remove(addr)
}

// SetMinValidators changes the number of signatures needed to confirm.
func (c *Coordinator) SetMinValidators(caller common.Address, n int) error {
	if err := c.checkOwner(caller); err != nil {
		return c.reject("setMinValidators", err)
	}
	if err := c.validators.SetQuorum(n); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLimits, err)
	}
	return nil
}

// PruneRateLimits removes volume buckets older than [beforeDay]. Today's
// bucket is never removed.
func (c *Coordinator) PruneRateLimits(ctx context.Context, caller common.Address, beforeDay uint64) (int, error) {
	if err := c.checkOwner(caller); err != nil {
		return 0, c.reject("pruneRateLimits", err)
	}
	beforeDay = min(beforeDay, c.limiter.Today())
	pruned, err := c.limiter.Prune(ctx, beforeDay)
	if err != nil {
		return 0, err
	}
	c.log.Info("pruned rate limit buckets",
		log.Uint64("beforeDay", beforeDay),
		log.Int("pruned", pruned),
	)
	return pruned, nil
}
