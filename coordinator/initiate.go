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
	"github.com/luxfi/bridge/ratelimit"
	"github.com/luxfi/bridge/transfers"

	safemath "github.com/luxfi/math"
)

const (
	opInitiate     = "initiate"
	opRecordRemote = "recordRemote"
)

// Initiate burns [amount] plus the transfer fee from [from] and records a
// pending transfer of [amount] to [to] on the remote chain. An empty
// [sourceChain] selects the local chain. Transfers originating on the remote
// chain are recorded by the owner with RecordRemote.
func (c *Coordinator) Initiate(
	ctx context.Context,
	from common.Address,
	to common.Address,
	amount uint64,
	sourceChain string,
) (ids.ID, error) {
	switch sourceChain {
	case "", c.config.LocalChain:
	case c.config.RemoteChain:
		return ids.Empty, c.reject(opInitiate, fmt.Errorf("%w: transfers from %s are recorded by the owner",
			ErrUnauthorized, sourceChain))
	default:
		return ids.Empty, c.reject(opInitiate, fmt.Errorf("%w: %q", ErrUnsupportedChain, sourceChain))
	}
	return c.initiate(ctx, opInitiate, from, to, amount, c.config.LocalChain)
}

// RecordRemote records a pending transfer of [amount] from [from] on the
// remote chain to [to] on the local chain. The funds were burned on the remote
// ledger, so nothing is burned locally and a cancellation is never refunded
// here. Only the owner may record remote transfers.
func (c *Coordinator) RecordRemote(
	ctx context.Context,
	caller common.Address,
	from common.Address,
	to common.Address,
	amount uint64,
) (ids.ID, error) {
	if err := c.checkOwner(caller); err != nil {
		return ids.Empty, c.reject(opRecordRemote, err)
	}
	return c.initiate(ctx, opRecordRemote, from, to, amount, c.config.RemoteChain)
}

func (c *Coordinator) initiate(
	ctx context.Context,
	op string,
	from common.Address,
	to common.Address,
	amount uint64,
	sourceChain string,
) (ids.ID, error) {
	params := c.Params()
	if params.Paused {
		return ids.Empty, c.reject(op, ErrPaused)
	}
	if to == (common.Address{}) {
		return ids.Empty, c.reject(op, ErrInvalidRecipient)
	}

	local := sourceChain == c.config.LocalChain
	targetChain := c.config.LocalChain
	if local {
		targetChain = c.config.RemoteChain
	}

	if amount < params.MinTransferAmount || amount > params.MaxTransferAmount {
		return ids.Empty, c.reject(op, fmt.Errorf("%w: %d outside [%d, %d]",
			ErrInvalidAmount, amount, params.MinTransferAmount, params.MaxTransferAmount))
	}
	total, err := safemath.Add64(amount, params.TransferFee)
	if err != nil {
		return ids.Empty, c.reject(op, fmt.Errorf("%w: amount plus fee overflows", ErrInvalidAmount))
	}

	now := c.clock.Time()
	day := ratelimit.Day(now)
	if exceeds, err := c.limiter.WouldExceed(ctx, ratelimit.GlobalKey(day), amount); err != nil {
		return ids.Empty, err
	} else if exceeds {
		return ids.Empty, c.reject(op, fmt.Errorf("%w: %w", ErrLimitExceeded, ratelimit.ErrGlobalLimitExceeded))
	}
	if exceeds, err := c.limiter.WouldExceed(ctx, ratelimit.UserKey(day, from), amount); err != nil {
		return ids.Empty, err
	} else if exceeds {
		return ids.Empty, c.reject(op, fmt.Errorf("%w: %w", ErrLimitExceeded, ratelimit.ErrUserLimitExceeded))
	}

	if local {
		balance, err := c.ledger.BalanceOf(ctx, from)
		if err != nil {
			return ids.Empty, fmt.Errorf("failed to read balance of %s: %w", from, err)
		}
		if balance < total {
			return ids.Empty, c.reject(op, fmt.Errorf("%w: %s has %d, needs %d",
				ErrInsufficientBalance, from, balance, total))
		}
	}

	sequence, err := c.registry.NextSequence()
	if err != nil {
		return ids.Empty, err
	}
	transfer := &transfers.Transfer{
		From:        from,
		To:          to,
		Amount:      amount,
		Fee:         params.TransferFee,
		SourceChain: sourceChain,
		TargetChain: targetChain,
		Status:      transfers.Pending,
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
		Sequence:    sequence,
	}
	transfer.ID = TransferID(from, to, amount, sourceChain, transfer.CreatedAt, sequence)

	// The checks above ran without holding the counters; Reserve repeats them
	// atomically.
	if err := c.limiter.Reserve(ctx, day, from, amount); err != nil {
		return ids.Empty, c.reject(op, err)
	}

	if local {
		memo := "bridge:burn:" + transfer.ID.String()
		if err := c.ledger.Burn(ctx, from, total, memo); err != nil {
			c.releaseReservation(ctx, transfer)
			return ids.Empty, c.reject(op, fmt.Errorf("burn failed: %w", err))
		}
	}

	if err := c.registry.Create(transfer); err != nil {
		c.log.Error("failed to record transfer",
			log.Stringer("transferID", transfer.ID),
			log.Err(err),
		)
		if local {
			c.compensateBurn(ctx, transfer, total)
		}
		c.releaseReservation(ctx, transfer)
		return ids.Empty, fmt.Errorf("failed to record transfer: %w", err)
	}

	c.metrics.Initiated(amount)
	c.updatePending()
	c.log.Info("transfer initiated",
		log.Stringer("transferID", transfer.ID),
		log.Stringer("from", from),
		log.Stringer("to", to),
		log.Uint64("amount", amount),
		log.Uint64("fee", transfer.Fee),
		log.String("sourceChain", sourceChain),
		log.String("targetChain", targetChain),
	)
	c.publish(ctx, newEvent(events.TransferInitiated, transfer))
	return transfer.ID, nil
}

// compensateBurn returns [total] to the sender of a transfer that could not be
// recorded.
func (c *Coordinator) compensateBurn(ctx context.Context, t *transfers.Transfer, total uint64) {
	memo := "bridge:compensate:" + t.ID.String()
	if err := c.ledger.Mint(ctx, t.From, total, memo); err != nil {
		c.log.Error("failed to compensate burn",
			log.Stringer("transferID", t.ID),
			log.Stringer("account", t.From),
			log.Uint64("amount", total),
			log.Err(err),
		)
	}
}

// releaseReservation returns the volume booked for [t] on its creation day.
func (c *Coordinator) releaseReservation(ctx context.Context, t *transfers.Transfer) {
	day := ratelimit.Day(t.Created())
	if err := c.limiter.Release(ctx, day, t.From, t.Amount); err != nil {
		c.log.Warn("failed to release rate limit reservation",
			log.Stringer("transferID", t.ID),
			log.Uint64("day", day),
			log.Err(err),
		)
	}
}
