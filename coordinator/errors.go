// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"errors"

	"github.com/luxfi/bridge/ledger"
	"github.com/luxfi/bridge/quorum"
	"github.com/luxfi/bridge/ratelimit"
	"github.com/luxfi/bridge/transfers"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrLimitExceeded       = ratelimit.ErrLimitExceeded
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrInvalidRecipient    = errors.New("invalid recipient")
	ErrTransferNotFound    = transfers.ErrTransferNotFound
	ErrTransferNotPending  = errors.New("transfer not pending")
	ErrInvalidSignatureSet = quorum.ErrInvalidSignatureSet
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPaused              = errors.New("bridge is paused")
	ErrUnsupportedChain    = errors.New("unsupported chain")
	ErrInvalidLimits       = errors.New("invalid limits")
	ErrRefundFailed        = errors.New("refund failed")
)

// reason maps an error to a short label for metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	case errors.Is(err, ErrTransferNotFound):
		return "not_found"
	case errors.Is(err, ErrTransferNotPending):
		return "not_pending"
	case errors.Is(err, ErrInvalidSignatureSet):
		return "invalid_signatures"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrUnsupportedChain):
		return "unsupported_chain"
	default:
		return "internal"
	}
}
