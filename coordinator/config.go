// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxfi/geth/common"
)

const (
	DefaultLocalChain        = "LOCAL"
	DefaultRemoteChain       = "REMOTE"
	DefaultMinTransferAmount = 1_000
	DefaultMaxTransferAmount = 1_000_000_000
	DefaultDailyLimit        = 10_000_000_000
	DefaultTransferFee       = 100
	DefaultTransferTimeout   = 24 * time.Hour
	DefaultMinValidators     = 1
)

var (
	errNoOwner            = errors.New("owner must be set")
	errNoChains           = errors.New("local and remote chain must be set and differ")
	errNonPositiveTimeout = errors.New("transfer timeout must be positive")
)

// Config is the static configuration of a coordinator. The mutable
// parameters in Params seed the store on first start; afterwards the stored
// values win.
type Config struct {
	// Owner may cancel any pending transfer and run admin operations.
	Owner common.Address `json:"owner"`

	LocalChain  string `json:"localChain"`
	RemoteChain string `json:"remoteChain"`

	// TransferTimeout after which anyone may cancel a pending transfer.
	TransferTimeout time.Duration `json:"transferTimeout"`

	Params Params `json:"params"`

	// Validators and MinValidators seed the validator set on first start.
	Validators    []common.Address `json:"validators"`
	MinValidators int              `json:"minValidators"`
}

// Params are the owner-adjustable parameters.
type Params struct {
	MinTransferAmount uint64 `serialize:"true" json:"minTransferAmount"`
	MaxTransferAmount uint64 `serialize:"true" json:"maxTransferAmount"`
	DailyLimit        uint64 `serialize:"true" json:"dailyLimit"`
	TransferFee       uint64 `serialize:"true" json:"transferFee"`
	Paused            bool   `serialize:"true" json:"paused"`
}

// DefaultConfig returns a config for the given owner with default limits.
func DefaultConfig(owner common.Address) Config {
	return Config{
		Owner:           owner,
		LocalChain:      DefaultLocalChain,
		RemoteChain:     DefaultRemoteChain,
		TransferTimeout: DefaultTransferTimeout,
		Params: Params{
			MinTransferAmount: DefaultMinTransferAmount,
			MaxTransferAmount: DefaultMaxTransferAmount,
			DailyLimit:        DefaultDailyLimit,
			TransferFee:       DefaultTransferFee,
		},
		MinValidators: DefaultMinValidators,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Owner == (common.Address{}) {
		return errNoOwner
	}
	if c.LocalChain == "" || c.RemoteChain == "" || c.LocalChain == c.RemoteChain {
		return errNoChains
	}
	if c.TransferTimeout <= 0 {
		return errNonPositiveTimeout
	}
	if c.MinValidators < 1 {
		return fmt.Errorf("%w: min validators %d", ErrInvalidLimits, c.MinValidators)
	}
	return c.Params.Validate()
}

// Validate checks the limit relationships 0 < min <= max and dailyLimit > 0.
func (p Params) Validate() error {
	if p.MinTransferAmount == 0 || p.MinTransferAmount > p.MaxTransferAmount || p.DailyLimit == 0 {
		return fmt.Errorf("%w: min=%d max=%d daily=%d",
			ErrInvalidLimits, p.MinTransferAmount, p.MaxTransferAmount, p.DailyLimit)
	}
	return nil
}
