// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package quorum checks that a transfer confirmation carries signatures from
// enough distinct active validators.
package quorum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bridge/validators"
)

// maxParallelRecoveries bounds the goroutines used to recover one set.
const maxParallelRecoveries = 16

var (
	ErrInvalidSignatureSet    = errors.New("invalid signature set")
	ErrInsufficientSignatures = errors.New("insufficient signatures")
	ErrUnauthorizedSigner     = errors.New("unauthorized signer")
	ErrDuplicateSigner        = errors.New("duplicate signer")
	ErrMalformedSignature     = errors.New("malformed signature")
	ErrTooManySignatures      = errors.New("more signatures than active validators")
)

// Validators provides a consistent view of the signer set.
type Validators interface {
	Snapshot() validators.Snapshot
}

// Recoverer returns the address that produced [sig] over [hash].
type Recoverer interface {
	Recover(hash common.Hash, sig []byte) (common.Address, error)
}

// MessageHash is the digest validators sign to attest that [transferID] was
// observed with [confirmationHash]. The transfer id commits to the source
// chain, so the signature attests to it as well.
func MessageHash(transferID ids.ID, confirmationHash common.Hash) common.Hash {
	return common.Hash(crypto.Keccak256Hash(transferID[:], confirmationHash[:]))
}

// Sign produces a confirmation signature with [key].
func Sign(key *ecdsa.PrivateKey, transferID ids.ID, confirmationHash common.Hash) ([]byte, error) {
	hash := MessageHash(transferID, confirmationHash)
	return crypto.Sign(hash[:], key)
}

// ECDSARecoverer recovers secp256k1 signatures in [R || S || V] form. V may
// be 0/1 or 27/28.
type ECDSARecoverer struct{}

func (ECDSARecoverer) Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, crypto.SignatureLength, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if v := normalized[crypto.RecoveryIDOffset]; v == 27 || v == 28 {
		normalized[crypto.RecoveryIDOffset] = v - 27
	}

	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}

// Verifier validates signature sets. It holds no mutable state and is safe
// for concurrent use.
type Verifier struct {
	validators Validators
	recoverer  Recoverer
}

func NewVerifier(vdrs Validators, recoverer Recoverer) *Verifier {
	return &Verifier{
		validators: vdrs,
		recoverer:  recoverer,
	}
}

// Verify checks [signatures] over MessageHash(transferID, confirmationHash)
// and returns the recovered signers in signature order. Any unauthorized or
// repeated signer rejects the whole set.
func (v *Verifier) Verify(
	ctx context.Context,
	transferID ids.ID,
	confirmationHash common.Hash,
	signatures [][]byte,
) ([]common.Address, error) {
	snapshot := v.validators.Snapshot()
	if len(signatures) < snapshot.Quorum {
		return nil, fmt.Errorf("%w: %w: got %d, need %d",
			ErrInvalidSignatureSet, ErrInsufficientSignatures, len(signatures), snapshot.Quorum)
	}
	// Every signer must be distinct and active, so a longer set cannot be
	// valid.
	if len(signatures) > snapshot.Len() {
		return nil, fmt.Errorf("%w: %w: got %d, have %d validators",
			ErrInvalidSignatureSet, ErrTooManySignatures, len(signatures), snapshot.Len())
	}

	hash := MessageHash(transferID, confirmationHash)
	signers := make([]common.Address, len(signatures))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRecoveries)
	for i, sig := range signatures {
		g.Go(func() error {
			addr, err := v.recoverer.Recover(hash, sig)
			if err != nil {
				return fmt.Errorf("signature %d: %w", i, err)
			}
			signers[i] = addr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignatureSet, err)
	}

	seen := set.NewSet[common.Address](len(signers))
	for i, signer := range signers {
		if !snapshot.Contains(signer) {
			return nil, fmt.Errorf("%w: %w: signature %d from %s",
				ErrInvalidSignatureSet, ErrUnauthorizedSigner, i, signer)
		}
		if seen.Contains(signer) {
			return nil, fmt.Errorf("%w: %w: signature %d from %s",
				ErrInvalidSignatureSet, ErrDuplicateSigner, i, signer)
		}
		seen.Add(signer)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return signers, nil
}
