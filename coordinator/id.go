// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"encoding/binary"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

var transferIDTag = []byte("luxfi/bridge/transfer/v1")

// TransferID derives the id of a transfer. Every field is fixed width or
// length prefixed so distinct inputs never share an encoding.
func TransferID(
	from common.Address,
	to common.Address,
	amount uint64,
	sourceChain string,
	createdAt int64,
	sequence uint64,
) ids.ID {
	buf := make([]byte, 0, len(transferIDTag)+2*common.AddressLength+8+8+len(sourceChain)+8+8)
	buf = append(buf, transferIDTag...)
	buf = append(buf, from[:]...)
	buf = append(buf, to[:]...)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(sourceChain)))
	buf = append(buf, sourceChain...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(createdAt))
	buf = binary.BigEndian.AppendUint64(buf, sequence)
	return ids.ID(crypto.Keccak256Hash(buf))
}
