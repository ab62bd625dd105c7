// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transfers

import (
	"errors"
	"fmt"
)

var errUnknownStatus = errors.New("unknown status")

// Status is the lifecycle state of a transfer.
type Status uint8

const (
	Unknown Status = iota
	Pending
	Processing
	Completed
	Cancelled
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Processing:
		return "PROCESSING"
	case Completed:
		return "COMPLETED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Completed || s == Cancelled
}

// CanTransitionTo reports whether [next] is a legal successor of s.
// Processing may fall back to Pending when the mint on the target ledger
// fails.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case Pending:
		return next == Processing || next == Cancelled
	case Processing:
		return next == Completed || next == Pending
	default:
		return false
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "PENDING":
		*s = Pending
	case "PROCESSING":
		*s = Processing
	case "COMPLETED":
		*s = Completed
	case "CANCELLED":
		*s = Cancelled
	default:
		return fmt.Errorf("%w: %q", errUnknownStatus, b)
	}
	return nil
}
