// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package json holds the JSON-RPC codec and the string encoded integers used
// by the bridge API. Amounts are quoted so clients that parse numbers as
// doubles do not lose precision.
package json

import "strconv"

const Null = "null"

// Uint32 is a uint32 that can be JSON marshaled as a string.
type Uint32 uint32

func (u Uint32) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint32) UnmarshalJSON(b []byte) error {
	if string(b) == Null {
		return nil
	}
	val, err := parseUint(b, 32)
	if err != nil {
		return err
	}
	*u = Uint32(val)
	return nil
}

// Uint64 is a uint64 that can be JSON marshaled as a string.
type Uint64 uint64

func (u Uint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(u), 10) + `"`), nil
}

func (u *Uint64) UnmarshalJSON(b []byte) error {
	if string(b) == Null {
		return nil
	}
	val, err := parseUint(b, 64)
	if err != nil {
		return err
	}
	*u = Uint64(val)
	return nil
}

// parseUint accepts both quoted and bare integers.
func parseUint(b []byte, bitSize int) (uint64, error) {
	str := string(b)
	if len(str) >= 2 {
		if lastIndex := len(str) - 1; str[0] == '"' && str[lastIndex] == '"' {
			str = str[1:lastIndex]
		}
	}
	return strconv.ParseUint(str, 10, bitSize)
}
