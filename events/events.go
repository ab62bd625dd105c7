// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package events describes the transfer lifecycle notifications emitted by
// the coordinator.
package events

import (
	"context"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/ids"
)

// Type is the routing key of an event.
type Type string

const (
	TransferInitiated Type = "bridge.transfer.initiated"
	TransferCompleted Type = "bridge.transfer.completed"
	TransferCancelled Type = "bridge.transfer.cancelled"
)

// Event is the payload published for every state change of a transfer.
type Event struct {
	Type             Type           `json:"type"`
	TransferID       ids.ID         `json:"transferId"`
	From             common.Address `json:"from"`
	To               common.Address `json:"to"`
	Amount           uint64         `json:"amount,string"`
	Fee              uint64         `json:"fee,string"`
	SourceChain      string         `json:"sourceChain"`
	TargetChain      string         `json:"targetChain"`
	ConfirmationHash *common.Hash   `json:"confirmationHash,omitempty"`
	Refunded         bool           `json:"refunded,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	Timestamp        int64          `json:"timestamp"`
}

// Publisher delivers events to observers. Publish must not retain [event].
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

var (
	_ Publisher = NoOp{}
	_ Publisher = (*Memory)(nil)
)

// NoOp drops every event.
type NoOp struct{}

func (NoOp) Publish(context.Context, Event) error { return nil }

func (NoOp) Close() error { return nil }

// Memory keeps published events in order.
type Memory struct {
	lock   sync.Mutex
	events []Event
}

func (m *Memory) Publish(_ context.Context, event Event) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.events = append(m.events, event)
	return nil
}

func (*Memory) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]Event(nil), m.events...)
}
