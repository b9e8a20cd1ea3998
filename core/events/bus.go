// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package events

import (
	"context"
)

// Type discriminates the events the engines emit.
type Type int

const (
	// All event type -> used by subscribers to just receive all events,
	// has no actual corresponding event payload.
	All Type = iota
	TradeEvent
	PositionStateEvent
	LedgerMovementsEvent
	FundingPaymentEvent
	FundingUpdateEvent
	LiquidationEvent
	BadDebtEvent
	AutoDeleverageEvent
	MarketCreatedEvent
)

var eventStrings = map[Type]string{
	All:                  "ALL",
	TradeEvent:           "Trade",
	PositionStateEvent:   "PositionState",
	LedgerMovementsEvent: "LedgerMovements",
	FundingPaymentEvent:  "FundingPayment",
	FundingUpdateEvent:   "FundingUpdate",
	LiquidationEvent:     "Liquidation",
	BadDebtEvent:         "BadDebt",
	AutoDeleverageEvent:  "AutoDeleverage",
	MarketCreatedEvent:   "MarketCreated",
}

func (t Type) String() string {
	s, ok := eventStrings[t]
	if !ok {
		return "UNKNOWN EVENT"
	}
	return s
}

// Event is the base event interface type.
type Event interface {
	Type() Type
	Context() context.Context
	Sequence() uint64
	SetSequenceID(s uint64)
}

// Base is the common denominator all event-bus events share.
type Base struct {
	ctx context.Context
	seq uint64
	et  Type
}

func newBase(ctx context.Context, t Type) *Base {
	return &Base{
		ctx: ctx,
		et:  t,
	}
}

// Type returns the event type.
func (b Base) Type() Type {
	return b.et
}

// Context returns the context the event was emitted with.
func (b Base) Context() context.Context {
	return b.ctx
}

// Sequence returns the event sequence number.
func (b Base) Sequence() uint64 {
	return b.seq
}

// SetSequenceID sets the sequence number, assigned by the broker on send.
func (b *Base) SetSequenceID(s uint64) {
	if b.seq != 0 {
		return
	}
	b.seq = s
}
