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

package types

import (
	"time"

	"code.vegaprotocol.io/perps/libs/num"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus int

const (
	PositionStatusUnspecified PositionStatus = iota
	PositionStatusOpen
	PositionStatusPartiallyLiquidated
	PositionStatusClosed
)

func (s PositionStatus) String() string {
	switch s {
	case PositionStatusOpen:
		return "open"
	case PositionStatusPartiallyLiquidated:
		return "partially-liquidated"
	case PositionStatusClosed:
		return "closed"
	default:
		return "unspecified"
	}
}

// Position is a single party's isolated-margin exposure in one market.
// The margin attributed here is not fungible with the party's other
// positions; it is a slice of the party's locked balance.
type Position struct {
	ID     uint64
	Party  string
	Market string

	// signed size in base units, positive for long
	Size num.Decimal
	// volume-weighted average entry price; fixed on reduce,
	// recomputed on increase
	EntryPrice num.Decimal
	// abs(size) * entry price, the funding-accrual weight
	OpenNotional num.Decimal
	// collateral locked against this position
	Margin num.Decimal

	// snapshot of the market funding index at the last settlement
	FundingIndexLastSettled num.Decimal

	Status PositionStatus

	// a position cannot be liquidated again before this time
	LiquidationCooldownUntil time.Time
}

// Side returns the direction of the exposure.
func (p *Position) Side() Side {
	if p.Size.IsNegative() {
		return SideShort
	}
	return SideLong
}

// Notional values the current exposure at the given price.
func (p *Position) Notional(price num.Decimal) num.Decimal {
	return p.Size.Abs().Mul(price)
}

// UnrealisedPnl is the signed mark-to-market profit of the open exposure.
func (p *Position) UnrealisedPnl(markPrice num.Decimal) num.Decimal {
	return p.Size.Mul(markPrice.Sub(p.EntryPrice))
}

// Equity is margin plus unrealised profit, the numerator of the margin
// ratio used by the liquidation engine.
func (p *Position) Equity(markPrice num.Decimal) num.Decimal {
	return p.Margin.Add(p.UnrealisedPnl(markPrice))
}

// MarginRatio returns equity over notional at the given mark price. A
// closed or zero-notional position has no meaningful ratio and reports
// zero.
func (p *Position) MarginRatio(markPrice num.Decimal) num.Decimal {
	notional := p.Notional(markPrice)
	if notional.IsZero() {
		return num.DecimalZero()
	}
	return p.Equity(markPrice).Div(notional)
}

// IsOpen reports whether the position still carries exposure.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen || p.Status == PositionStatusPartiallyLiquidated
}

// Clone returns an independent copy, used by read accessors so callers
// cannot mutate ledger state.
func (p *Position) Clone() *Position {
	cpy := *p
	return &cpy
}
