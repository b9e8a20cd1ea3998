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
	"code.vegaprotocol.io/perps/libs/num"
)

// Side is the direction of an exposure or a trade.
type Side int

const (
	SideUnspecified Side = iota
	// SideLong - exposure gains when the mark price rises.
	SideLong
	// SideShort - exposure gains when the mark price falls.
	SideShort
)

func (s Side) String() string {
	switch s {
	case SideLong:
		return "long"
	case SideShort:
		return "short"
	default:
		return "unspecified"
	}
}

// Sign returns +1 for long, -1 for short.
func (s Side) Sign() num.Decimal {
	if s == SideShort {
		return num.DecimalFromInt64(-1)
	}
	return num.DecimalOne()
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// MarketParams are the static parameters a market is initialised with.
// They never change for the life of the market.
type MarketParams struct {
	ID string

	// initial virtual reserves, the product of which fixes K
	VBase  num.Decimal
	VQuote num.Decimal

	// fees
	TradeFeeBps int64
	// surcharge/rebate applied when the trade direction matches/opposes
	// the sign of the premium over the reference price
	FeeTiltBps int64

	// admission
	MaxDeviationBps int64
	OiCapUsd        num.Decimal

	// margining
	MmrBps      int64
	MaxLeverage num.Decimal

	// liquidation
	PenaltyBps       int64
	LiquidatorFeeBps int64

	// funding
	FundingFactor  num.Decimal
	InterestFloor  num.Decimal
	FundingRateCap num.Decimal
}

// Validate rejects parameter sets a market cannot be initialised with.
func (p MarketParams) Validate() error {
	if len(p.ID) == 0 {
		return ErrInvalidMarketParams
	}
	if !p.VBase.IsPositive() || !p.VQuote.IsPositive() {
		return ErrInvalidMarketParams
	}
	if !p.MaxLeverage.IsPositive() {
		return ErrInvalidMarketParams
	}
	if p.TradeFeeBps < 0 || p.MaxDeviationBps < 0 || p.MmrBps <= 0 || p.PenaltyBps < 0 {
		return ErrInvalidMarketParams
	}
	if p.LiquidatorFeeBps < 0 || p.LiquidatorFeeBps > p.PenaltyBps {
		return ErrInvalidMarketParams
	}
	return nil
}

// MarketData is the read-only snapshot of a market's state exposed to the
// engine's host.
type MarketData struct {
	Market            string
	MarkPrice         num.Decimal
	VBase             num.Decimal
	VQuote            num.Decimal
	LongOpenInterest  num.Decimal
	ShortOpenInterest num.Decimal
	FundingIndex      num.Decimal
	FundingRate       num.Decimal
	OpenPositionCount uint64
}
