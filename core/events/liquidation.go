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

	"code.vegaprotocol.io/perps/libs/num"
)

// Liquidation is emitted after a successful forced close, partial or full.
type Liquidation struct {
	*Base
	market         string
	party          string
	positionID     uint64
	closedFraction num.Decimal
	closedNotional num.Decimal
	penalty        num.Decimal
	full           bool
}

func NewLiquidationEvent(
	ctx context.Context,
	market, party string,
	positionID uint64,
	closedFraction, closedNotional, penalty num.Decimal,
	full bool,
) *Liquidation {
	return &Liquidation{
		Base:           newBase(ctx, LiquidationEvent),
		market:         market,
		party:          party,
		positionID:     positionID,
		closedFraction: closedFraction,
		closedNotional: closedNotional,
		penalty:        penalty,
		full:           full,
	}
}

func (l Liquidation) MarketID() string            { return l.market }
func (l Liquidation) PartyID() string             { return l.party }
func (l Liquidation) PositionID() uint64          { return l.positionID }
func (l Liquidation) ClosedFraction() num.Decimal { return l.closedFraction }
func (l Liquidation) ClosedNotional() num.Decimal { return l.closedNotional }
func (l Liquidation) Penalty() num.Decimal        { return l.penalty }
func (l Liquidation) Full() bool                  { return l.full }

// BadDebt is emitted when a liquidated position's collateral could not
// cover its realised loss and the insurance fund stepped in.
type BadDebt struct {
	*Base
	market     string
	party      string
	positionID uint64
	amount     num.Decimal
	covered    num.Decimal
}

func NewBadDebtEvent(ctx context.Context, market, party string, positionID uint64, amount, covered num.Decimal) *BadDebt {
	return &BadDebt{
		Base:       newBase(ctx, BadDebtEvent),
		market:     market,
		party:      party,
		positionID: positionID,
		amount:     amount,
		covered:    covered,
	}
}

func (b BadDebt) MarketID() string     { return b.market }
func (b BadDebt) PartyID() string      { return b.party }
func (b BadDebt) PositionID() uint64   { return b.positionID }
func (b BadDebt) Amount() num.Decimal  { return b.amount }
func (b BadDebt) Covered() num.Decimal { return b.covered }

// AutoDeleverage is emitted for every position force-reduced by the ADL
// contingency. This is last-resort behaviour and is logged distinctly
// from ordinary liquidations.
type AutoDeleverage struct {
	*Base
	market     string
	party      string
	positionID uint64
	reduced    num.Decimal
	haircut    num.Decimal
}

func NewAutoDeleverageEvent(ctx context.Context, market, party string, positionID uint64, reduced, haircut num.Decimal) *AutoDeleverage {
	return &AutoDeleverage{
		Base:       newBase(ctx, AutoDeleverageEvent),
		market:     market,
		party:      party,
		positionID: positionID,
		reduced:    reduced,
		haircut:    haircut,
	}
}

func (a AutoDeleverage) MarketID() string     { return a.market }
func (a AutoDeleverage) PartyID() string      { return a.party }
func (a AutoDeleverage) PositionID() uint64   { return a.positionID }
func (a AutoDeleverage) Reduced() num.Decimal { return a.reduced }
func (a AutoDeleverage) Haircut() num.Decimal { return a.haircut }
