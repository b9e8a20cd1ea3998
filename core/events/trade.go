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

// Trade is emitted for every committed fill against the virtual market.
type Trade struct {
	*Base
	market     string
	party      string
	positionID uint64
	side       string
	sizeDelta  num.Decimal
	notional   num.Decimal
	fee        num.Decimal
	markPrice  num.Decimal
}

func NewTradeEvent(
	ctx context.Context,
	market, party string,
	positionID uint64,
	side string,
	sizeDelta, notional, fee, markPrice num.Decimal,
) *Trade {
	return &Trade{
		Base:       newBase(ctx, TradeEvent),
		market:     market,
		party:      party,
		positionID: positionID,
		side:       side,
		sizeDelta:  sizeDelta,
		notional:   notional,
		fee:        fee,
		markPrice:  markPrice,
	}
}

func (t Trade) MarketID() string         { return t.market }
func (t Trade) PartyID() string          { return t.party }
func (t Trade) PositionID() uint64       { return t.positionID }
func (t Trade) Side() string             { return t.side }
func (t Trade) SizeDelta() num.Decimal   { return t.sizeDelta }
func (t Trade) Notional() num.Decimal    { return t.notional }
func (t Trade) Fee() num.Decimal         { return t.fee }
func (t Trade) MarkPrice() num.Decimal   { return t.markPrice }
