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

// FundingUpdate is emitted when a market's cumulative funding index moves.
type FundingUpdate struct {
	*Base
	market    string
	rate      num.Decimal
	index     num.Decimal
	imbalance num.Decimal
}

func NewFundingUpdateEvent(ctx context.Context, market string, rate, index, imbalance num.Decimal) *FundingUpdate {
	return &FundingUpdate{
		Base:      newBase(ctx, FundingUpdateEvent),
		market:    market,
		rate:      rate,
		index:     index,
		imbalance: imbalance,
	}
}

func (f FundingUpdate) MarketID() string        { return f.market }
func (f FundingUpdate) Rate() num.Decimal       { return f.rate }
func (f FundingUpdate) Index() num.Decimal      { return f.index }
func (f FundingUpdate) Imbalance() num.Decimal  { return f.imbalance }

// FundingPayment is emitted when a position settles its accrued funding.
// Amount is signed: positive means the position received funding.
type FundingPayment struct {
	*Base
	market     string
	party      string
	positionID uint64
	amount     num.Decimal
}

func NewFundingPaymentEvent(ctx context.Context, market, party string, positionID uint64, amount num.Decimal) *FundingPayment {
	return &FundingPayment{
		Base:       newBase(ctx, FundingPaymentEvent),
		market:     market,
		party:      party,
		positionID: positionID,
		amount:     amount,
	}
}

func (f FundingPayment) MarketID() string    { return f.market }
func (f FundingPayment) PartyID() string     { return f.party }
func (f FundingPayment) PositionID() uint64  { return f.positionID }
func (f FundingPayment) Amount() num.Decimal { return f.amount }
