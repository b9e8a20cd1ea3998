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

// PartyAccount is a party's collateral balance: free is withdrawable,
// locked is the sum of the margin attributed to the party's open
// positions. Records persist at zero so history stays addressable.
type PartyAccount struct {
	Party  string
	Free   num.Decimal
	Locked num.Decimal
}

// Total returns free + locked.
func (a *PartyAccount) Total() num.Decimal {
	return a.Free.Add(a.Locked)
}

// Clone returns an independent copy for read accessors.
func (a *PartyAccount) Clone() *PartyAccount {
	cpy := *a
	return &cpy
}

// TransferType describes the purpose of a single ledger movement.
type TransferType int

const (
	TransferTypeUnspecified TransferType = iota
	TransferTypeDeposit
	TransferTypeWithdraw
	TransferTypeMarginLock
	TransferTypeMarginRelease
	TransferTypeMTMWin
	TransferTypeMTMLoss
	TransferTypeTradeFee
	TransferTypeFundingPay
	TransferTypeFundingReceive
	TransferTypeFundingImbalance
	TransferTypeLiquidationPenalty
	TransferTypeLiquidatorReward
	TransferTypeShortfallCover
	TransferTypeADLHaircut
)

func (t TransferType) String() string {
	switch t {
	case TransferTypeDeposit:
		return "deposit"
	case TransferTypeWithdraw:
		return "withdraw"
	case TransferTypeMarginLock:
		return "margin-lock"
	case TransferTypeMarginRelease:
		return "margin-release"
	case TransferTypeMTMWin:
		return "mtm-win"
	case TransferTypeMTMLoss:
		return "mtm-loss"
	case TransferTypeTradeFee:
		return "trade-fee"
	case TransferTypeFundingPay:
		return "funding-pay"
	case TransferTypeFundingReceive:
		return "funding-receive"
	case TransferTypeFundingImbalance:
		return "funding-imbalance"
	case TransferTypeLiquidationPenalty:
		return "liquidation-penalty"
	case TransferTypeLiquidatorReward:
		return "liquidator-reward"
	case TransferTypeShortfallCover:
		return "shortfall-cover"
	case TransferTypeADLHaircut:
		return "adl-haircut"
	default:
		return "unspecified"
	}
}

// LedgerMovement records one committed balance change for downstream
// consumers (the event stream, audit).
type LedgerMovement struct {
	Party  string
	Market string
	Type   TransferType
	Amount num.Decimal
}
