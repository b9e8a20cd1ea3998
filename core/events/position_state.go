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

	"code.vegaprotocol.io/perps/core/types"
)

// PositionState is emitted every time a position mutates.
type PositionState struct {
	*Base
	pos types.Position
}

func NewPositionStateEvent(ctx context.Context, pos *types.Position) *PositionState {
	return &PositionState{
		Base: newBase(ctx, PositionStateEvent),
		pos:  *pos.Clone(),
	}
}

func (p PositionState) MarketID() string {
	return p.pos.Market
}

func (p PositionState) PartyID() string {
	return p.pos.Party
}

func (p PositionState) Position() types.Position {
	return p.pos
}
