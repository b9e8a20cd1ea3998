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

// LedgerMovements carries the balance changes of one committed operation.
type LedgerMovements struct {
	*Base
	movements []types.LedgerMovement
}

func NewLedgerMovements(ctx context.Context, movements []types.LedgerMovement) *LedgerMovements {
	return &LedgerMovements{
		Base:      newBase(ctx, LedgerMovementsEvent),
		movements: movements,
	}
}

func (l LedgerMovements) LedgerMovements() []types.LedgerMovement {
	return l.movements
}

func (l LedgerMovements) IsParty(id string) bool {
	for _, m := range l.movements {
		if m.Party == id {
			return true
		}
	}
	return false
}
