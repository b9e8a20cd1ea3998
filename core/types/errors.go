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

import "errors"

var (
	// ErrInvalidAmount signals a negative or otherwise malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidMarketParams signals a market cannot be initialised with
	// the given parameter set.
	ErrInvalidMarketParams = errors.New("invalid market parameters")
	// ErrInsufficientFree signals the party's free balance cannot cover
	// the requested amount. Recoverable: retry with a smaller amount.
	ErrInsufficientFree = errors.New("insufficient free balance")
	// ErrInsufficientLocked signals the party's locked balance cannot
	// cover the requested amount. Recoverable.
	ErrInsufficientLocked = errors.New("insufficient locked balance")
	// ErrPriceBandExceeded signals the mark price deviates too far from
	// the reference price for the trade to be admitted.
	ErrPriceBandExceeded = errors.New("market rejected: price band exceeded")
	// ErrOpenInterestCapExceeded signals the fill would push open
	// interest past the market cap.
	ErrOpenInterestCapExceeded = errors.New("market rejected: open interest cap exceeded")
	// ErrInvalidFill signals a fill that would empty or invert the
	// virtual reserves.
	ErrInvalidFill = errors.New("market rejected: invalid fill")
	// ErrInsufficientMargin signals the margin offered does not cover
	// notional / max leverage.
	ErrInsufficientMargin = errors.New("insufficient margin")
	// ErrPositionNotFound signals the position handle does not resolve.
	ErrPositionNotFound = errors.New("position not found")
	// ErrPositionClosed signals an operation on a closed position.
	ErrPositionClosed = errors.New("position closed")
	// ErrUnauthorized signals the caller does not own the position.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrFundDepleted signals the insurance fund cannot cover the
	// requested amount; the engine falls back to auto-deleveraging.
	ErrFundDepleted = errors.New("insurance fund depleted")
	// ErrMarketNotFound signals the market id does not resolve.
	ErrMarketNotFound = errors.New("market not found")
	// ErrMarketAlreadyExists signals a duplicate market initialisation.
	ErrMarketAlreadyExists = errors.New("market already exists")
	// ErrPositionNotLiquidatable signals a liquidation call on a healthy
	// position. Always non-mutating.
	ErrPositionNotLiquidatable = errors.New("position not liquidatable")
	// ErrLiquidationCooldown signals the position was liquidated too
	// recently to be liquidated again.
	ErrLiquidationCooldown = errors.New("position in liquidation cooldown")
	// ErrInvalidFraction signals a reduce fraction outside (0, 1].
	ErrInvalidFraction = errors.New("invalid reduce fraction")
)
