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

package logging

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bool constructs a field with the given key and value.
func Bool(name string, b bool) zap.Field {
	return zap.Bool(name, b)
}

// String constructs a field with the given key and value.
func String(name, val string) zap.Field {
	return zap.String(name, val)
}

// Strings constructs a field with the given key and value.
func Strings(name string, vals []string) zap.Field {
	return zap.Strings(name, vals)
}

// Int constructs a field with the given key and value.
func Int(name string, val int) zap.Field {
	return zap.Int(name, val)
}

// Int64 constructs a field with the given key and value.
func Int64(name string, val int64) zap.Field {
	return zap.Int64(name, val)
}

// Uint64 constructs a field with the given key and value.
func Uint64(name string, val uint64) zap.Field {
	return zap.Uint64(name, val)
}

// Float64 constructs a field with the given key and value.
func Float64(name string, val float64) zap.Field {
	return zap.Float64(name, val)
}

// Decimal constructs a field with the given key and value.
func Decimal(name string, val decimal.Decimal) zap.Field {
	return zap.String(name, val.String())
}

// Time constructs a field with the given key and value.
func Time(name string, t time.Time) zap.Field {
	return zap.Time(name, t)
}

// Duration constructs a field with the given key and value.
func Duration(name string, d time.Duration) zap.Field {
	return zap.Duration(name, d)
}

// Error constructs a field that carries an error.
func Error(err error) zap.Field {
	return zap.Error(err)
}

// PartyID constructs a field with the party identifier.
func PartyID(id string) zap.Field {
	return zap.String("party", id)
}

// MarketID constructs a field with the market identifier.
func MarketID(id string) zap.Field {
	return zap.String("market", id)
}

// PositionID constructs a field with the position handle.
func PositionID(id uint64) zap.Field {
	return zap.Uint64("position", id)
}
