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

package liquidation

import (
	"time"

	"code.vegaprotocol.io/perps/libs/config/encoding"
	"code.vegaprotocol.io/perps/logging"
)

const namedLogger = "liquidation"

// Config represents the configuration of the liquidation engine.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	// Cooldown is how long a position is shielded from another
	// liquidation after a partial close.
	Cooldown encoding.Duration `long:"cooldown"`
	// FullCloseFactor scales the maintenance ratio down to the level
	// below which a position is closed in full rather than partially.
	FullCloseFactor float64 `long:"full-close-factor"`
	// TargetBufferBps is added on top of the maintenance ratio when
	// sizing a partial close, so the surviving position is not
	// immediately liquidatable again.
	TargetBufferBps int64 `long:"target-buffer-bps"`
}

// NewDefaultConfig creates an instance of the package specific configuration.
func NewDefaultConfig() Config {
	return Config{
		Level:           encoding.LogLevel{Level: logging.InfoLevel},
		Cooldown:        encoding.Duration{Duration: 30 * time.Second},
		FullCloseFactor: 2.0 / 3.0,
		TargetBufferBps: 50,
	}
}
