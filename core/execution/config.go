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

package execution

import (
	"code.vegaprotocol.io/perps/core/funding"
	"code.vegaprotocol.io/perps/core/liquidation"
	"code.vegaprotocol.io/perps/core/positions"
	"code.vegaprotocol.io/perps/core/vamm"
	"code.vegaprotocol.io/perps/libs/config/encoding"
	"code.vegaprotocol.io/perps/logging"
)

const namedLogger = "execution"

// Config is the configuration of the execution package, aggregating the
// configuration of every engine a market is assembled from.
type Config struct {
	Level encoding.LogLevel `long:"log-level"`

	Vamm        vamm.Config        `group:"Vamm"        namespace:"vamm"`
	Positions   positions.Config   `group:"Positions"   namespace:"positions"`
	Funding     funding.Config     `group:"Funding"     namespace:"funding"`
	Liquidation liquidation.Config `group:"Liquidation" namespace:"liquidation"`
}

// NewDefaultConfig creates an instance of the package specific
// configuration, with default values for every nested engine.
func NewDefaultConfig() Config {
	return Config{
		Level:       encoding.LogLevel{Level: logging.InfoLevel},
		Vamm:        vamm.NewDefaultConfig(),
		Positions:   positions.NewDefaultConfig(),
		Funding:     funding.NewDefaultConfig(),
		Liquidation: liquidation.NewDefaultConfig(),
	}
}
