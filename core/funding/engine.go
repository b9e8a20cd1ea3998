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

package funding

import (
	"time"

	"code.vegaprotocol.io/perps/core/metrics"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"
)

// Update is the outcome of moving the cumulative index forward.
type Update struct {
	// Rate is the clamped per-second funding rate used for this interval.
	Rate num.Decimal
	// Delta is the index movement, Rate scaled by the elapsed seconds.
	Delta num.Decimal
	// Imbalance is the net payment that has no opposite side to receive it:
	// Delta * (longOI - shortOI). Positive means the surplus flows to the
	// insurance fund, negative means the fund pays it out.
	Imbalance num.Decimal
}

// Engine maintains the cumulative funding index for a single market. The
// index only ever moves by the clamped rate times elapsed time and is
// never reset, so a position checkpoint from any point in the past stays
// settleable.
type Engine struct {
	Config
	log *logging.Logger

	marketID      string
	factor        num.Decimal
	interestFloor num.Decimal
	rateCap       num.Decimal

	index num.Decimal
	rate  num.Decimal
}

// New instantiates a funding accumulator for the given market.
func New(log *logging.Logger, config Config, params types.MarketParams) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:        config,
		log:           log,
		marketID:      params.ID,
		factor:        params.FundingFactor,
		interestFloor: params.InterestFloor,
		rateCap:       params.FundingRateCap,
		index:         num.DecimalZero(),
		rate:          num.DecimalZero(),
	}
}

// ReloadConf updates the internal configuration.
func (e *Engine) ReloadConf(cfg Config) {
	e.log.Info("reloading configuration")
	if e.log.GetLevel() != cfg.Level.Get() {
		e.log.Info("updating log level",
			logging.String("old", e.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		e.log.SetLevel(cfg.Level.Get())
	}
	e.Config = cfg
}

// Index returns the cumulative funding index.
func (e *Engine) Index() num.Decimal {
	return e.index
}

// Rate returns the per-second rate applied by the last update.
func (e *Engine) Rate() num.Decimal {
	return e.rate
}

// Update advances the cumulative index by the clamped premium rate over
// elapsed: rate = clamp(factor * (mark-ref)/ref + interestFloor, -cap, +cap),
// index += rate * seconds. longOI and shortOI are the aggregate open
// notionals of each side, used to size the unmatched payment the caller
// routes to or from the insurance fund.
func (e *Engine) Update(elapsed time.Duration, markPrice, refPrice, longOI, shortOI num.Decimal) (Update, error) {
	if !refPrice.IsPositive() {
		return Update{}, types.ErrInvalidAmount
	}
	if elapsed <= 0 {
		return Update{}, types.ErrInvalidAmount
	}

	premium := markPrice.Sub(refPrice)
	rate := e.factor.Mul(premium.Div(refPrice)).Add(e.interestFloor)
	rate = num.ClampD(rate, e.rateCap.Neg(), e.rateCap)

	seconds := num.DecimalFromFloat(elapsed.Seconds())
	delta := rate.Mul(seconds)
	e.index = e.index.Add(delta)
	e.rate = rate
	metrics.FundingRateSet(e.marketID, rate.InexactFloat64())

	if e.log.IsDebug() {
		e.log.Debug("funding index updated",
			logging.MarketID(e.marketID),
			logging.Decimal("rate", rate),
			logging.Decimal("delta", delta),
			logging.Decimal("index", e.index),
		)
	}

	return Update{
		Rate:      rate,
		Delta:     delta,
		Imbalance: delta.Mul(longOI.Sub(shortOI)),
	}, nil
}

// Accrued computes the funding owed by a position since its checkpoint.
// Positive means the position pays, negative means it receives. The
// caller is responsible for advancing pos.FundingIndexLastSettled once
// the amount has been settled.
func (e *Engine) Accrued(pos *types.Position) num.Decimal {
	if pos == nil || pos.Size.IsZero() {
		return num.DecimalZero()
	}
	return e.index.Sub(pos.FundingIndexLastSettled).
		Mul(pos.OpenNotional).
		Mul(pos.Side().Sign())
}
