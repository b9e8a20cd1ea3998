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
	"sort"
	"time"

	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/time_service_mock.go -package mocks code.vegaprotocol.io/perps/core/liquidation TimeService

// TimeService provides the current time for the liquidation cooldown.
type TimeService interface {
	GetTimeNow() time.Time
}

// Plan is the sizing decision for one liquidation. The orchestrator
// executes it through the regular commit path.
type Plan struct {
	// Full is true when the position is closed in its entirety.
	Full bool
	// Fraction of the position size to close, 1 when Full.
	Fraction num.Decimal
	// CloseSize is Fraction applied to the absolute position size.
	CloseSize num.Decimal
	// CooldownUntil shields a partially liquidated position from
	// another liquidation until this time.
	CooldownUntil time.Time
}

// Engine decides whether and how much of a position to liquidate. It
// performs no mutation itself: health is re-checked here against the
// current mark price and the sizing handed back to the orchestrator.
type Engine struct {
	Config
	log *logging.Logger

	timeService TimeService

	marketID        string
	mmr             num.Decimal
	penaltyRatio    num.Decimal
	liquidatorRatio num.Decimal
	fullCloseBelow  num.Decimal
	targetRatio     num.Decimal
}

// New instantiates a liquidation engine for the given market.
func New(log *logging.Logger, config Config, ts TimeService, params types.MarketParams) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	mmr := num.DecimalFromBps(params.MmrBps)
	return &Engine{
		Config:          config,
		log:             log,
		timeService:     ts,
		marketID:        params.ID,
		mmr:             mmr,
		penaltyRatio:    num.DecimalFromBps(params.PenaltyBps),
		liquidatorRatio: num.DecimalFromBps(params.LiquidatorFeeBps),
		fullCloseBelow:  mmr.Mul(num.DecimalFromFloat(config.FullCloseFactor)),
		targetRatio:     mmr.Add(num.DecimalFromBps(config.TargetBufferBps)),
	}
}

// ReloadConf updates the internal configuration. The sizing parameters
// derived from the market are fixed, only ambient settings move.
func (e *Engine) ReloadConf(cfg Config) {
	e.log.Info("reloading configuration")
	if e.log.GetLevel() != cfg.Level.Get() {
		e.log.Info("updating log level",
			logging.String("old", e.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		e.log.SetLevel(cfg.Level.Get())
	}
	e.fullCloseBelow = e.mmr.Mul(num.DecimalFromFloat(cfg.FullCloseFactor))
	e.targetRatio = e.mmr.Add(num.DecimalFromBps(cfg.TargetBufferBps))
	e.Config = cfg
}

// CheckHealth re-validates that the position is liquidatable at the
// given mark price. It never mutates anything, so a failed check leaves
// the ledger byte-identical.
func (e *Engine) CheckHealth(pos *types.Position, markPrice num.Decimal) error {
	if pos == nil || !pos.IsOpen() {
		return types.ErrPositionClosed
	}
	if e.timeService.GetTimeNow().Before(pos.LiquidationCooldownUntil) {
		return types.ErrLiquidationCooldown
	}
	if pos.MarginRatio(markPrice).GreaterThanOrEqual(e.mmr) {
		return types.ErrPositionNotLiquidatable
	}
	return nil
}

// BuildPlan sizes the close for an already health-checked position.
// Deep underwater (ratio below FullCloseFactor * mmr) or with no sizing
// headroom, the whole position goes. Otherwise the smallest fraction f
// restoring the target ratio t is closed: with equity E, notional N and
// penalty ratio p, the post-close ratio (E - fNp) / ((1-f)N) = t gives
// f = (tN - E) / (N(t - p)). Margin is retained on the close, which is
// what makes the surviving ratio recover.
func (e *Engine) BuildPlan(pos *types.Position, markPrice num.Decimal) Plan {
	ratio := pos.MarginRatio(markPrice)
	now := e.timeService.GetTimeNow()

	if ratio.LessThan(e.fullCloseBelow) {
		return e.fullPlan(pos, now)
	}

	t := e.targetRatio
	if t.LessThanOrEqual(e.penaltyRatio) {
		// no fraction can restore the target once the penalty eats
		// more than the target ratio per unit closed
		return e.fullPlan(pos, now)
	}
	notional := pos.Notional(markPrice)
	equity := pos.Equity(markPrice)
	f := t.Mul(notional).Sub(equity).
		Div(notional.Mul(t.Sub(e.penaltyRatio)))
	if f.GreaterThanOrEqual(num.DecimalOne()) {
		return e.fullPlan(pos, now)
	}
	if !f.IsPositive() {
		// health said liquidatable, so the closed form cannot land
		// here unless the inputs are inconsistent
		e.log.Panic("non-positive liquidation fraction",
			logging.MarketID(e.marketID),
			logging.PositionID(pos.ID),
			logging.Decimal("fraction", f),
		)
	}

	return Plan{
		Fraction:      f,
		CloseSize:     pos.Size.Abs().Mul(f),
		CooldownUntil: now.Add(e.Cooldown.Get()),
	}
}

// Penalty computes the liquidation penalty on the closed notional and
// how it splits between the liquidator and the insurance fund.
func (e *Engine) Penalty(closedNotional num.Decimal) (penalty, liquidatorReward num.Decimal) {
	penalty = e.penaltyRatio.Mul(closedNotional)
	liquidatorReward = e.liquidatorRatio.Mul(closedNotional)
	return penalty, liquidatorReward
}

// SelectForADL picks the deleveraging counterparties for a bad-debt
// event on closedSide: open positions on the opposite side, most
// profitable first, ties broken by id for determinism.
func (e *Engine) SelectForADL(open []*types.Position, closedSide types.Side, markPrice num.Decimal) []*types.Position {
	oppose := closedSide.Opposite()
	out := []*types.Position{}
	for _, pos := range open {
		if pos.Side() == oppose {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi := out[i].UnrealisedPnl(markPrice)
		pj := out[j].UnrealisedPnl(markPrice)
		if !pi.Equal(pj) {
			return pi.GreaterThan(pj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) fullPlan(pos *types.Position, now time.Time) Plan {
	return Plan{
		Full:          true,
		Fraction:      num.DecimalOne(),
		CloseSize:     pos.Size.Abs(),
		CooldownUntil: now.Add(e.Cooldown.Get()),
	}
}
