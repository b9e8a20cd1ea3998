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

package positions

import (
	"sort"
	"time"

	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"golang.org/x/exp/maps"
)

// Engine owns every position of a single market, open and closed.
// Positions are addressed by the uint64 ids the engine mints; an
// external identity layer maps its own handles onto these ids. The
// engine performs pure bookkeeping, the orchestrator is responsible for
// settling funding and P&L before calling any mutator.
type Engine struct {
	Config
	log *logging.Logger

	marketID string
	lastID   uint64
	arena    map[uint64]*types.Position
}

// New instantiates a new positions engine for the given market.
func New(log *logging.Logger, config Config, marketID string) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:   config,
		log:      log,
		marketID: marketID,
		arena:    map[uint64]*types.Position{},
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

// Create mints a new open position and returns a copy of it. size is in
// base units and must be positive, the sign is taken from side.
func (e *Engine) Create(
	party string,
	side types.Side,
	size, entryPrice, margin, fundingIndex num.Decimal,
) *types.Position {
	e.lastID++
	pos := &types.Position{
		ID:                      e.lastID,
		Party:                   party,
		Market:                  e.marketID,
		Size:                    size.Mul(side.Sign()),
		EntryPrice:              entryPrice,
		OpenNotional:            size.Mul(entryPrice),
		Margin:                  margin,
		FundingIndexLastSettled: fundingIndex,
		Status:                  types.PositionStatusOpen,
	}
	e.arena[pos.ID] = pos

	if e.log.IsDebug() {
		e.log.Debug("position created",
			logging.MarketID(e.marketID),
			logging.PartyID(party),
			logging.PositionID(pos.ID),
			logging.Decimal("size", pos.Size),
			logging.Decimal("entry-price", pos.EntryPrice),
		)
	}
	return pos.Clone()
}

// Increase grows the position by size base units filled at fillPrice and
// attributes addMargin of extra collateral to it. The entry price is
// recomputed as the volume-weighted average of the old exposure and the
// new fill.
func (e *Engine) Increase(id uint64, size, fillPrice, addMargin num.Decimal) (*types.Position, error) {
	pos, err := e.open(id)
	if err != nil {
		return nil, err
	}

	oldAbs := pos.Size.Abs()
	newAbs := oldAbs.Add(size)
	pos.EntryPrice = oldAbs.Mul(pos.EntryPrice).
		Add(size.Mul(fillPrice)).
		Div(newAbs)
	pos.Size = newAbs.Mul(pos.Side().Sign())
	pos.OpenNotional = pos.OpenNotional.Add(size.Mul(fillPrice))
	pos.Margin = pos.Margin.Add(addMargin)
	pos.Status = types.PositionStatusOpen
	return pos.Clone(), nil
}

// Reduce shrinks the position by size base units. The entry price is
// left untouched, open notional scales down with the closed fraction and
// releaseMargin is taken off the attributed margin (zero on a
// liquidation reduce, where margin is retained so the ratio recovers).
// A position whose size reaches exactly zero transitions to Closed; a
// liquidation reduce that leaves size behind marks it
// PartiallyLiquidated.
func (e *Engine) Reduce(id uint64, size, releaseMargin num.Decimal, liquidation bool) (*types.Position, error) {
	pos, err := e.open(id)
	if err != nil {
		return nil, err
	}
	abs := pos.Size.Abs()
	if size.GreaterThan(abs) {
		return nil, types.ErrInvalidFraction
	}

	fraction := size.Div(abs)
	pos.Size = abs.Sub(size).Mul(pos.Side().Sign())
	pos.OpenNotional = pos.OpenNotional.Mul(num.DecimalOne().Sub(fraction))
	pos.Margin = pos.Margin.Sub(releaseMargin)

	switch {
	case pos.Size.IsZero():
		pos.OpenNotional = num.DecimalZero()
		pos.Status = types.PositionStatusClosed
	case liquidation:
		pos.Status = types.PositionStatusPartiallyLiquidated
	default:
		pos.Status = types.PositionStatusOpen
	}

	if e.log.IsDebug() {
		e.log.Debug("position reduced",
			logging.MarketID(e.marketID),
			logging.PositionID(id),
			logging.Decimal("closed-size", size),
			logging.String("status", pos.Status.String()),
		)
	}
	return pos.Clone(), nil
}

// AddMargin adjusts the margin attributed to the position. Negative
// deltas are used when funding is drawn out of locked margin.
func (e *Engine) AddMargin(id uint64, delta num.Decimal) error {
	pos, err := e.open(id)
	if err != nil {
		return err
	}
	pos.Margin = pos.Margin.Add(delta)
	return nil
}

// Checkpoint advances the position's funding checkpoint to index after
// the orchestrator settled the accrued amount.
func (e *Engine) Checkpoint(id uint64, index num.Decimal) error {
	pos, err := e.open(id)
	if err != nil {
		return err
	}
	pos.FundingIndexLastSettled = index
	return nil
}

// SetCooldown blocks further liquidations of the position until then.
func (e *Engine) SetCooldown(id uint64, until time.Time) error {
	pos, err := e.open(id)
	if err != nil {
		return err
	}
	pos.LiquidationCooldownUntil = until
	return nil
}

// Get returns a copy of the position, open or closed.
func (e *Engine) Get(id uint64) (*types.Position, error) {
	pos, ok := e.arena[id]
	if !ok {
		return nil, types.ErrPositionNotFound
	}
	return pos.Clone(), nil
}

// ByParty returns copies of the party's open positions ordered by id.
func (e *Engine) ByParty(party string) []*types.Position {
	out := []*types.Position{}
	for _, pos := range e.sorted() {
		if pos.Party == party && pos.IsOpen() {
			out = append(out, pos.Clone())
		}
	}
	return out
}

// OpenPositions returns copies of all open positions ordered by id.
func (e *Engine) OpenPositions() []*types.Position {
	out := []*types.Position{}
	for _, pos := range e.sorted() {
		if pos.IsOpen() {
			out = append(out, pos.Clone())
		}
	}
	return out
}

// OpenCount returns the number of positions still carrying exposure.
func (e *Engine) OpenCount() int {
	n := 0
	for _, pos := range e.arena {
		if pos.IsOpen() {
			n++
		}
	}
	return n
}

// OpenNotionalBySide sums the open notional of each side, the weights
// the funding imbalance transfer is computed from.
func (e *Engine) OpenNotionalBySide() (long, short num.Decimal) {
	long, short = num.DecimalZero(), num.DecimalZero()
	for _, pos := range e.arena {
		if !pos.IsOpen() {
			continue
		}
		if pos.Side() == types.SideLong {
			long = long.Add(pos.OpenNotional)
		} else {
			short = short.Add(pos.OpenNotional)
		}
	}
	return long, short
}

func (e *Engine) open(id uint64) (*types.Position, error) {
	pos, ok := e.arena[id]
	if !ok {
		return nil, types.ErrPositionNotFound
	}
	if !pos.IsOpen() {
		return nil, types.ErrPositionClosed
	}
	return pos, nil
}

func (e *Engine) sorted() []*types.Position {
	ids := maps.Keys(e.arena)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*types.Position, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.arena[id])
	}
	return out
}
