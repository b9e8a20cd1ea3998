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

package vamm

import (
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"
)

// invariantTolerance bounds the fixed-point drift we accept on
// vBase*vQuote == K after a committed fill.
var invariantTolerance = num.MustDecimalFromString("0.000001")

// Fill is a priced exchange against the virtual reserves. It is computed
// without mutating the engine; only Commit applies it. Base and Quote are
// always positive, Price is Quote/Base, Fee is charged on top of Quote.
type Fill struct {
	Base  num.Decimal
	Quote num.Decimal
	Price num.Decimal
	Fee   num.Decimal

	newBase  num.Decimal
	newQuote num.Decimal
}

// Engine holds the virtual reserves of a single market and prices fills
// off the constant-product invariant. It also owns the admission data:
// open-interest counters and the price band parameters.
type Engine struct {
	Config
	log *logging.Logger

	marketID string

	vBase  num.Decimal
	vQuote num.Decimal
	k      num.Decimal

	tradeFee     num.Decimal
	feeTilt      num.Decimal
	maxDeviation num.Decimal
	oiCap        num.Decimal

	// open interest in quote notional, maintained by the orchestrator
	// through Add/ReleaseOpenInterest
	longOI  num.Decimal
	shortOI num.Decimal
}

// New instantiates the virtual market for one instrument. The reserves
// fix K for the life of the market; there is no re-seeding.
func New(log *logging.Logger, config Config, params types.MarketParams) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:       config,
		log:          log,
		marketID:     params.ID,
		vBase:        params.VBase,
		vQuote:       params.VQuote,
		k:            params.VBase.Mul(params.VQuote),
		tradeFee:     num.DecimalFromBps(params.TradeFeeBps),
		feeTilt:      num.DecimalFromBps(params.FeeTiltBps),
		maxDeviation: num.DecimalFromBps(params.MaxDeviationBps),
		oiCap:        params.OiCapUsd,
		longOI:       num.DecimalZero(),
		shortOI:      num.DecimalZero(),
	}
}

// ReloadConf updates the internal configuration of the engine.
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

// MarkPrice is the instantaneous mid price of the curve.
func (e *Engine) MarkPrice() num.Decimal {
	return e.vQuote.Div(e.vBase)
}

// Reserves returns the current virtual reserves.
func (e *Engine) Reserves() (base, quote num.Decimal) {
	return e.vBase, e.vQuote
}

// OpenInterest returns the current open-interest notional per side.
func (e *Engine) OpenInterest() (long, short num.Decimal) {
	return e.longOI, e.shortOI
}

// QuoteExactQuote prices a fill exchanging exactly quote units of the
// quote asset. side is the exposure the taker acquires: a long buys base
// from the curve (quote in), a short sells base into the curve for
// exactly quote units out.
func (e *Engine) QuoteExactQuote(side types.Side, quote num.Decimal) (*Fill, error) {
	if !quote.IsPositive() {
		return nil, types.ErrInvalidFill
	}
	switch side {
	case types.SideLong:
		// quote in, base out
		newQuote := e.vQuote.Add(quote)
		newBase := e.k.Div(newQuote)
		base := e.vBase.Sub(newBase)
		if !base.IsPositive() || !newBase.IsPositive() {
			return nil, types.ErrInvalidFill
		}
		return e.fill(base, quote, newBase, newQuote), nil
	case types.SideShort:
		// base in, exactly quote out
		if quote.GreaterThanOrEqual(e.vQuote) {
			return nil, types.ErrInvalidFill
		}
		newQuote := e.vQuote.Sub(quote)
		newBase := e.k.Div(newQuote)
		base := newBase.Sub(e.vBase)
		if !base.IsPositive() {
			return nil, types.ErrInvalidFill
		}
		return e.fill(base, quote, newBase, newQuote), nil
	default:
		return nil, types.ErrInvalidFill
	}
}

// QuoteExactBase prices a fill exchanging exactly base units of the base
// asset. side is the exposure being unwound: reducing a long sells base
// into the curve, reducing a short buys base back from it.
func (e *Engine) QuoteExactBase(side types.Side, base num.Decimal) (*Fill, error) {
	if !base.IsPositive() {
		return nil, types.ErrInvalidFill
	}
	switch side {
	case types.SideLong:
		// base in, quote out
		newBase := e.vBase.Add(base)
		newQuote := e.k.Div(newBase)
		quote := e.vQuote.Sub(newQuote)
		if !quote.IsPositive() || !newQuote.IsPositive() {
			return nil, types.ErrInvalidFill
		}
		return e.fill(base, quote, newBase, newQuote), nil
	case types.SideShort:
		// quote in, exactly base out
		if base.GreaterThanOrEqual(e.vBase) {
			return nil, types.ErrInvalidFill
		}
		newBase := e.vBase.Sub(base)
		newQuote := e.k.Div(newBase)
		quote := newQuote.Sub(e.vQuote)
		if !quote.IsPositive() {
			return nil, types.ErrInvalidFill
		}
		return e.fill(base, quote, newBase, newQuote), nil
	default:
		return nil, types.ErrInvalidFill
	}
}

func (e *Engine) fill(base, quote, newBase, newQuote num.Decimal) *Fill {
	return &Fill{
		Base:     base,
		Quote:    quote,
		Price:    quote.Div(base),
		newBase:  newBase,
		newQuote: newQuote,
	}
}

// SetFee computes and attaches the trade fee for the fill. The fee is
// tradeFeeBps of the quote notional, tilted by feeTiltBps when the taker
// trades in the direction of the premium: with the market at a premium
// longs pay the surcharge and shorts get it rebated, mirrored at a
// discount. The rebate never takes the fee below zero.
func (e *Engine) SetFee(f *Fill, side types.Side, premium num.Decimal) {
	fee := f.Quote.Mul(e.tradeFee)
	if !premium.IsZero() && !e.feeTilt.IsZero() {
		tilt := f.Quote.Mul(e.feeTilt)
		withPremium := premium.IsPositive() == (side == types.SideLong)
		if withPremium {
			fee = fee.Add(tilt)
		} else {
			fee = num.MaxD(fee.Sub(tilt), num.DecimalZero())
		}
	}
	f.Fee = fee
}

// Commit applies a previously quoted fill to the reserves. Quotes are
// only valid until the next commit; committing a stale fill is a
// programming error and trips the invariant check.
func (e *Engine) Commit(f *Fill) {
	e.vBase = f.newBase
	e.vQuote = f.newQuote

	if prod := e.vBase.Mul(e.vQuote); prod.Sub(e.k).Abs().GreaterThan(e.k.Mul(invariantTolerance)) {
		e.log.Panic("constant product invariant broken",
			logging.MarketID(e.marketID),
			logging.Decimal("k", e.k),
			logging.Decimal("product", prod),
		)
	}
}

// CheckPriceBand rejects admission when the mark price deviates from the
// reference price by more than the configured band. Forced exits bypass
// this check; they cannot wait for the band to clear.
func (e *Engine) CheckPriceBand(refPrice num.Decimal) error {
	if !refPrice.IsPositive() {
		return types.ErrPriceBandExceeded
	}
	deviation := e.MarkPrice().Sub(refPrice).Abs().Div(refPrice)
	if deviation.GreaterThan(e.maxDeviation) {
		return types.ErrPriceBandExceeded
	}
	return nil
}

// CheckOICap rejects admission when adding notionalDelta of exposure on
// the given side would push that side's open interest past the cap.
func (e *Engine) CheckOICap(side types.Side, notionalDelta num.Decimal) error {
	if e.oiCap.IsZero() {
		// no cap configured
		return nil
	}
	oi := e.longOI
	if side == types.SideShort {
		oi = e.shortOI
	}
	if oi.Add(notionalDelta).GreaterThan(e.oiCap) {
		return types.ErrOpenInterestCapExceeded
	}
	return nil
}

// AddOpenInterest records notional of new exposure on a side.
func (e *Engine) AddOpenInterest(side types.Side, notional num.Decimal) {
	if side == types.SideShort {
		e.shortOI = e.shortOI.Add(notional)
		return
	}
	e.longOI = e.longOI.Add(notional)
}

// ReleaseOpenInterest removes notional of closed exposure from a side.
func (e *Engine) ReleaseOpenInterest(side types.Side, notional num.Decimal) {
	if side == types.SideShort {
		e.shortOI = num.MaxD(e.shortOI.Sub(notional), num.DecimalZero())
		return
	}
	e.longOI = num.MaxD(e.longOI.Sub(notional), num.DecimalZero())
}
