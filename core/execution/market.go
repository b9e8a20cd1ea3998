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
	"context"
	"time"

	"code.vegaprotocol.io/perps/core/collateral"
	"code.vegaprotocol.io/perps/core/events"
	"code.vegaprotocol.io/perps/core/funding"
	"code.vegaprotocol.io/perps/core/insurance"
	"code.vegaprotocol.io/perps/core/liquidation"
	"code.vegaprotocol.io/perps/core/metrics"
	"code.vegaprotocol.io/perps/core/positions"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/core/vamm"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"
)

// Market sequences every operation on one instrument through its
// engines. All admission checks run against pure quotes: once the first
// mutation is applied nothing on the commit path can fail, which is what
// makes a trade atomic without snapshots. The commit order is fixed:
// funding settlement, market fill, P&L settlement, margin moves,
// position state transition.
type Market struct {
	log    *logging.Logger
	params types.MarketParams

	broker Broker
	prices PriceSource

	mkt        *vamm.Engine
	position   *positions.Engine
	funding    *funding.Engine
	liq        *liquidation.Engine
	collateral *collateral.Engine
	insurance  *insurance.Fund
}

// NewMarket assembles the engines of a single market around the shared
// collateral ledger and insurance fund.
func NewMarket(
	log *logging.Logger,
	cfg Config,
	params types.MarketParams,
	col *collateral.Engine,
	ins *insurance.Fund,
	broker Broker,
	ts TimeService,
	prices PriceSource,
) (*Market, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Market{
		log:        log,
		params:     params,
		broker:     broker,
		prices:     prices,
		mkt:        vamm.New(log, cfg.Vamm, params),
		position:   positions.New(log, cfg.Positions, params.ID),
		funding:    funding.New(log, cfg.Funding, params),
		liq:        liquidation.New(log, cfg.Liquidation, ts, params),
		collateral: col,
		insurance:  ins,
	}, nil
}

// ReloadConf updates the configuration of every engine in the market.
func (m *Market) ReloadConf(cfg Config) {
	m.mkt.ReloadConf(cfg.Vamm)
	m.position.ReloadConf(cfg.Positions)
	m.funding.ReloadConf(cfg.Funding)
	m.liq.ReloadConf(cfg.Liquidation)
}

// ID returns the market identifier.
func (m *Market) ID() string {
	return m.params.ID
}

// Open admits and commits a brand new position: notional of exposure on
// side, backed by margin taken from the party's free balance. Returns
// the minted position id.
func (m *Market) Open(ctx context.Context, party string, side types.Side, notional, margin num.Decimal) (uint64, error) {
	timer := metrics.NewTimeCounter(m.params.ID, "execution", "Open")
	defer timer.EngineTimeCounterAdd()

	if !notional.IsPositive() || !margin.IsPositive() {
		return 0, types.ErrInvalidAmount
	}
	if margin.Mul(m.params.MaxLeverage).LessThan(notional) {
		return 0, types.ErrInsufficientMargin
	}

	ref, err := m.prices.ReferencePrice(m.params.ID)
	if err != nil {
		return 0, err
	}
	if err := m.mkt.CheckPriceBand(ref); err != nil {
		return 0, err
	}
	fill, err := m.mkt.QuoteExactQuote(side, notional)
	if err != nil {
		return 0, err
	}
	m.mkt.SetFee(fill, side, m.mkt.MarkPrice().Sub(ref))
	if err := m.mkt.CheckOICap(side, fill.Quote); err != nil {
		return 0, err
	}
	if m.freeBalance(party).LessThan(margin.Add(fill.Fee)) {
		return 0, types.ErrInsufficientFree
	}

	// commit
	m.chargeFee(ctx, party, fill.Fee)
	if err := m.collateral.Lock(ctx, m.params.ID, party, margin); err != nil {
		// free balance was checked above
		m.log.Panic("margin lock failed post-admission", logging.Error(err))
	}
	m.mkt.Commit(fill)
	m.mkt.AddOpenInterest(side, fill.Quote)
	pos := m.position.Create(party, side, fill.Base, fill.Price, margin, m.funding.Index())

	m.emitTrade(ctx, pos, side, fill.Base, fill.Quote, fill.Fee)
	return pos.ID, nil
}

// Increase grows an existing position by notional, adding addMargin of
// collateral. The aggregate exposure must stay within max leverage.
func (m *Market) Increase(ctx context.Context, party string, id uint64, notional, addMargin num.Decimal) error {
	timer := metrics.NewTimeCounter(m.params.ID, "execution", "Increase")
	defer timer.EngineTimeCounterAdd()

	if !notional.IsPositive() || addMargin.IsNegative() {
		return types.ErrInvalidAmount
	}
	pos, err := m.ownedOpen(party, id)
	if err != nil {
		return err
	}

	ref, err := m.prices.ReferencePrice(m.params.ID)
	if err != nil {
		return err
	}
	if err := m.mkt.CheckPriceBand(ref); err != nil {
		return err
	}
	side := pos.Side()
	fill, err := m.mkt.QuoteExactQuote(side, notional)
	if err != nil {
		return err
	}
	m.mkt.SetFee(fill, side, m.mkt.MarkPrice().Sub(ref))
	if err := m.mkt.CheckOICap(side, fill.Quote); err != nil {
		return err
	}

	projFree, projMargin := m.afterFunding(party, pos)
	if projFree.LessThan(addMargin.Add(fill.Fee)) {
		return types.ErrInsufficientFree
	}
	totalNotional := pos.OpenNotional.Add(fill.Quote)
	if projMargin.Add(addMargin).Mul(m.params.MaxLeverage).LessThan(totalNotional) {
		return types.ErrInsufficientMargin
	}

	// commit
	pos = m.settleFunding(ctx, pos)
	m.chargeFee(ctx, party, fill.Fee)
	if addMargin.IsPositive() {
		if err := m.collateral.Lock(ctx, m.params.ID, party, addMargin); err != nil {
			m.log.Panic("margin lock failed post-admission", logging.Error(err))
		}
	}
	m.mkt.Commit(fill)
	m.mkt.AddOpenInterest(side, fill.Quote)
	pos, err = m.position.Increase(id, fill.Base, fill.Price, addMargin)
	if err != nil {
		m.log.Panic("position increase failed post-admission", logging.Error(err))
	}

	m.emitTrade(ctx, pos, side, fill.Base, fill.Quote, fill.Fee)
	return nil
}

// Reduce unwinds fraction of a position against the curve, realising the
// proportional P&L and handing back the proportional margin. A fraction
// of one is a full close.
func (m *Market) Reduce(ctx context.Context, party string, id uint64, fraction num.Decimal) error {
	timer := metrics.NewTimeCounter(m.params.ID, "execution", "Reduce")
	defer timer.EngineTimeCounterAdd()

	one := num.DecimalOne()
	if !fraction.IsPositive() || fraction.GreaterThan(one) {
		return types.ErrInvalidFraction
	}
	pos, err := m.ownedOpen(party, id)
	if err != nil {
		return err
	}

	ref, err := m.prices.ReferencePrice(m.params.ID)
	if err != nil {
		return err
	}
	if err := m.mkt.CheckPriceBand(ref); err != nil {
		return err
	}
	side := pos.Side()
	closeSize := pos.Size.Abs().Mul(fraction)
	fill, err := m.mkt.QuoteExactBase(side, closeSize)
	if err != nil {
		return err
	}
	// unwinding trades in the opposite direction of the exposure
	m.mkt.SetFee(fill, side.Opposite(), m.mkt.MarkPrice().Sub(ref))

	closedEntryNotional := fraction.Mul(pos.OpenNotional)
	pnl := fill.Quote.Sub(closedEntryNotional).Mul(side.Sign())

	projFree, projMargin := m.afterFunding(party, pos)
	lossFromMargin, badDebt := num.DecimalZero(), num.DecimalZero()
	if pnl.IsNegative() {
		lossFromMargin = num.MinD(pnl.Neg(), projMargin)
		badDebt = pnl.Neg().Sub(lossFromMargin)
	}
	release := fraction.Mul(projMargin.Sub(lossFromMargin))
	// the fee comes out of free after settlement and release
	postFree := projFree.Add(num.MaxD(pnl, num.DecimalZero())).Add(release)
	if postFree.LessThan(fill.Fee) {
		return types.ErrInsufficientFree
	}

	// commit
	m.settleFunding(ctx, pos)
	m.mkt.Commit(fill)
	m.mkt.ReleaseOpenInterest(side, closedEntryNotional)
	if pnl.IsNegative() {
		m.collateral.SettlePnl(ctx, m.params.ID, party, lossFromMargin.Neg())
		m.position.AddMargin(id, lossFromMargin.Neg())
	} else {
		m.collateral.SettlePnl(ctx, m.params.ID, party, pnl)
	}
	if err := m.collateral.Release(ctx, m.params.ID, party, release); err != nil {
		m.log.Panic("margin release failed post-admission", logging.Error(err))
	}
	pos, err = m.position.Reduce(id, closeSize, release, false)
	if err != nil {
		m.log.Panic("position reduce failed post-admission", logging.Error(err))
	}
	m.chargeFee(ctx, party, fill.Fee)
	if badDebt.IsPositive() {
		m.coverBadDebt(ctx, party, id, badDebt, side, fill.Price)
	}

	m.emitTrade(ctx, pos, side.Opposite(), fill.Base.Neg(), fill.Quote, fill.Fee)
	return nil
}

// Close is a full reduce.
func (m *Market) Close(ctx context.Context, party string, id uint64) error {
	return m.Reduce(ctx, party, id, num.DecimalOne())
}

// Liquidate re-validates the position's health at the current mark price
// and, if it is indeed undercollateralised, force-closes part or all of
// it. The caller earns the liquidator slice of the penalty. A failed
// health check mutates nothing.
func (m *Market) Liquidate(ctx context.Context, liquidator string, id uint64) error {
	timer := metrics.NewTimeCounter(m.params.ID, "execution", "Liquidate")
	defer timer.EngineTimeCounterAdd()

	pos, err := m.position.Get(id)
	if err != nil {
		return err
	}
	mark := m.mkt.MarkPrice()
	if err := m.liq.CheckHealth(pos, mark); err != nil {
		return err
	}
	// the curve must be able to absorb the largest close the plan can ask
	// for; feasibility is monotone in size, so checking the full position
	// here keeps a rejected liquidation free of any mutation
	if _, err := m.mkt.QuoteExactBase(pos.Side(), pos.Size.Abs()); err != nil {
		return err
	}

	// commit
	pos = m.settleFunding(ctx, pos)
	plan := m.liq.BuildPlan(pos, mark)
	fill, err := m.mkt.QuoteExactBase(pos.Side(), plan.CloseSize)
	if err != nil {
		m.log.Panic("liquidation fill failed after admission", logging.Error(err))
	}
	m.mkt.Commit(fill)
	closedEntryNotional := plan.Fraction.Mul(pos.OpenNotional)
	m.mkt.ReleaseOpenInterest(pos.Side(), closedEntryNotional)

	pnl := fill.Quote.Sub(closedEntryNotional).Mul(pos.Side().Sign())
	margin := pos.Margin
	badDebt := num.DecimalZero()
	switch {
	case pnl.IsNegative():
		loss := pnl.Neg()
		paid := num.MinD(loss, margin)
		m.collateral.SettlePnl(ctx, m.params.ID, pos.Party, paid.Neg())
		m.position.AddMargin(id, paid.Neg())
		margin = margin.Sub(paid)
		badDebt = loss.Sub(paid)
	case pnl.IsPositive():
		m.collateral.SettlePnl(ctx, m.params.ID, pos.Party, pnl)
	}

	penalty, reward := m.liq.Penalty(fill.Quote)
	penalty = num.MinD(penalty, margin)
	reward = num.MinD(reward, penalty)
	if penalty.IsPositive() {
		if err := m.collateral.DebitLocked(ctx, m.params.ID, pos.Party, penalty, types.TransferTypeLiquidationPenalty); err != nil {
			m.log.Panic("penalty debit failed", logging.Error(err))
		}
		m.position.AddMargin(id, penalty.Neg())
		margin = margin.Sub(penalty)
		m.collateral.CreditFree(ctx, m.params.ID, liquidator, reward, types.TransferTypeLiquidatorReward)
		if err := m.insurance.Credit(ctx, m.params.ID, penalty.Sub(reward)); err != nil {
			m.log.Panic("penalty credit failed", logging.Error(err))
		}
	}

	if plan.Full {
		// whatever margin survives the loss and the penalty goes back
		if err := m.collateral.Release(ctx, m.params.ID, pos.Party, margin); err != nil {
			m.log.Panic("margin release failed", logging.Error(err))
		}
		if _, err := m.position.Reduce(id, plan.CloseSize, margin, true); err != nil {
			m.log.Panic("liquidation reduce failed", logging.Error(err))
		}
	} else {
		if _, err := m.position.Reduce(id, plan.CloseSize, num.DecimalZero(), true); err != nil {
			m.log.Panic("liquidation reduce failed", logging.Error(err))
		}
		m.position.SetCooldown(id, plan.CooldownUntil)
	}
	if badDebt.IsPositive() {
		m.coverBadDebt(ctx, pos.Party, id, badDebt, pos.Side(), fill.Price)
	}

	kind := "partial"
	if plan.Full {
		kind = "full"
	}
	metrics.LiquidationCounterInc(m.params.ID, kind)
	m.broker.Send(events.NewLiquidationEvent(ctx, m.params.ID, pos.Party, id,
		plan.Fraction, fill.Quote, penalty, plan.Full))
	if updated, err := m.position.Get(id); err == nil {
		m.broker.Send(events.NewPositionStateEvent(ctx, updated))
	}
	m.snapshotMetrics()

	m.log.Info("position liquidated",
		logging.MarketID(m.params.ID),
		logging.PartyID(pos.Party),
		logging.PositionID(id),
		logging.Decimal("fraction", plan.Fraction),
		logging.Decimal("penalty", penalty),
		logging.Bool("full", plan.Full),
	)
	return nil
}

// UpdateFunding moves the funding index forward by elapsed and routes
// the open-interest imbalance between the settlement pool and the
// insurance fund. Individual positions settle lazily on their next
// mutation.
func (m *Market) UpdateFunding(ctx context.Context, elapsed time.Duration) error {
	ref, err := m.prices.ReferencePrice(m.params.ID)
	if err != nil {
		return err
	}
	long, short := m.position.OpenNotionalBySide()
	upd, err := m.funding.Update(elapsed, m.mkt.MarkPrice(), ref, long, short)
	if err != nil {
		return err
	}

	switch {
	case upd.Imbalance.IsPositive():
		m.collateral.DrainPool(m.params.ID, upd.Imbalance)
		if err := m.insurance.Credit(ctx, m.params.ID, upd.Imbalance); err != nil {
			m.log.Panic("funding imbalance credit failed", logging.Error(err))
		}
	case upd.Imbalance.IsNegative():
		need := upd.Imbalance.Neg()
		taken := m.insurance.Debit(ctx, m.params.ID, need)
		m.collateral.TopUpPool(m.params.ID, taken)
		if taken.LessThan(need) {
			m.log.Warn("insurance fund could not fully pay the funding imbalance",
				logging.MarketID(m.params.ID),
				logging.Decimal("need", need),
				logging.Decimal("paid", taken),
			)
		}
	}

	m.broker.Send(events.NewFundingUpdateEvent(ctx, m.params.ID, upd.Rate, m.funding.Index(), upd.Imbalance))
	return nil
}

// Data returns the read-only snapshot of the market.
func (m *Market) Data() types.MarketData {
	long, short := m.mkt.OpenInterest()
	vBase, vQuote := m.mkt.Reserves()
	return types.MarketData{
		Market:            m.params.ID,
		MarkPrice:         m.mkt.MarkPrice(),
		VBase:             vBase,
		VQuote:            vQuote,
		LongOpenInterest:  long,
		ShortOpenInterest: short,
		FundingIndex:      m.funding.Index(),
		FundingRate:       m.funding.Rate(),
		OpenPositionCount: uint64(m.position.OpenCount()),
	}
}

// Position returns a copy of the position, open or closed.
func (m *Market) Position(id uint64) (*types.Position, error) {
	return m.position.Get(id)
}

// PartyPositions returns the party's open positions in this market.
func (m *Market) PartyPositions(party string) []*types.Position {
	return m.position.ByParty(party)
}

// PoolBalance exposes the settlement pool for the conservation check.
func (m *Market) PoolBalance() num.Decimal {
	return m.collateral.PoolBalance(m.params.ID)
}

// settleFunding settles the position's accrued funding and advances its
// checkpoint. Part of every commit, before any other money moves.
func (m *Market) settleFunding(ctx context.Context, pos *types.Position) *types.Position {
	accrued := m.funding.Accrued(pos)
	if !accrued.IsZero() {
		res := m.collateral.ApplyFunding(ctx, m.params.ID, pos.Party, accrued.Neg(), pos.Margin)
		if res.FromLocked.IsPositive() {
			m.position.AddMargin(pos.ID, res.FromLocked.Neg())
		}
		if res.Shortfall.IsPositive() {
			// funding the account cannot pay is bad debt for the pool
			taken := m.insurance.Debit(ctx, m.params.ID, res.Shortfall)
			m.collateral.TopUpPool(m.params.ID, taken)
			if taken.LessThan(res.Shortfall) {
				m.log.Warn("unpaid funding left in the pool",
					logging.MarketID(m.params.ID),
					logging.PositionID(pos.ID),
					logging.Decimal("unpaid", res.Shortfall.Sub(taken)),
				)
			}
		}
		m.broker.Send(events.NewFundingPaymentEvent(ctx, m.params.ID, pos.Party, pos.ID, accrued))
	}
	m.position.Checkpoint(pos.ID, m.funding.Index())
	updated, err := m.position.Get(pos.ID)
	if err != nil {
		m.log.Panic("position vanished during funding settlement", logging.Error(err))
	}
	return updated
}

// coverBadDebt routes a realised loss the position's margin could not
// pay: the insurance fund covers what it can into the settlement pool,
// and a depleted fund triggers auto-deleveraging for the remainder.
func (m *Market) coverBadDebt(ctx context.Context, party string, id uint64, amount num.Decimal, closedSide types.Side, triggerPrice num.Decimal) {
	uncovered, err := m.insurance.CoverShortfall(ctx, m.params.ID, party, id, amount)
	m.collateral.TopUpPool(m.params.ID, amount.Sub(uncovered))
	if err == nil {
		return
	}
	if uncovered.IsPositive() {
		m.autoDeleverage(ctx, uncovered, closedSide, triggerPrice)
	}
}

// autoDeleverage force-reduces the most profitable opposite-side
// positions at the triggering fill price, withholding their payout up to
// the remaining shortfall. The withheld profit stays in the settlement
// pool, repairing the hole the bad debt left.
func (m *Market) autoDeleverage(ctx context.Context, shortfall num.Decimal, closedSide types.Side, price num.Decimal) {
	m.log.Warn("auto-deleveraging",
		logging.MarketID(m.params.ID),
		logging.Decimal("shortfall", shortfall),
		logging.Decimal("trigger-price", price),
	)

	for _, pos := range m.liq.SelectForADL(m.position.OpenPositions(), closedSide, price) {
		if !shortfall.IsPositive() {
			break
		}
		pnl := pos.UnrealisedPnl(price)
		if !pnl.IsPositive() {
			// sorted by profit, nothing further can absorb anything
			break
		}
		pos = m.settleFunding(ctx, pos)
		if !pos.IsOpen() {
			continue
		}

		f := num.MinD(num.DecimalOne(), shortfall.Div(pnl))
		closeSize := pos.Size.Abs().Mul(f)
		realised := f.Mul(pnl)
		haircut := num.MinD(realised, shortfall)
		payout := realised.Sub(haircut)

		m.collateral.SettlePnl(ctx, m.params.ID, pos.Party, payout)
		release := f.Mul(pos.Margin)
		if err := m.collateral.Release(ctx, m.params.ID, pos.Party, release); err != nil {
			m.log.Panic("deleverage release failed", logging.Error(err))
		}
		if _, err := m.position.Reduce(pos.ID, closeSize, release, false); err != nil {
			m.log.Panic("deleverage reduce failed", logging.Error(err))
		}
		m.mkt.ReleaseOpenInterest(pos.Side(), f.Mul(pos.OpenNotional))
		shortfall = shortfall.Sub(haircut)

		metrics.LiquidationCounterInc(m.params.ID, "adl")
		m.broker.Send(events.NewAutoDeleverageEvent(ctx, m.params.ID, pos.Party, pos.ID, closeSize, haircut))
	}

	if shortfall.IsPositive() {
		m.log.Error("shortfall left unresolved after deleveraging",
			logging.MarketID(m.params.ID),
			logging.Decimal("remaining", shortfall),
		)
	}
}

// afterFunding projects the party's free balance and the position's
// margin as they will stand once the accrued funding settles. The
// projection mirrors ApplyFunding exactly so admission checks computed
// from it hold post-commit.
func (m *Market) afterFunding(party string, pos *types.Position) (free, margin num.Decimal) {
	free, locked := num.DecimalZero(), num.DecimalZero()
	if acc, ok := m.collateral.GetPartyAccount(party); ok {
		free, locked = acc.Free, acc.Locked
	}
	margin = pos.Margin

	accrued := m.funding.Accrued(pos)
	switch {
	case accrued.IsPositive():
		fromFree := num.MinD(free, accrued)
		free = free.Sub(fromFree)
		fromLocked := num.MinD(num.MinD(locked, margin), accrued.Sub(fromFree))
		margin = margin.Sub(fromLocked)
	case accrued.IsNegative():
		free = free.Add(accrued.Neg())
	}
	return free, margin
}

func (m *Market) ownedOpen(party string, id uint64) (*types.Position, error) {
	pos, err := m.position.Get(id)
	if err != nil {
		return nil, err
	}
	if pos.Party != party {
		return nil, types.ErrUnauthorized
	}
	if !pos.IsOpen() {
		return nil, types.ErrPositionClosed
	}
	return pos, nil
}

func (m *Market) freeBalance(party string) num.Decimal {
	if acc, ok := m.collateral.GetPartyAccount(party); ok {
		return acc.Free
	}
	return num.DecimalZero()
}

// chargeFee moves a trade fee from the party's free balance into the
// insurance fund.
func (m *Market) chargeFee(ctx context.Context, party string, fee num.Decimal) {
	if !fee.IsPositive() {
		return
	}
	if err := m.collateral.TransferToFee(ctx, m.params.ID, party, fee); err != nil {
		m.log.Panic("fee transfer failed post-admission", logging.Error(err))
	}
	if err := m.insurance.Credit(ctx, m.params.ID, fee); err != nil {
		m.log.Panic("fee credit failed", logging.Error(err))
	}
}

func (m *Market) emitTrade(ctx context.Context, pos *types.Position, side types.Side, sizeDelta, notional, fee num.Decimal) {
	mark := m.mkt.MarkPrice()
	m.broker.Send(events.NewTradeEvent(ctx, m.params.ID, pos.Party, pos.ID,
		side.String(), sizeDelta, notional, fee, mark))
	m.broker.Send(events.NewPositionStateEvent(ctx, pos))
	metrics.TradeCounterInc(m.params.ID, side.String())
	m.snapshotMetrics()
}

func (m *Market) snapshotMetrics() {
	long, short := m.mkt.OpenInterest()
	metrics.OpenInterestSet(m.params.ID, "long", long.InexactFloat64())
	metrics.OpenInterestSet(m.params.ID, "short", short.InexactFloat64())
	metrics.MarkPriceSet(m.params.ID, m.mkt.MarkPrice().InexactFloat64())
}
