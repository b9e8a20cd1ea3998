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
	"sort"
	"time"

	"code.vegaprotocol.io/perps/core/collateral"
	"code.vegaprotocol.io/perps/core/events"
	"code.vegaprotocol.io/perps/core/insurance"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"golang.org/x/exp/maps"
)

//go:generate go run github.com/golang/mock/mockgen -destination mocks/time_service_mock.go -package mocks code.vegaprotocol.io/perps/core/execution TimeService
//go:generate go run github.com/golang/mock/mockgen -destination mocks/price_source_mock.go -package mocks code.vegaprotocol.io/perps/core/execution PriceSource

// Broker send events.
type Broker interface {
	Send(event events.Event)
	SendBatch(events []events.Event)
}

// TimeService provides the current time.
type TimeService interface {
	GetTimeNow() time.Time
}

// PriceSource supplies the external reference price for a market, e.g. a
// median of oracle and TWAP feeds. The engine treats it as an opaque
// read with no freshness guarantee stronger than recent.
type PriceSource interface {
	ReferencePrice(market string) (num.Decimal, error)
}

// Engine is the root of the trading core: it hosts every market over one
// shared collateral ledger and one shared insurance fund, and is the
// sole entry point for user actions, liquidation triggers and funding
// updates. A single caller drives it; there is no internal locking.
type Engine struct {
	Config
	log *logging.Logger

	collateral  *collateral.Engine
	insurance   *insurance.Fund
	broker      Broker
	timeService TimeService
	prices      PriceSource

	markets map[string]*Market
}

// New instantiates the execution engine.
func New(
	log *logging.Logger,
	config Config,
	col *collateral.Engine,
	ins *insurance.Fund,
	broker Broker,
	ts TimeService,
	prices PriceSource,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:      config,
		log:         log,
		collateral:  col,
		insurance:   ins,
		broker:      broker,
		timeService: ts,
		prices:      prices,
		markets:     map[string]*Market{},
	}
}

// ReloadConf updates the configuration of the engine and of every market.
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
	for _, mkt := range e.markets {
		mkt.ReloadConf(cfg)
	}
}

// CreateMarket initialises a new market from its parameters.
func (e *Engine) CreateMarket(ctx context.Context, params types.MarketParams) error {
	if _, ok := e.markets[params.ID]; ok {
		return types.ErrMarketAlreadyExists
	}
	mkt, err := NewMarket(e.log, e.Config, params,
		e.collateral, e.insurance, e.broker, e.timeService, e.prices)
	if err != nil {
		return err
	}
	e.markets[params.ID] = mkt

	e.log.Info("market created",
		logging.MarketID(params.ID),
		logging.Decimal("v-base", params.VBase),
		logging.Decimal("v-quote", params.VQuote),
	)
	e.broker.Send(events.NewMarketCreatedEvent(ctx, params))
	return nil
}

// MarketIDs returns the ids of all markets, sorted.
func (e *Engine) MarketIDs() []string {
	ids := maps.Keys(e.markets)
	sort.Strings(ids)
	return ids
}

// Deposit credits a party's free collateral.
func (e *Engine) Deposit(ctx context.Context, party string, amount num.Decimal) error {
	return e.collateral.Deposit(ctx, party, amount)
}

// Withdraw debits a party's free collateral.
func (e *Engine) Withdraw(ctx context.Context, party string, amount num.Decimal) error {
	return e.collateral.Withdraw(ctx, party, amount)
}

// OpenPosition opens a new position in the given market.
func (e *Engine) OpenPosition(ctx context.Context, market, party string, side types.Side, notional, margin num.Decimal) (uint64, error) {
	mkt, err := e.market(market)
	if err != nil {
		return 0, err
	}
	return mkt.Open(ctx, party, side, notional, margin)
}

// IncreasePosition grows an existing position.
func (e *Engine) IncreasePosition(ctx context.Context, market, party string, id uint64, notional, addMargin num.Decimal) error {
	mkt, err := e.market(market)
	if err != nil {
		return err
	}
	return mkt.Increase(ctx, party, id, notional, addMargin)
}

// ReducePosition unwinds a fraction of an existing position.
func (e *Engine) ReducePosition(ctx context.Context, market, party string, id uint64, fraction num.Decimal) error {
	mkt, err := e.market(market)
	if err != nil {
		return err
	}
	return mkt.Reduce(ctx, party, id, fraction)
}

// ClosePosition unwinds an existing position in full.
func (e *Engine) ClosePosition(ctx context.Context, market, party string, id uint64) error {
	mkt, err := e.market(market)
	if err != nil {
		return err
	}
	return mkt.Close(ctx, party, id)
}

// Liquidate force-closes an unhealthy position. Any caller may trigger
// it; health is re-validated internally.
func (e *Engine) Liquidate(ctx context.Context, market, liquidator string, id uint64) error {
	mkt, err := e.market(market)
	if err != nil {
		return err
	}
	return mkt.Liquidate(ctx, liquidator, id)
}

// UpdateFunding advances a market's funding index by elapsed.
func (e *Engine) UpdateFunding(ctx context.Context, market string, elapsed time.Duration) error {
	mkt, err := e.market(market)
	if err != nil {
		return err
	}
	return mkt.UpdateFunding(ctx, elapsed)
}

// MarketData returns the read-only snapshot of a market.
func (e *Engine) MarketData(market string) (types.MarketData, error) {
	mkt, err := e.market(market)
	if err != nil {
		return types.MarketData{}, err
	}
	return mkt.Data(), nil
}

// Position returns a copy of a position in a market.
func (e *Engine) Position(market string, id uint64) (*types.Position, error) {
	mkt, err := e.market(market)
	if err != nil {
		return nil, err
	}
	return mkt.Position(id)
}

// PartyPositions returns a party's open positions in a market.
func (e *Engine) PartyPositions(market, party string) ([]*types.Position, error) {
	mkt, err := e.market(market)
	if err != nil {
		return nil, err
	}
	return mkt.PartyPositions(party), nil
}

// PartyAccount returns a copy of the party's collateral balances.
func (e *Engine) PartyAccount(party string) (*types.PartyAccount, bool) {
	return e.collateral.GetPartyAccount(party)
}

// InsuranceBalance returns the insurance fund balance.
func (e *Engine) InsuranceBalance() num.Decimal {
	return e.insurance.Balance()
}

// ConservationDrift is the self-check of the money supply: party
// balances plus settlement pools plus the insurance fund, minus net
// deposits. It is zero after every completed operation; anything else
// means a transfer lost or invented money.
func (e *Engine) ConservationDrift() num.Decimal {
	return e.collateral.TotalBalance().
		Add(e.insurance.Balance()).
		Sub(e.collateral.NetDeposits())
}

func (e *Engine) market(id string) (*Market, error) {
	mkt, ok := e.markets[id]
	if !ok {
		return nil, types.ErrMarketNotFound
	}
	return mkt, nil
}
