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

package insurance

import (
	"context"

	"code.vegaprotocol.io/perps/core/events"
	"code.vegaprotocol.io/perps/core/metrics"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"
)

// Broker send events.
type Broker interface {
	Send(event events.Event)
}

// Fund is the shared insurance pool backing all markets. Trade fees and
// liquidation penalties accrue into it, bad debt is drawn out of it.
type Fund struct {
	Config
	log *logging.Logger

	broker  Broker
	balance num.Decimal
}

// New instantiates a new insurance fund with a zero balance.
func New(log *logging.Logger, config Config, broker Broker) *Fund {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Fund{
		Config:  config,
		log:     log,
		broker:  broker,
		balance: num.DecimalZero(),
	}
}

// ReloadConf updates the internal configuration.
func (f *Fund) ReloadConf(cfg Config) {
	f.log.Info("reloading configuration")
	if f.log.GetLevel() != cfg.Level.Get() {
		f.log.Info("updating log level",
			logging.String("old", f.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		f.log.SetLevel(cfg.Level.Get())
	}
	f.Config = cfg
}

// Balance returns the current fund balance.
func (f *Fund) Balance() num.Decimal {
	return f.balance
}

// Credit adds amount to the fund. Amounts must be non-negative.
func (f *Fund) Credit(ctx context.Context, market string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	f.balance = f.balance.Add(amount)
	metrics.InsuranceBalanceSet(f.balance.InexactFloat64())

	if f.log.IsDebug() {
		f.log.Debug("insurance fund credited",
			logging.MarketID(market),
			logging.Decimal("amount", amount),
			logging.Decimal("balance", f.balance),
		)
	}
	return nil
}

// Debit removes up to amount from the fund, clamped at the available
// balance, and returns the amount actually taken. Used for funding
// imbalance payments flowing out of the fund.
func (f *Fund) Debit(ctx context.Context, market string, amount num.Decimal) num.Decimal {
	if !amount.IsPositive() {
		return num.DecimalZero()
	}
	taken := num.MinD(amount, f.balance)
	f.balance = f.balance.Sub(taken)
	metrics.InsuranceBalanceSet(f.balance.InexactFloat64())

	if f.log.IsDebug() {
		f.log.Debug("insurance fund debited",
			logging.MarketID(market),
			logging.Decimal("amount", taken),
			logging.Decimal("balance", f.balance),
		)
	}
	return taken
}

// CoverShortfall draws amount of bad debt from the fund, attributed to
// the position that produced it. If the fund cannot cover the full
// amount it pays out what it holds and returns ErrFundDepleted along
// with the uncovered remainder, which the caller resolves through
// deleveraging.
func (f *Fund) CoverShortfall(ctx context.Context, market, party string, positionID uint64, amount num.Decimal) (num.Decimal, error) {
	if amount.IsNegative() {
		return num.DecimalZero(), types.ErrInvalidAmount
	}
	if amount.IsZero() {
		return num.DecimalZero(), nil
	}

	covered := num.MinD(amount, f.balance)
	uncovered := amount.Sub(covered)
	f.balance = f.balance.Sub(covered)
	metrics.InsuranceBalanceSet(f.balance.InexactFloat64())

	f.log.Warn("insurance fund covering shortfall",
		logging.MarketID(market),
		logging.Decimal("shortfall", amount),
		logging.Decimal("covered", covered),
		logging.Decimal("balance", f.balance),
	)

	if uncovered.IsPositive() {
		f.broker.Send(events.NewBadDebtEvent(ctx, market, party, positionID, amount, covered))
		return uncovered, types.ErrFundDepleted
	}
	return num.DecimalZero(), nil
}
