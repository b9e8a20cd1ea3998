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

package collateral

import (
	"context"
	"sort"

	"code.vegaprotocol.io/perps/core/events"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"golang.org/x/exp/maps"
)

// Broker send events.
type Broker interface {
	Send(event events.Event)
	SendBatch(events []events.Event)
}

// FundingResult reports how a signed funding amount was actually drawn
// or credited: debits come from free first, then locked; whatever was
// drawn from locked must be mirrored onto the position's margin by the
// caller to keep margin isolation intact.
type FundingResult struct {
	FromFree   num.Decimal
	FromLocked num.Decimal
	Shortfall  num.Decimal
}

// Engine is the collateral ledger: per-party free/locked balances, plus
// one settlement pool per market through which realised profit and loss
// flows. Every credit in this engine pairs with a debit, so
//
//	sum(free) + sum(locked) + sum(pools) == deposits - withdrawals
//
// holds after every operation (pools may transiently dip negative while
// the orchestrator routes an insurance cover to them mid-commit).
//
// Deposit and Withdraw are the public surface; everything else is for
// privileged callers only (the trade orchestrator and the liquidation
// flow) and trusts its input.
type Engine struct {
	Config
	log *logging.Logger

	broker Broker

	// partyID -> account
	accounts map[string]*types.PartyAccount
	// marketID -> settlement pool balance
	pools map[string]num.Decimal

	deposits    num.Decimal
	withdrawals num.Decimal
}

// New instantiates a new collateral engine.
func New(log *logging.Logger, config Config, broker Broker) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(config.Level.Get())

	return &Engine{
		Config:      config,
		log:         log,
		broker:      broker,
		accounts:    map[string]*types.PartyAccount{},
		pools:       map[string]num.Decimal{},
		deposits:    num.DecimalZero(),
		withdrawals: num.DecimalZero(),
	}
}

// ReloadConf updates the internal configuration of the collateral engine.
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

func (e *Engine) getOrCreate(party string) *types.PartyAccount {
	acc, ok := e.accounts[party]
	if !ok {
		acc = &types.PartyAccount{
			Party:  party,
			Free:   num.DecimalZero(),
			Locked: num.DecimalZero(),
		}
		e.accounts[party] = acc
	}
	return acc
}

// Deposit credits a party's free balance. Public surface.
func (e *Engine) Deposit(ctx context.Context, party string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	acc.Free = acc.Free.Add(amount)
	e.deposits = e.deposits.Add(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Type: types.TransferTypeDeposit, Amount: amount},
	}))
	return nil
}

// Withdraw debits a party's free balance. Public surface.
func (e *Engine) Withdraw(ctx context.Context, party string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	if amount.GreaterThan(acc.Free) {
		return types.ErrInsufficientFree
	}
	acc.Free = acc.Free.Sub(amount)
	e.withdrawals = e.withdrawals.Add(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Type: types.TransferTypeWithdraw, Amount: amount},
	}))
	return nil
}

// Lock moves amount from a party's free balance into locked, backing a
// position's margin. Privileged.
func (e *Engine) Lock(ctx context.Context, market, party string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	if amount.GreaterThan(acc.Free) {
		return types.ErrInsufficientFree
	}
	acc.Free = acc.Free.Sub(amount)
	acc.Locked = acc.Locked.Add(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: types.TransferTypeMarginLock, Amount: amount},
	}))
	return nil
}

// Release moves amount from locked back to free when margin is handed
// back. Privileged.
func (e *Engine) Release(ctx context.Context, market, party string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	if amount.GreaterThan(acc.Locked) {
		return types.ErrInsufficientLocked
	}
	acc.Locked = acc.Locked.Sub(amount)
	acc.Free = acc.Free.Add(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: types.TransferTypeMarginRelease, Amount: amount},
	}))
	return nil
}

// SettlePnl applies a signed realised P&L amount. Wins are paid out of
// the market's settlement pool into free; losses are drawn from locked
// (up to the locked balance) into the pool, and any unpaid remainder is
// returned as a shortfall for the caller to route to the insurance fund.
// Privileged.
func (e *Engine) SettlePnl(ctx context.Context, market, party string, amount num.Decimal) num.Decimal {
	acc := e.getOrCreate(party)
	pool := e.pool(market)

	if !amount.IsNegative() {
		if amount.IsZero() {
			return num.DecimalZero()
		}
		acc.Free = acc.Free.Add(amount)
		e.pools[market] = pool.Sub(amount)
		e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
			{Party: party, Market: market, Type: types.TransferTypeMTMWin, Amount: amount},
		}))
		return num.DecimalZero()
	}

	loss := amount.Neg()
	paid := num.MinD(acc.Locked, loss)
	acc.Locked = acc.Locked.Sub(paid)
	e.pools[market] = pool.Add(paid)
	shortfall := loss.Sub(paid)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: types.TransferTypeMTMLoss, Amount: paid},
	}))
	return shortfall
}

// ApplyFunding applies a signed funding amount. Credits go to free from
// the settlement pool; debits are drawn free first then locked into the
// pool, with the locked draw capped at lockedCap so only the paying
// position's own margin slice is touched. The caller uses FromLocked to
// shrink that position's margin. Privileged.
func (e *Engine) ApplyFunding(ctx context.Context, market, party string, amount, lockedCap num.Decimal) FundingResult {
	acc := e.getOrCreate(party)
	pool := e.pool(market)

	if !amount.IsNegative() {
		if amount.IsZero() {
			return FundingResult{
				FromFree:   num.DecimalZero(),
				FromLocked: num.DecimalZero(),
				Shortfall:  num.DecimalZero(),
			}
		}
		acc.Free = acc.Free.Add(amount)
		e.pools[market] = pool.Sub(amount)
		e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
			{Party: party, Market: market, Type: types.TransferTypeFundingReceive, Amount: amount},
		}))
		return FundingResult{
			FromFree:   num.DecimalZero(),
			FromLocked: num.DecimalZero(),
			Shortfall:  num.DecimalZero(),
		}
	}

	owed := amount.Neg()
	fromFree := num.MinD(acc.Free, owed)
	acc.Free = acc.Free.Sub(fromFree)
	remainder := owed.Sub(fromFree)
	fromLocked := num.MinD(num.MinD(acc.Locked, lockedCap), remainder)
	acc.Locked = acc.Locked.Sub(fromLocked)
	shortfall := remainder.Sub(fromLocked)

	e.pools[market] = pool.Add(fromFree).Add(fromLocked)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: types.TransferTypeFundingPay, Amount: fromFree.Add(fromLocked)},
	}))
	return FundingResult{
		FromFree:   fromFree,
		FromLocked: fromLocked,
		Shortfall:  shortfall,
	}
}

// TransferToFee debits a party's free balance for a trade fee. The
// caller credits the insurance fund with the same amount, keeping the
// fee individually matched to its source debit. Privileged.
func (e *Engine) TransferToFee(ctx context.Context, market, party string, amount num.Decimal) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	if amount.GreaterThan(acc.Free) {
		return types.ErrInsufficientFree
	}
	acc.Free = acc.Free.Sub(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: types.TransferTypeTradeFee, Amount: amount},
	}))
	return nil
}

// DebitLocked removes amount from a party's locked balance without
// releasing it to free; used for liquidation penalties. The caller
// routes the amount onward (insurance fund, liquidator reward) in the
// same commit. Privileged.
func (e *Engine) DebitLocked(ctx context.Context, market, party string, amount num.Decimal, tt types.TransferType) error {
	if amount.IsNegative() {
		return types.ErrInvalidAmount
	}
	acc := e.getOrCreate(party)
	if amount.GreaterThan(acc.Locked) {
		return types.ErrInsufficientLocked
	}
	acc.Locked = acc.Locked.Sub(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: tt, Amount: amount},
	}))
	return nil
}

// CreditFree credits a party's free balance, used to pay liquidator
// rewards out of a penalty debit taken in the same commit. Privileged.
func (e *Engine) CreditFree(ctx context.Context, market, party string, amount num.Decimal, tt types.TransferType) {
	if !amount.IsPositive() {
		return
	}
	acc := e.getOrCreate(party)
	acc.Free = acc.Free.Add(amount)

	e.broker.Send(events.NewLedgerMovements(ctx, []types.LedgerMovement{
		{Party: party, Market: market, Type: tt, Amount: amount},
	}))
}

// TopUpPool credits a market's settlement pool; the source (an
// insurance-fund debit or an ADL haircut) is accounted by the caller in
// the same commit. Privileged.
func (e *Engine) TopUpPool(market string, amount num.Decimal) {
	e.pools[market] = e.pool(market).Add(amount)
}

// DrainPool debits a market's settlement pool; used to route the
// funding imbalance into the insurance fund. Privileged.
func (e *Engine) DrainPool(market string, amount num.Decimal) {
	e.pools[market] = e.pool(market).Sub(amount)
}

func (e *Engine) pool(market string) num.Decimal {
	p, ok := e.pools[market]
	if !ok {
		p = num.DecimalZero()
		e.pools[market] = p
	}
	return p
}

// PoolBalance returns the settlement pool balance for a market.
func (e *Engine) PoolBalance(market string) num.Decimal {
	return e.pool(market)
}

// GetPartyAccount returns a copy of the party's balances, and whether
// the party is known to the ledger at all.
func (e *Engine) GetPartyAccount(party string) (*types.PartyAccount, bool) {
	acc, ok := e.accounts[party]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// Parties returns all the parties known to the ledger, sorted.
func (e *Engine) Parties() []string {
	parties := maps.Keys(e.accounts)
	sort.Strings(parties)
	return parties
}

// TotalBalance sums every party balance and every settlement pool. Used
// by the conservation check: TotalBalance + insurance fund balance must
// equal NetDeposits at all times.
func (e *Engine) TotalBalance() num.Decimal {
	total := num.DecimalZero()
	for _, acc := range e.accounts {
		total = total.Add(acc.Free).Add(acc.Locked)
	}
	for _, p := range e.pools {
		total = total.Add(p)
	}
	return total
}

// NetDeposits returns cumulative deposits minus cumulative withdrawals.
func (e *Engine) NetDeposits() num.Decimal {
	return e.deposits.Sub(e.withdrawals)
}
