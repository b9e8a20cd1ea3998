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

package collateral_test

import (
	"context"
	"testing"

	bmocks "code.vegaprotocol.io/perps/core/broker/mocks"
	"code.vegaprotocol.io/perps/core/collateral"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMarket = "ETH/USD"

type testEngine struct {
	*collateral.Engine
	ctrl   *gomock.Controller
	broker *bmocks.MockInterface
}

func getTestEngine(t *testing.T) *testEngine {
	t.Helper()
	ctrl := gomock.NewController(t)
	broker := bmocks.NewMockInterface(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()
	broker.EXPECT().SendBatch(gomock.Any()).AnyTimes()
	eng := collateral.New(logging.NewTestLogger(), collateral.NewDefaultConfig(), broker)
	return &testEngine{
		Engine: eng,
		ctrl:   ctrl,
		broker: broker,
	}
}

func (e *testEngine) Finish() {
	e.ctrl.Finish()
}

func TestDepositWithdraw(t *testing.T) {
	t.Run("deposit creates the account and credits free", testDepositCredits)
	t.Run("withdraw debits free and fails when insufficient", testWithdrawDebits)
	t.Run("negative amounts are rejected", testNegativeAmounts)
	t.Run("account record persists at zero balance", testAccountPersists)
}

func TestMarginMoves(t *testing.T) {
	t.Run("lock moves free to locked", testLock)
	t.Run("release moves locked back to free", testRelease)
	t.Run("lock beyond free fails without mutating", testLockInsufficient)
	t.Run("release beyond locked fails without mutating", testReleaseInsufficient)
}

func TestSettlePnl(t *testing.T) {
	t.Run("win is paid out of the pool into free", testSettleWin)
	t.Run("loss is drawn from locked into the pool", testSettleLoss)
	t.Run("loss beyond locked reports the shortfall", testSettleLossShortfall)
}

func TestApplyFunding(t *testing.T) {
	t.Run("funding debit draws free before locked", testFundingDrawOrder)
	t.Run("funding debit beyond the account reports a shortfall", testFundingShortfall)
	t.Run("locked draw is capped at the position margin slice", testFundingLockedCap)
	t.Run("funding credit comes out of the pool", testFundingCredit)
}

func TestConservation(t *testing.T) {
	t.Run("total balance plus pools tracks net deposits", testConservationAcrossOps)
}

func testDepositCredits(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	acc, ok := eng.GetPartyAccount("party1")
	require.True(t, ok)
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(1000)))
	assert.True(t, acc.Locked.IsZero())
}

func testWithdrawDebits(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	require.NoError(t, eng.Withdraw(ctx, "party1", num.DecimalFromInt64(400)))

	err := eng.Withdraw(ctx, "party1", num.DecimalFromInt64(601))
	assert.ErrorIs(t, err, types.ErrInsufficientFree)

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(600)))
}

func testNegativeAmounts(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	assert.ErrorIs(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(-1)), types.ErrInvalidAmount)
	assert.ErrorIs(t, eng.Withdraw(ctx, "party1", num.DecimalFromInt64(-1)), types.ErrInvalidAmount)
	assert.ErrorIs(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(-1)), types.ErrInvalidAmount)
	assert.ErrorIs(t, eng.Release(ctx, testMarket, "party1", num.DecimalFromInt64(-1)), types.ErrInvalidAmount)
}

func testAccountPersists(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	require.NoError(t, eng.Withdraw(ctx, "party1", num.DecimalFromInt64(100)))

	acc, ok := eng.GetPartyAccount("party1")
	require.True(t, ok, "zero-balance account must remain addressable")
	assert.True(t, acc.Free.IsZero())
	assert.Equal(t, []string{"party1"}, eng.Parties())
}

func testLock(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(300)))

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(700)))
	assert.True(t, acc.Locked.Equal(num.DecimalFromInt64(300)))
}

func testRelease(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(300)))
	require.NoError(t, eng.Release(ctx, testMarket, "party1", num.DecimalFromInt64(200)))

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(900)))
	assert.True(t, acc.Locked.Equal(num.DecimalFromInt64(100)))
}

func testLockInsufficient(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	err := eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(101))
	assert.ErrorIs(t, err, types.ErrInsufficientFree)

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(100)))
	assert.True(t, acc.Locked.IsZero())
}

func testReleaseInsufficient(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(50)))
	err := eng.Release(ctx, testMarket, "party1", num.DecimalFromInt64(51))
	assert.ErrorIs(t, err, types.ErrInsufficientLocked)
}

func testSettleWin(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	// fund the pool the way a loser's settlement would
	eng.TopUpPool(testMarket, num.DecimalFromInt64(250))

	shortfall := eng.SettlePnl(ctx, testMarket, "party1", num.DecimalFromInt64(250))
	assert.True(t, shortfall.IsZero())

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(1250)))
	assert.True(t, eng.PoolBalance(testMarket).IsZero())
}

func testSettleLoss(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(1000)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(500)))

	shortfall := eng.SettlePnl(ctx, testMarket, "party1", num.DecimalFromInt64(-200))
	assert.True(t, shortfall.IsZero())

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Locked.Equal(num.DecimalFromInt64(300)))
	assert.True(t, eng.PoolBalance(testMarket).Equal(num.DecimalFromInt64(200)))
}

func testSettleLossShortfall(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(100)))

	// loss of 140 against 100 of locked margin
	shortfall := eng.SettlePnl(ctx, testMarket, "party1", num.DecimalFromInt64(-140))
	assert.True(t, shortfall.Equal(num.DecimalFromInt64(40)), "got %s", shortfall)

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Locked.IsZero())
	assert.True(t, eng.PoolBalance(testMarket).Equal(num.DecimalFromInt64(100)))
}

func testFundingDrawOrder(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(60)))

	// owes 50: 40 of free, then 10 of locked
	res := eng.ApplyFunding(ctx, testMarket, "party1", num.DecimalFromInt64(-50), num.DecimalFromInt64(60))
	assert.True(t, res.FromFree.Equal(num.DecimalFromInt64(40)))
	assert.True(t, res.FromLocked.Equal(num.DecimalFromInt64(10)))
	assert.True(t, res.Shortfall.IsZero())

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.IsZero())
	assert.True(t, acc.Locked.Equal(num.DecimalFromInt64(50)))
	assert.True(t, eng.PoolBalance(testMarket).Equal(num.DecimalFromInt64(50)))
}

func testFundingShortfall(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(30)))
	res := eng.ApplyFunding(ctx, testMarket, "party1", num.DecimalFromInt64(-50), num.DecimalZero())
	assert.True(t, res.FromFree.Equal(num.DecimalFromInt64(30)))
	assert.True(t, res.FromLocked.IsZero())
	assert.True(t, res.Shortfall.Equal(num.DecimalFromInt64(20)))
}

func testFundingLockedCap(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	// 100 locked backs two positions, the paying one owns only 20 of it
	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	require.NoError(t, eng.Lock(ctx, testMarket, "party1", num.DecimalFromInt64(100)))

	res := eng.ApplyFunding(ctx, testMarket, "party1", num.DecimalFromInt64(-50), num.DecimalFromInt64(20))
	assert.True(t, res.FromFree.IsZero())
	assert.True(t, res.FromLocked.Equal(num.DecimalFromInt64(20)))
	assert.True(t, res.Shortfall.Equal(num.DecimalFromInt64(30)))

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Locked.Equal(num.DecimalFromInt64(80)))
}

func testFundingCredit(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	require.NoError(t, eng.Deposit(ctx, "party1", num.DecimalFromInt64(100)))
	eng.TopUpPool(testMarket, num.DecimalFromInt64(25))
	res := eng.ApplyFunding(ctx, testMarket, "party1", num.DecimalFromInt64(25), num.DecimalZero())
	assert.True(t, res.Shortfall.IsZero())

	acc, _ := eng.GetPartyAccount("party1")
	assert.True(t, acc.Free.Equal(num.DecimalFromInt64(125)))
	assert.True(t, eng.PoolBalance(testMarket).IsZero())
}

func testConservationAcrossOps(t *testing.T) {
	eng := getTestEngine(t)
	defer eng.Finish()
	ctx := context.Background()

	check := func() {
		diff := eng.TotalBalance().Sub(eng.NetDeposits()).Abs()
		assert.True(t, diff.IsZero(), "conservation broken by %s", diff)
	}

	require.NoError(t, eng.Deposit(ctx, "a", num.DecimalFromInt64(1000)))
	check()
	require.NoError(t, eng.Deposit(ctx, "b", num.DecimalFromInt64(500)))
	check()
	require.NoError(t, eng.Lock(ctx, testMarket, "a", num.DecimalFromInt64(400)))
	check()
	// a loses 150 to the pool, b wins it back
	shortfall := eng.SettlePnl(ctx, testMarket, "a", num.DecimalFromInt64(-150))
	require.True(t, shortfall.IsZero())
	check()
	eng.SettlePnl(ctx, testMarket, "b", num.DecimalFromInt64(150))
	check()
	require.NoError(t, eng.Release(ctx, testMarket, "a", num.DecimalFromInt64(250)))
	check()
	require.NoError(t, eng.Withdraw(ctx, "b", num.DecimalFromInt64(650)))
	check()
	assert.True(t, eng.PoolBalance(testMarket).IsZero())
}
