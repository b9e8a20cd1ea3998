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

package insurance_test

import (
	"context"
	"testing"

	bmocks "code.vegaprotocol.io/perps/core/broker/mocks"
	"code.vegaprotocol.io/perps/core/insurance"
	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestFund(t *testing.T) (*insurance.Fund, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	broker := bmocks.NewMockInterface(ctrl)
	broker.EXPECT().Send(gomock.Any()).AnyTimes()
	return insurance.New(logging.NewTestLogger(), insurance.NewDefaultConfig(), broker), ctrl
}

func TestFund(t *testing.T) {
	t.Run("credit accumulates", testCredit)
	t.Run("debit is clamped at the balance", testDebitClamped)
	t.Run("shortfall fully covered", testCoverShortfall)
	t.Run("shortfall beyond the balance depletes the fund", testCoverShortfallDepleted)
	t.Run("zero shortfall is a no-op", testCoverZero)
}

func testCredit(t *testing.T) {
	fund, ctrl := getTestFund(t)
	defer ctrl.Finish()
	ctx := context.Background()

	require.NoError(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(100)))
	require.NoError(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(50)))
	assert.True(t, fund.Balance().Equal(num.DecimalFromInt64(150)))

	assert.ErrorIs(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(-1)), types.ErrInvalidAmount)
}

func testDebitClamped(t *testing.T) {
	fund, ctrl := getTestFund(t)
	defer ctrl.Finish()
	ctx := context.Background()

	require.NoError(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(30)))
	taken := fund.Debit(ctx, "mkt", num.DecimalFromInt64(100))
	assert.True(t, taken.Equal(num.DecimalFromInt64(30)))
	assert.True(t, fund.Balance().IsZero())
}

func testCoverShortfall(t *testing.T) {
	fund, ctrl := getTestFund(t)
	defer ctrl.Finish()
	ctx := context.Background()

	require.NoError(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(100)))
	uncovered, err := fund.CoverShortfall(ctx, "mkt", "party1", 1, num.DecimalFromInt64(40))
	require.NoError(t, err)
	assert.True(t, uncovered.IsZero())
	assert.True(t, fund.Balance().Equal(num.DecimalFromInt64(60)))
}

func testCoverShortfallDepleted(t *testing.T) {
	fund, ctrl := getTestFund(t)
	defer ctrl.Finish()
	ctx := context.Background()

	require.NoError(t, fund.Credit(ctx, "mkt", num.DecimalFromInt64(25)))
	uncovered, err := fund.CoverShortfall(ctx, "mkt", "party1", 1, num.DecimalFromInt64(40))
	assert.ErrorIs(t, err, types.ErrFundDepleted)
	assert.True(t, uncovered.Equal(num.DecimalFromInt64(15)))
	assert.True(t, fund.Balance().IsZero())
}

func testCoverZero(t *testing.T) {
	fund, ctrl := getTestFund(t)
	defer ctrl.Finish()

	uncovered, err := fund.CoverShortfall(context.Background(), "mkt", "party1", 1, num.DecimalZero())
	require.NoError(t, err)
	assert.True(t, uncovered.IsZero())
}
