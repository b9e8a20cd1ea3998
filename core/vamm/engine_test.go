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

package vamm_test

import (
	"testing"

	"code.vegaprotocol.io/perps/core/types"
	"code.vegaprotocol.io/perps/core/vamm"
	"code.vegaprotocol.io/perps/libs/num"
	"code.vegaprotocol.io/perps/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestEngine(t *testing.T) *vamm.Engine {
	t.Helper()
	params := types.MarketParams{
		ID:              "ETH/USD",
		VBase:           num.MustDecimalFromString("666.667"),
		VQuote:          num.MustDecimalFromString("1000000"),
		TradeFeeBps:     10,
		FeeTiltBps:      5,
		MaxDeviationBps: 500,
		OiCapUsd:        num.MustDecimalFromString("1000000"),
		MmrBps:          625,
		MaxLeverage:     num.DecimalFromInt64(10),
	}
	return vamm.New(logging.NewTestLogger(), vamm.NewDefaultConfig(), params)
}

func TestMarkPrice(t *testing.T) {
	t.Run("mark price is vQuote over vBase", testMarkPriceMid)
	t.Run("mark price moves with committed fills", testMarkPriceMoves)
}

func TestFills(t *testing.T) {
	t.Run("exact quote long fill takes base off the curve", testExactQuoteLong)
	t.Run("exact quote short fill adds base to the curve", testExactQuoteShort)
	t.Run("open then close round trip returns the exact quote", testRoundTrip)
	t.Run("constant product holds after every commit", testInvariantPreserved)
	t.Run("fills that would drain a reserve are rejected", testInvalidFills)
	t.Run("quoting does not mutate the reserves", testQuoteIsPure)
}

func TestAdmission(t *testing.T) {
	t.Run("price band accepts small deviation and rejects large", testPriceBand)
	t.Run("open interest cap rejects once breached", testOICap)
}

func TestFees(t *testing.T) {
	t.Run("flat fee with no premium", testFeeNoPremium)
	t.Run("fee tilt surcharges the premium side and rebates the other", testFeeTilt)
}

func testMarkPriceMid(t *testing.T) {
	e := getTestEngine(t)
	// 1000000 / 666.667 ~= 1499.99925
	expected := num.MustDecimalFromString("1000000").Div(num.MustDecimalFromString("666.667"))
	assert.True(t, e.MarkPrice().Equal(expected))
}

func testMarkPriceMoves(t *testing.T) {
	e := getTestEngine(t)
	before := e.MarkPrice()
	f, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(5000))
	require.NoError(t, err)
	e.Commit(f)
	assert.True(t, e.MarkPrice().GreaterThan(before), "buying base must push the price up")
}

func testExactQuoteLong(t *testing.T) {
	e := getTestEngine(t)
	base0, quote0 := e.Reserves()
	f, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(5000))
	require.NoError(t, err)
	assert.True(t, f.Quote.Equal(num.DecimalFromInt64(5000)))
	// base out = vBase - K/(vQuote+5000)
	k := base0.Mul(quote0)
	expectedBase := base0.Sub(k.Div(quote0.Add(num.DecimalFromInt64(5000))))
	assert.True(t, f.Base.Equal(expectedBase), "got %s want %s", f.Base, expectedBase)
	assert.True(t, f.Price.GreaterThan(e.MarkPrice()), "a long pays above mid")
}

func testExactQuoteShort(t *testing.T) {
	e := getTestEngine(t)
	base0, quote0 := e.Reserves()
	f, err := e.QuoteExactQuote(types.SideShort, num.DecimalFromInt64(5000))
	require.NoError(t, err)
	k := base0.Mul(quote0)
	expectedBase := k.Div(quote0.Sub(num.DecimalFromInt64(5000))).Sub(base0)
	assert.True(t, f.Base.Equal(expectedBase))
	assert.True(t, f.Price.LessThan(e.MarkPrice()), "a short sells below mid")
}

func testRoundTrip(t *testing.T) {
	e := getTestEngine(t)
	open, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(5000))
	require.NoError(t, err)
	e.Commit(open)

	// selling the exact base acquired must return the curve, and the
	// quote, to where they started
	closeFill, err := e.QuoteExactBase(types.SideLong, open.Base)
	require.NoError(t, err)
	e.Commit(closeFill)

	diff := closeFill.Quote.Sub(open.Quote).Abs()
	assert.True(t, diff.LessThan(num.MustDecimalFromString("0.0001")),
		"round trip quote mismatch: %s", diff)
}

func testInvariantPreserved(t *testing.T) {
	e := getTestEngine(t)
	base0, quote0 := e.Reserves()
	k := base0.Mul(quote0)
	amounts := []int64{5000, 100, 99999, 1}
	sides := []types.Side{types.SideLong, types.SideShort, types.SideShort, types.SideLong}
	for i, amt := range amounts {
		f, err := e.QuoteExactQuote(sides[i], num.DecimalFromInt64(amt))
		require.NoError(t, err)
		e.Commit(f)
		base, quote := e.Reserves()
		drift := base.Mul(quote).Sub(k).Abs().Div(k)
		assert.True(t, drift.LessThan(num.MustDecimalFromString("0.000001")),
			"invariant drift %s after fill %d", drift, i)
	}
}

func testInvalidFills(t *testing.T) {
	e := getTestEngine(t)
	// zero and negative amounts
	_, err := e.QuoteExactQuote(types.SideLong, num.DecimalZero())
	assert.ErrorIs(t, err, types.ErrInvalidFill)
	_, err = e.QuoteExactQuote(types.SideShort, num.DecimalFromInt64(-5))
	assert.ErrorIs(t, err, types.ErrInvalidFill)
	// draining the quote reserve
	_, err = e.QuoteExactQuote(types.SideShort, num.DecimalFromInt64(1000000))
	assert.ErrorIs(t, err, types.ErrInvalidFill)
	// draining the base reserve
	_, err = e.QuoteExactBase(types.SideShort, num.MustDecimalFromString("666.667"))
	assert.ErrorIs(t, err, types.ErrInvalidFill)
}

func testQuoteIsPure(t *testing.T) {
	e := getTestEngine(t)
	base0, quote0 := e.Reserves()
	_, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(5000))
	require.NoError(t, err)
	_, err = e.QuoteExactBase(types.SideLong, num.DecimalFromInt64(1))
	require.NoError(t, err)
	base1, quote1 := e.Reserves()
	assert.True(t, base0.Equal(base1))
	assert.True(t, quote0.Equal(quote1))
}

func testPriceBand(t *testing.T) {
	e := getTestEngine(t)
	mark := e.MarkPrice()
	// within 5%
	assert.NoError(t, e.CheckPriceBand(mark))
	assert.NoError(t, e.CheckPriceBand(mark.Mul(num.MustDecimalFromString("1.02"))))
	// outside 5%
	err := e.CheckPriceBand(mark.Mul(num.MustDecimalFromString("1.10")))
	assert.ErrorIs(t, err, types.ErrPriceBandExceeded)
	err = e.CheckPriceBand(mark.Mul(num.MustDecimalFromString("0.90")))
	assert.ErrorIs(t, err, types.ErrPriceBandExceeded)
}

func testOICap(t *testing.T) {
	e := getTestEngine(t)
	require.NoError(t, e.CheckOICap(types.SideLong, num.DecimalFromInt64(900000)))
	e.AddOpenInterest(types.SideLong, num.DecimalFromInt64(900000))

	err := e.CheckOICap(types.SideLong, num.DecimalFromInt64(200000))
	assert.ErrorIs(t, err, types.ErrOpenInterestCapExceeded)
	// the short side has its own counter
	assert.NoError(t, e.CheckOICap(types.SideShort, num.DecimalFromInt64(200000)))

	e.ReleaseOpenInterest(types.SideLong, num.DecimalFromInt64(500000))
	assert.NoError(t, e.CheckOICap(types.SideLong, num.DecimalFromInt64(200000)))
}

func testFeeNoPremium(t *testing.T) {
	e := getTestEngine(t)
	f, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(10000))
	require.NoError(t, err)
	e.SetFee(f, types.SideLong, num.DecimalZero())
	// 10bps of 10000
	assert.True(t, f.Fee.Equal(num.DecimalFromInt64(10)), "got %s", f.Fee)
}

func testFeeTilt(t *testing.T) {
	e := getTestEngine(t)
	premium := num.DecimalFromInt64(25) // market trading above reference

	long, err := e.QuoteExactQuote(types.SideLong, num.DecimalFromInt64(10000))
	require.NoError(t, err)
	e.SetFee(long, types.SideLong, premium)
	// 10bps + 5bps tilt
	assert.True(t, long.Fee.Equal(num.DecimalFromInt64(15)), "got %s", long.Fee)

	short, err := e.QuoteExactQuote(types.SideShort, num.DecimalFromInt64(10000))
	require.NoError(t, err)
	e.SetFee(short, types.SideShort, premium)
	// 10bps - 5bps rebate
	assert.True(t, short.Fee.Equal(num.DecimalFromInt64(5)), "got %s", short.Fee)

	// at a discount the tilt flips
	discount := num.DecimalFromInt64(-25)
	e.SetFee(long, types.SideLong, discount)
	assert.True(t, long.Fee.Equal(num.DecimalFromInt64(5)))
	e.SetFee(short, types.SideShort, discount)
	assert.True(t, short.Fee.Equal(num.DecimalFromInt64(15)))
}
