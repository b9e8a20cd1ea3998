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

package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrMetricsAlreadySetup signals Setup was called twice.
	ErrMetricsAlreadySetup = errors.New("metrics already set up")

	engineTime       *prometheus.CounterVec
	tradeCounter     *prometheus.CounterVec
	liquidationCount *prometheus.CounterVec
	openInterest     *prometheus.GaugeVec
	markPrice        *prometheus.GaugeVec
	fundingRate      *prometheus.GaugeVec
	insuranceBalance prometheus.Gauge
)

// Setup registers the engine instruments with the default prometheus
// registry. Call once from the host process; engines degrade to no-ops
// when it was never called.
func Setup() error {
	if engineTime != nil {
		return ErrMetricsAlreadySetup
	}

	engineTime = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perps",
			Subsystem: "engine",
			Name:      "seconds_total",
			Help:      "Total time spent in engine calls",
		},
		[]string{"market", "engine", "fn"},
	)
	if err := prometheus.Register(engineTime); err != nil {
		return err
	}

	tradeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perps",
			Subsystem: "engine",
			Name:      "trades_total",
			Help:      "Number of committed fills",
		},
		[]string{"market", "side"},
	)
	if err := prometheus.Register(tradeCounter); err != nil {
		return err
	}

	liquidationCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perps",
			Subsystem: "engine",
			Name:      "liquidations_total",
			Help:      "Number of liquidations, partial and full",
		},
		[]string{"market", "kind"},
	)
	if err := prometheus.Register(liquidationCount); err != nil {
		return err
	}

	openInterest = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "perps",
			Subsystem: "market",
			Name:      "open_interest",
			Help:      "Open interest notional per market side",
		},
		[]string{"market", "side"},
	)
	if err := prometheus.Register(openInterest); err != nil {
		return err
	}

	markPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "perps",
			Subsystem: "market",
			Name:      "mark_price",
			Help:      "Current mark price per market",
		},
		[]string{"market"},
	)
	if err := prometheus.Register(markPrice); err != nil {
		return err
	}

	fundingRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "perps",
			Subsystem: "market",
			Name:      "funding_rate",
			Help:      "Last computed funding rate per market",
		},
		[]string{"market"},
	)
	if err := prometheus.Register(fundingRate); err != nil {
		return err
	}

	insuranceBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perps",
			Subsystem: "engine",
			Name:      "insurance_fund_balance",
			Help:      "Current insurance fund balance",
		},
	)
	if err := prometheus.Register(insuranceBalance); err != nil {
		return err
	}
	return nil
}

// TradeCounterInc increments the committed-fill counter.
func TradeCounterInc(market, side string) {
	if tradeCounter == nil {
		return
	}
	tradeCounter.WithLabelValues(market, side).Inc()
}

// LiquidationCounterInc increments the liquidation counter.
func LiquidationCounterInc(market, kind string) {
	if liquidationCount == nil {
		return
	}
	liquidationCount.WithLabelValues(market, kind).Inc()
}

// OpenInterestSet records the current open interest for one market side.
func OpenInterestSet(market, side string, v float64) {
	if openInterest == nil {
		return
	}
	openInterest.WithLabelValues(market, side).Set(v)
}

// MarkPriceSet records the current mark price for a market.
func MarkPriceSet(market string, v float64) {
	if markPrice == nil {
		return
	}
	markPrice.WithLabelValues(market).Set(v)
}

// FundingRateSet records the last funding rate for a market.
func FundingRateSet(market string, v float64) {
	if fundingRate == nil {
		return
	}
	fundingRate.WithLabelValues(market).Set(v)
}

// InsuranceBalanceSet records the current insurance fund balance.
func InsuranceBalanceSet(v float64) {
	if insuranceBalance == nil {
		return
	}
	insuranceBalance.Set(v)
}
