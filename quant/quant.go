// Package quant implements the pure queue/slippage/latency models of §4.6:
// functions of the current book state and a seeded PRNG that never mutate
// the book. All floating-point formulas are evaluated in a single, fixed
// operation order so replay stays byte-identical across platforms (§9).
package quant

import (
	"math"

	"github.com/quorumhft/matchcore/matching"
	"github.com/quorumhft/matchcore/prng"
)

// QueuePosition returns book's live 1-based rank for orderID and the
// summed leaves quantity strictly ahead of it (§4.6: q(order_id) and
// "quantity ahead"). It is a thin pass-through to matching.Book — kept here
// so callers needing queue position alongside the derived models below
// have a single import.
func QueuePosition(book *matching.Book, orderID uint64) (position uint32, qtyAhead uint64, ok bool) {
	position, ok = book.QueuePosition(orderID)
	if !ok {
		return 0, 0, false
	}
	qtyAhead, _ = book.QuantityAhead(orderID)
	return position, qtyAhead, true
}

// TimeToFillSeconds is t_fill = (qty_ahead / avg_trade_size) / trade_rate,
// clamped to 0 when the order is already at the front of its queue (§4.6).
func TimeToFillSeconds(qtyAhead uint64, avgTradeSize, tradeRatePerSecond float64) float64 {
	if qtyAhead == 0 || avgTradeSize <= 0 || tradeRatePerSecond <= 0 {
		return 0
	}
	return (float64(qtyAhead) / avgTradeSize) / tradeRatePerSecond
}

// FillProbabilityInWindow is §4.6's 1 - exp(-2 * min(1, trade_rate *
// avg_trade_size * w / qty_ahead)).
func FillProbabilityInWindow(qtyAhead uint64, avgTradeSize, tradeRatePerSecond, windowSeconds float64) float64 {
	if qtyAhead == 0 {
		return 1
	}
	x := tradeRatePerSecond * avgTradeSize * windowSeconds / float64(qtyAhead)
	if x > 1 {
		x = 1
	}
	return 1 - math.Exp(-2*x)
}

// SlippageCoefficients are the Almgren-Chriss-shape impact coefficients of
// §4.6 (configuration, not a constant — see config.Config). Slippage does
// not record them, or its estimates, in the journal.
type SlippageCoefficients struct {
	TemporaryImpact float64 // c_temp
	PermanentImpact float64 // c_perm
	SpreadBps       float64
}

// Slippage estimates the execution cost, as a fraction of price, of a hypothetical
// order of size quantity against average daily volume adv (§4.6):
//
//	slip = c_temp*(Q/ADV)^0.5 + c_perm*(Q/ADV)^0.5 + spread_bps/20000
//
// Evaluated in this fixed left-to-right order so the result is
// bit-identical across platforms.
func Slippage(coef SlippageCoefficients, quantity, adv float64) float64 {
	if adv <= 0 {
		return coef.SpreadBps / 20000
	}
	participation := math.Sqrt(quantity / adv)
	temp := coef.TemporaryImpact * participation
	perm := coef.PermanentImpact * participation
	return temp + perm + coef.SpreadBps/20000
}

// VenueLatency is a venue's log-normal round-trip latency distribution
// parameters (§4.6): median_micros = exp(mu), sigma is the log-space
// standard deviation.
type VenueLatency struct {
	MedianMicros float64
	Sigma        float64
}

// mu derives the log-normal location parameter from the median, since
// exp(mu) = median for a log-normal distribution.
func (v VenueLatency) mu() float64 {
	return math.Log(v.MedianMicros)
}

// SampleLatencyMicros draws one latency sample for venue from src: §4.6's
// exp(mu + sigma*z) with z taken from the PRNG's Box-Muller transform.
func SampleLatencyMicros(src *prng.Source, venue VenueLatency) float64 {
	z := src.BoxMuller()
	return math.Exp(venue.mu() + venue.Sigma*z)
}
