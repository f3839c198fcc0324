package quant

import (
	"math"
	"testing"

	"github.com/quorumhft/matchcore/prng"
)

func TestTimeToFillSecondsZeroWhenAtFrontOfQueue(t *testing.T) {
	if got := TimeToFillSeconds(0, 10, 5); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestTimeToFillSecondsScalesWithQtyAhead(t *testing.T) {
	got := TimeToFillSeconds(100, 10, 5)
	want := (100.0 / 10.0) / 5.0
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFillProbabilityIsOneWhenNoQtyAhead(t *testing.T) {
	if got := FillProbabilityInWindow(0, 1, 1, 1); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestFillProbabilityClampsAtRate(t *testing.T) {
	// x saturates above 1, so probability should equal 1-exp(-2).
	got := FillProbabilityInWindow(1, 1000, 1000, 1000)
	want := 1 - math.Exp(-2)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSlippageFallsBackToSpreadWhenADVIsZero(t *testing.T) {
	coef := SlippageCoefficients{TemporaryImpact: 0.1, PermanentImpact: 0.1, SpreadBps: 4}
	got := Slippage(coef, 100, 0)
	want := 4.0 / 20000
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSlippageIncreasesWithParticipation(t *testing.T) {
	coef := SlippageCoefficients{TemporaryImpact: 0.1, PermanentImpact: 0.05, SpreadBps: 2}
	small := Slippage(coef, 10, 10000)
	large := Slippage(coef, 5000, 10000)
	if large <= small {
		t.Fatalf("expected larger order to have higher slippage: small=%v large=%v", small, large)
	}
}

func TestSampleLatencyMicrosIsDeterministicForSameSeed(t *testing.T) {
	venue := VenueLatency{MedianMicros: 200, Sigma: 0.3}
	a := SampleLatencyMicros(prng.New(5), venue)
	b := SampleLatencyMicros(prng.New(5), venue)
	if a != b {
		t.Fatalf("same seed produced different latencies: %v vs %v", a, b)
	}
}

func TestSampleLatencyMicrosIsPositive(t *testing.T) {
	venue := VenueLatency{MedianMicros: 150, Sigma: 0.5}
	src := prng.New(123)
	for i := 0; i < 50; i++ {
		if got := SampleLatencyMicros(src, venue); got <= 0 {
			t.Fatalf("expected positive latency, got %v", got)
		}
	}
}
