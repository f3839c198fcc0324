// Package telemetry exposes the matching actor's operational counters and
// gauges through the prometheus client (part of SPEC_FULL.md's ambient
// stack): fills, rejects, journal bytes written, and replay lag. The
// matching and journal packages never import this package; session reports
// through the Recorder interface, so the matching hot path stays free of any
// observability dependency (§4.5.4: no external I/O in the hot path).
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the capability set the matching session reports through.
// Implementations must be safe for concurrent use, since a single process
// hosts one Recorder shared by every instrument's actor.
type Recorder interface {
	FillRecorded(instrumentID uint64, quantity uint64)
	RejectRecorded(instrumentID uint64, reason string)
	JournalBytesWritten(instrumentID uint64, bytes int)
	ReplayLagUpdated(instrumentID uint64, eventsBehind uint64)
}

// Metrics is the Recorder backed by prometheus collectors. Register it with
// a prometheus.Registerer at the composition root (cmd/matchd).
type Metrics struct {
	fillsTotal        *prometheus.CounterVec
	fillQuantityTotal *prometheus.CounterVec
	rejectsTotal      *prometheus.CounterVec
	journalBytesTotal *prometheus.CounterVec
	replayLag         *prometheus.GaugeVec
}

// NewMetrics constructs a Metrics and registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "fills_total",
			Help:      "Number of fills produced by the matching engine, by instrument.",
		}, []string{"instrument"}),
		fillQuantityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "fill_quantity_total",
			Help:      "Total quantity matched, by instrument.",
		}, []string{"instrument"}),
		rejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "rejects_total",
			Help:      "Number of rejected submissions, by instrument and reason.",
		}, []string{"instrument", "reason"}),
		journalBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "journal_bytes_written_total",
			Help:      "Bytes appended to the journal, by instrument.",
		}, []string{"instrument"}),
		replayLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "matchcore",
			Name:      "replay_lag_events",
			Help:      "Events remaining to replay, by instrument.",
		}, []string{"instrument"}),
	}
	reg.MustRegister(m.fillsTotal, m.fillQuantityTotal, m.rejectsTotal, m.journalBytesTotal, m.replayLag)
	return m
}

// formatUint avoids pulling in strconv at call sites scattered across the
// package; it is the one conversion telemetry needs.
func formatUint(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (m *Metrics) FillRecorded(instrumentID uint64, quantity uint64) {
	label := formatUint(instrumentID)
	m.fillsTotal.WithLabelValues(label).Inc()
	m.fillQuantityTotal.WithLabelValues(label).Add(float64(quantity))
}

func (m *Metrics) RejectRecorded(instrumentID uint64, reason string) {
	m.rejectsTotal.WithLabelValues(formatUint(instrumentID), reason).Inc()
}

func (m *Metrics) JournalBytesWritten(instrumentID uint64, bytes int) {
	m.journalBytesTotal.WithLabelValues(formatUint(instrumentID)).Add(float64(bytes))
}

func (m *Metrics) ReplayLagUpdated(instrumentID uint64, eventsBehind uint64) {
	m.replayLag.WithLabelValues(formatUint(instrumentID)).Set(float64(eventsBehind))
}

// NoopRecorder implements Recorder with no-ops, for tests and for callers
// that do not want metrics wired up.
type NoopRecorder struct{}

func (NoopRecorder) FillRecorded(uint64, uint64)     {}
func (NoopRecorder) RejectRecorded(uint64, string)   {}
func (NoopRecorder) JournalBytesWritten(uint64, int) {}
func (NoopRecorder) ReplayLagUpdated(uint64, uint64) {}
