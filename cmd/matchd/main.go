// Command matchd is the composition root: it loads configuration, wires a
// journaled matching session, drives a demonstration workload, closes the
// journal, then opens a replay session against that same journal and
// verifies that the replayed fills, the final BBO and the per-side level
// counts match the live run (I7) before exiting.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quorumhft/matchcore/config"
	"github.com/quorumhft/matchcore/matching"
	"github.com/quorumhft/matchcore/replay"
	"github.com/quorumhft/matchcore/session"
	"github.com/quorumhft/matchcore/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/matchd.yaml", "path to the session config file")
	journalDir := flag.String("journal-dir", "", "override journal.directory from the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matchd: loading config: %v\n", err)
		os.Exit(1)
	}
	if *journalDir != "" {
		cfg.Journal.Directory = *journalDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "matchd: invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "matchd: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, registry, logger)
	}

	if err := run(cfg, logger, metrics); err != nil {
		logger.Fatal("matchd run failed", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// run drives the demonstration workload (three resting bids, a cancel, then
// an incoming market sweep)
// through a live journaled session, then replays the same journal and
// checks the two runs agree.
func run(cfg *config.Config, logger *zap.Logger, metrics *telemetry.Metrics) error {
	journalPath := cfg.Journal.Directory + "/demo.journal"
	_ = os.Remove(journalPath)

	const instrumentID = 1
	sess, err := session.Open(instrumentID, journalPath, cfg.SessionSeed, cfg.StrictJournal, nil, logger, metrics, cfg.Journal.Compression)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}

	liveFills, err := driveDemoWorkload(sess)
	if err != nil {
		return fmt.Errorf("driving demo workload: %w", err)
	}
	liveBBO := sess.Engine().Book().BestBidAsk()
	liveSnapshot := sess.Engine().Book().Snapshot()

	if err := sess.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}

	collector := &fillCollector{}
	replaySess, err := replay.Open(journalPath, collector)
	if err != nil {
		return fmt.Errorf("opening replay: %w", err)
	}
	defer replaySess.Close()
	replaySess.SetProgressFunc(func(n int) {
		logger.Info("replay progress", zap.Int("events_processed", n))
	})

	if _, err := replaySess.ReplayAll(context.Background()); err != nil {
		return fmt.Errorf("replaying journal: %w", err)
	}
	replayFills := collector.fills

	if len(replayFills) != len(liveFills) {
		return fmt.Errorf("I7 violated: live produced %d fills, replay produced %d", len(liveFills), len(replayFills))
	}
	for i := range liveFills {
		if liveFills[i] != replayFills[i] {
			return fmt.Errorf("I7 violated: fill %d differs: live=%+v replay=%+v", i, liveFills[i], replayFills[i])
		}
	}

	replayBBO := replaySess.Engine().Book().BestBidAsk()
	if liveBBO != replayBBO {
		return fmt.Errorf("I7 violated: final BBO differs: live=%+v replay=%+v", liveBBO, replayBBO)
	}
	replaySnapshot := replaySess.Engine().Book().Snapshot()
	if len(liveSnapshot.Bids) != len(replaySnapshot.Bids) || len(liveSnapshot.Asks) != len(replaySnapshot.Asks) {
		return fmt.Errorf("I7 violated: level counts differ: live bids=%d asks=%d, replay bids=%d asks=%d",
			len(liveSnapshot.Bids), len(liveSnapshot.Asks), len(replaySnapshot.Bids), len(replaySnapshot.Asks))
	}

	logger.Info("replay matched the live run bit-for-bit",
		zap.Int("fills", len(liveFills)),
		zap.Uint64("final_sequence", sess.Engine().Book().Sequence()),
	)
	return nil
}

type fillCollector struct {
	matching.NoopListener
	fills []matching.Fill
}

func (c *fillCollector) OnTrade(f matching.Fill) { c.fills = append(c.fills, f) }

// driveDemoWorkload runs three resting bids at the same price, a cancel of
// the middle one, then an incoming market sell of 6 that fills bid 1 fully
// and bid 3 partially.
func driveDemoWorkload(sess *session.Session) ([]matching.Fill, error) {
	var allFills []matching.Fill

	submit := func(order matching.Order, ts uint64) error {
		fills, reason, err := sess.Submit(order, ts)
		if err != nil {
			return err
		}
		if reason != matching.RejectNone {
			return fmt.Errorf("order %d rejected: %s", order.ID, reason)
		}
		allFills = append(allFills, fills...)
		return nil
	}

	if err := submit(matching.Order{ID: 1, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5}, 1); err != nil {
		return nil, err
	}
	if err := submit(matching.Order{ID: 2, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5}, 2); err != nil {
		return nil, err
	}
	if err := submit(matching.Order{ID: 3, Side: matching.Buy, Type: matching.Limit, Price: 99, OriginalQuantity: 5}, 3); err != nil {
		return nil, err
	}
	if _, ok, err := sess.Cancel(2, 4); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("cancel of order 2 found nothing to cancel")
	}
	if err := submit(matching.Order{ID: 4, Side: matching.Sell, Type: matching.Market, OriginalQuantity: 6}, 5); err != nil {
		return nil, err
	}

	return allFills, nil
}
