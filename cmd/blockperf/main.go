// blockperf measures block propagation as seen by a local Cardano node. It
// follows the node's trace log, correlates block events into propagation
// samples, and submits one sample per adopted block to the openblockperf
// backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openblockperf/agent/internal/api"
	"github.com/openblockperf/agent/internal/blocks"
	"github.com/openblockperf/agent/internal/config"
	"github.com/openblockperf/agent/internal/dispatch"
	"github.com/openblockperf/agent/internal/logging"
	"github.com/openblockperf/agent/internal/metrics"
	"github.com/openblockperf/agent/internal/netconns"
	"github.com/openblockperf/agent/internal/nodelog"
	"github.com/openblockperf/agent/internal/otelexport"
	"github.com/openblockperf/agent/internal/peers"
	"github.com/openblockperf/agent/internal/sched"
	"github.com/openblockperf/agent/internal/status"

	"github.com/prometheus/client_golang/prometheus"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupOTEL initializes the optional span exporter. Returns a nil sink when
// no OTLP endpoint is configured.
func setupOTEL(logger *slog.Logger) (blocks.SampleSink, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, err
	}
	if !otelCfg.Enabled() {
		return nil, func() {}, nil
	}

	tp, err := otelexport.InitProvider(otelCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}
	logger.Info("OTLP span export enabled", "endpoint", otelCfg.GetEndpoint())

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelexport.ShutdownProvider(shutdownCtx, tp); err != nil {
			logger.Error("error shutting down OTEL provider", "err", err)
		}
	}
	return otelexport.NewExporter(tp), cleanup, nil
}

// setupTasks registers the periodic reconcile and sweep loops.
func setupTasks(cfg *config.Config, tracker *peers.Tracker, engine *blocks.Engine, m *metrics.Metrics, logger *slog.Logger) (*sched.Scheduler, error) {
	snapshotter, err := netconns.NewProcSnapshotter(cfg.ProcMountPoint, cfg.RelayPublicPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}

	s := sched.New(logger)

	reconcile := sched.Func{
		TaskName:     "reconcile",
		TaskInterval: cfg.ReconcileInterval,
		OnStart:      true,
		Fn: func(ctx context.Context) error {
			conns, err := snapshotter.Established()
			if err != nil {
				return fmt.Errorf("socket snapshot: %w", err)
			}
			added, removed := tracker.Reconcile(conns)
			m.ReconcileAdded.Add(float64(added))
			m.ReconcileRemoved.Add(float64(removed))
			if added > 0 || removed > 0 {
				logger.Debug("reconciled peers", "added", added, "removed", removed)
			}
			return nil
		},
	}
	if err := s.Register(reconcile); err != nil {
		return nil, err
	}

	sweep := sched.Func{
		TaskName:     "sweep",
		TaskInterval: cfg.SweepInterval,
		Fn: func(ctx context.Context) error {
			dropped := engine.Sweep(time.Now())
			m.BlocksSwept.Add(float64(dropped))
			m.BlocksOpen.Set(float64(engine.OpenCount()))
			return nil
		},
	}
	if err := s.Register(sweep); err != nil {
		return nil, err
	}

	return s, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFile)
	network := cfg.Chain()
	logger.Info("starting blockperf",
		"version", version, "commit", commit, "built", date,
		"network", network.Name, "logfile", cfg.NodeLogFile)

	m := metrics.New(prometheus.DefaultRegisterer)

	otelSink, cleanupOTEL, err := setupOTEL(logger)
	if err != nil {
		return err
	}
	defer cleanupOTEL()

	meta := api.Meta{
		Magic:     uint64(network.Magic),
		Version:   version,
		LocalAddr: cfg.LocalAddr(),
		LocalPort: cfg.RelayPublicPort,
	}
	publisher, err := api.NewPublisher(api.NewClient(cfg.BackendURL(), cfg.APIKey),
		meta, cfg.SampleFilter, cfg.PublishQueue, m, logger)
	if err != nil {
		return err
	}

	sink := blocks.MultiSink{publisher}
	if otelSink != nil {
		sink = append(sink, otelSink)
	}

	tracker := peers.NewTracker(logger)
	engine := blocks.NewEngine(network, sink, cfg.BlockMaxAge, logger)

	tailer, err := nodelog.NewTailer(cfg.NodeLogFile, logger,
		nodelog.WithDropCounter(m.LinesDropped.Inc))
	if err != nil {
		return err
	}
	defer tailer.Close()

	scheduler, err := setupTasks(cfg, tracker, engine, m, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := dispatch.New(tailer, tracker, engine, m, logger).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := publisher.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.StatusAddr != "" {
		srv := status.NewServer(tracker, engine, logger)
		g.Go(func() error {
			err := srv.Run(ctx, cfg.StatusAddr)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	scheduler.Start(ctx)

	err = g.Wait()
	scheduler.Wait()
	logger.Info("blockperf stopped")
	return err
}
