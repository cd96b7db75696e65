// Package dispatch runs the agent's single event loop. All trace events
// flow through one goroutine in log order, so the peer tracker and the
// block engine observe transitions in the same sequence the node wrote
// them.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/openblockperf/agent/internal/blocks"
	"github.com/openblockperf/agent/internal/events"
	"github.com/openblockperf/agent/internal/metrics"
	"github.com/openblockperf/agent/internal/nodelog"
	"github.com/openblockperf/agent/internal/peers"
)

// Dispatcher consumes a trace event source and routes classified payloads
// to the peer tracker and the block engine.
type Dispatcher struct {
	source  nodelog.Source
	tracker *peers.Tracker
	engine  *blocks.Engine
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(source nodelog.Source, tracker *peers.Tracker, engine *blocks.Engine, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:  source,
		tracker: tracker,
		engine:  engine,
		metrics: m,
		log:     logger,
	}
}

// Run processes events until the source closes or the context ends. A
// closed source is a normal end of input, not an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-d.source.Events():
			if !ok {
				return nil
			}
			d.handle(&ev)
		}
	}
}

func (d *Dispatcher) handle(ev *nodelog.Event) {
	payload, err := events.Classify(ev)
	if err != nil {
		d.metrics.EventsIgnored.WithLabelValues("malformed").Inc()
		d.log.Warn("malformed trace event", "ns", ev.NS, "err", err)
		return
	}
	if payload == nil {
		d.metrics.EventsIgnored.WithLabelValues("unknown").Inc()
		return
	}

	switch p := payload.(type) {
	case events.PeerTransition:
		d.metrics.EventsTotal.WithLabelValues("peer_transition").Inc()
		d.tracker.Apply(p.At, p.From, p.To, p.Direction, p.Local, p.Remote)
		d.updatePeerGauges()

	case events.GovernorCounters:
		d.metrics.EventsTotal.WithLabelValues("governor_counters").Inc()
		d.log.Debug("inbound governor census",
			"idle", p.Idle, "cold", p.Cold, "warm", p.Warm, "hot", p.Hot)

	case events.NodeRestart:
		d.metrics.EventsTotal.WithLabelValues("node_restart").Inc()
		flushed := d.tracker.Flush()
		d.log.Info("node restarted, peer state flushed", "peers", flushed)
		d.updatePeerGauges()

	case events.HeaderSeen:
		d.metrics.EventsTotal.WithLabelValues("header_seen").Inc()
		d.engine.OnHeaderSeen(p.Hash, p.BlockNo, p.Slot, 0, p.Remote, p.At)
		d.metrics.BlocksOpen.Set(float64(d.engine.OpenCount()))

	case events.FetchRequested:
		d.metrics.EventsTotal.WithLabelValues("fetch_requested").Inc()
		d.engine.OnFetchRequested(p.Hash, p.At)

	case events.Downloaded:
		d.metrics.EventsTotal.WithLabelValues("downloaded").Inc()
		d.engine.OnDownloaded(p.Hash, p.Size, p.Remote, p.At)

	case events.Adopted:
		d.metrics.EventsTotal.WithLabelValues("adopted").Inc()
		d.engine.OnAdopted(p.Hash, p.At)
		d.metrics.BlocksOpen.Set(float64(d.engine.OpenCount()))
	}
}

func (d *Dispatcher) updatePeerGauges() {
	for state, n := range d.tracker.Counts() {
		d.metrics.PeersByState.WithLabelValues(state.String()).Set(float64(n))
	}
}
