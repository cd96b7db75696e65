package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/openblockperf/agent/internal/blocks"
	"github.com/openblockperf/agent/internal/metrics"
)

// Publisher queues finalized samples and submits them from a single worker
// goroutine. Emit never blocks; when the queue is full the sample is
// dropped and counted, since a stalled backend must not back up into the
// event loop.
type Publisher struct {
	client  *Client
	meta    Meta
	filter  *vm.Program
	queue   chan blocks.Sample
	metrics *metrics.Metrics
	log     *slog.Logger
}

// filterEnv is the namespace a sample filter expression sees. An empty
// filter admits every sample.
type filterEnv struct {
	BlockNo         uint64  `expr:"blockNo"`
	SlotNo          uint64  `expr:"slotNo"`
	BlockSize       uint64  `expr:"blockSize"`
	HeaderDelta     float64 `expr:"headerDelta"`
	BlockReqDelta   float64 `expr:"blockReqDelta"`
	BlockRspDelta   float64 `expr:"blockRspDelta"`
	BlockAdoptDelta float64 `expr:"blockAdoptDelta"`
}

// NewPublisher compiles the filter expression once and sizes the queue.
// filterExpr may be empty.
func NewPublisher(client *Client, meta Meta, filterExpr string, queueSize int, m *metrics.Metrics, logger *slog.Logger) (*Publisher, error) {
	var program *vm.Program
	if filterExpr != "" {
		var err error
		program, err = expr.Compile(filterExpr, expr.Env(filterEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile sample filter: %w", err)
		}
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Publisher{
		client:  client,
		meta:    meta,
		filter:  program,
		queue:   make(chan blocks.Sample, queueSize),
		metrics: m,
		log:     logger,
	}, nil
}

// Emit implements blocks.SampleSink.
func (p *Publisher) Emit(s blocks.Sample) {
	select {
	case p.queue <- s:
	default:
		p.metrics.SamplesDropped.Inc()
		p.log.Warn("publish queue full, dropping sample", "hash", s.Hash)
	}
}

// Run drains the queue until the context ends.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-p.queue:
			p.publish(ctx, s)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, s blocks.Sample) {
	if !p.admit(s) {
		p.metrics.SamplesFiltered.Inc()
		p.log.Debug("sample excluded by filter", "hash", s.Hash)
		return
	}

	req := newBlockSampleRequest(s, p.meta)
	if err := p.client.SubmitBlockSample(ctx, req); err != nil {
		p.metrics.PublishErrors.Inc()
		p.log.Error("block sample submission failed", "hash", s.Hash, "err", err)
		return
	}
	p.metrics.SamplesPublished.Inc()
	p.log.Info("block sample published",
		"hash", s.Hash, "blockNo", s.BlockNo, "slotNo", s.Slot,
		"headerDelta", secondsText(s.HeaderDelta),
		"blockRspDelta", secondsText(s.ResponseDelta))
}

func (p *Publisher) admit(s blocks.Sample) bool {
	if p.filter == nil {
		return true
	}
	out, err := expr.Run(p.filter, filterEnv{
		BlockNo:         s.BlockNo,
		SlotNo:          s.Slot,
		BlockSize:       s.Size,
		HeaderDelta:     s.HeaderDelta.Seconds(),
		BlockReqDelta:   s.RequestDelta.Seconds(),
		BlockRspDelta:   s.ResponseDelta.Seconds(),
		BlockAdoptDelta: s.AdoptDelta.Seconds(),
	})
	if err != nil {
		p.log.Warn("sample filter evaluation failed, admitting sample", "hash", s.Hash, "err", err)
		return true
	}
	pass, ok := out.(bool)
	return !ok || pass
}
