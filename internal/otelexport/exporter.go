package otelexport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openblockperf/agent/internal/blocks"
)

const tracerName = "github.com/openblockperf/agent"

// Exporter renders each sample as one span from nominal slot time to
// adoption, with a span event per observed milestone.
type Exporter struct {
	tracer trace.Tracer
}

// NewExporter builds a sample sink on top of a tracer provider.
func NewExporter(tp trace.TracerProvider) *Exporter {
	return &Exporter{tracer: tp.Tracer(tracerName)}
}

// Emit implements blocks.SampleSink. Span construction is in-process and
// cheap; the batch processor handles delivery off this goroutine.
func (e *Exporter) Emit(s blocks.Sample) {
	_, span := e.tracer.Start(context.Background(), "block.propagation",
		trace.WithTimestamp(s.SlotTime),
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("block.hash", s.Hash),
			attribute.Int64("block.number", int64(s.BlockNo)),
			attribute.Int64("block.slot", int64(s.Slot)),
			attribute.Int64("block.size", int64(s.Size)),
			attribute.String("block.header_remote", s.HeaderRemote.String()),
			attribute.String("block.download_remote", s.DownloadRemote.String()),
			attribute.Float64("block.header_delta_seconds", s.HeaderDelta.Seconds()),
			attribute.Float64("block.request_delta_seconds", s.RequestDelta.Seconds()),
			attribute.Float64("block.response_delta_seconds", s.ResponseDelta.Seconds()),
			attribute.Float64("block.adopt_delta_seconds", s.AdoptDelta.Seconds()),
		),
	)

	span.AddEvent("header.seen", trace.WithTimestamp(s.HeaderSeen))
	span.AddEvent("fetch.requested", trace.WithTimestamp(s.FetchRequested))
	span.AddEvent("block.downloaded", trace.WithTimestamp(s.Downloaded))
	span.AddEvent("block.adopted", trace.WithTimestamp(s.Adopted))

	span.End(trace.WithTimestamp(s.Adopted))
}
