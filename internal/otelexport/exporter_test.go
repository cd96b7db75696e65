package otelexport

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/openblockperf/agent/internal/blocks"
)

func TestExporterSpanPerSample(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	slotTime := time.Unix(1719146942, 0).UTC()
	sample := blocks.Sample{
		Hash:           "8f3c1742aa",
		BlockNo:        10424367,
		Slot:           127580651,
		Size:           86213,
		SlotTime:       slotTime,
		HeaderSeen:     slotTime.Add(300 * time.Millisecond),
		HeaderRemote:   netip.MustParseAddrPort("203.0.113.9:3001"),
		FetchRequested: slotTime.Add(500 * time.Millisecond),
		Downloaded:     slotTime.Add(time.Second),
		DownloadRemote: netip.MustParseAddrPort("198.51.100.4:6000"),
		Adopted:        slotTime.Add(1200 * time.Millisecond),
		HeaderDelta:    300 * time.Millisecond,
		RequestDelta:   200 * time.Millisecond,
		ResponseDelta:  500 * time.Millisecond,
		AdoptDelta:     200 * time.Millisecond,
	}

	NewExporter(tp).Emit(sample)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "block.propagation", span.Name())
	assert.Equal(t, slotTime, span.StartTime())
	assert.Equal(t, sample.Adopted, span.EndTime())

	attrs := make(map[string]any)
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "8f3c1742aa", attrs["block.hash"])
	assert.Equal(t, int64(10424367), attrs["block.number"])
	assert.Equal(t, 0.3, attrs["block.header_delta_seconds"])

	require.Len(t, span.Events(), 4)
	assert.Equal(t, "header.seen", span.Events()[0].Name)
	assert.Equal(t, sample.HeaderSeen, span.Events()[0].Time)
	assert.Equal(t, "block.adopted", span.Events()[3].Name)
}
