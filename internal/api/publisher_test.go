package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/agent/internal/metrics"
)

func newTestPublisher(t *testing.T, backend http.HandlerFunc, filterExpr string) *Publisher {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	m := metrics.New(prometheus.NewRegistry())
	p, err := NewPublisher(NewClient(srv.URL, "key"), testMeta(), filterExpr, 4, m, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return p
}

func TestPublisherDeliversSample(t *testing.T) {
	var received atomic.Int64
	p := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	p.Emit(testSample())

	require.Eventually(t, func() bool { return received.Load() == 1 },
		time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestPublisherFilterExcludes(t *testing.T) {
	var received atomic.Int64
	p := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}, "headerDelta < 0.1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// testSample has headerDelta 0.3s, which the filter excludes.
	p.Emit(testSample())

	assert.Never(t, func() bool { return received.Load() > 0 },
		100*time.Millisecond, 10*time.Millisecond)
}

func TestPublisherFilterAdmits(t *testing.T) {
	var received atomic.Int64
	p := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}, "blockNo > 1000 && headerDelta < 1.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	p.Emit(testSample())

	require.Eventually(t, func() bool { return received.Load() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestPublisherRejectsBadFilter(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	_, err := NewPublisher(NewClient("http://127.0.0.1:1", "key"), testMeta(),
		"blockNo +", 4, m, slog.New(slog.DiscardHandler))
	require.Error(t, err)
}

func TestPublisherEmitNeverBlocks(t *testing.T) {
	// No worker draining the queue; Emit must still return.
	p := newTestPublisher(t, func(w http.ResponseWriter, r *http.Request) {}, "")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			p.Emit(testSample())
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
}
