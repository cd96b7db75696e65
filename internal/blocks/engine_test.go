package blocks

import (
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/openblockperf/agent/internal/chain"
)

type captureSink struct {
	samples []Sample
}

func (c *captureSink) Emit(s Sample) { c.samples = append(c.samples, s) }

func testNetwork() chain.Network {
	return chain.Network{
		Name:       "testnet",
		Magic:      42,
		Genesis:    time.Unix(0, 0).UTC(),
		SlotLength: time.Second,
	}
}

func newTestEngine(t *testing.T) (*Engine, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	e := NewEngine(testNetwork(), sink, DefaultMaxAge, slog.New(slog.DiscardHandler))
	return e, sink
}

func TestEngineDeltas(t *testing.T) {
	e, sink := newTestEngine(t)

	remote := netip.MustParseAddrPort("203.0.113.9:3001")
	fetcher := netip.MustParseAddrPort("198.51.100.4:3001")

	// Slot 1000 with genesis at the epoch puts the slot time at t=1000s.
	at := func(offsetMillis int64) time.Time {
		return time.Unix(1000, 0).Add(time.Duration(offsetMillis) * time.Millisecond).UTC()
	}

	e.OnHeaderSeen("abc123", 77, 1000, 0, remote, at(300))
	e.OnFetchRequested("abc123", at(500))
	e.OnDownloaded("abc123", 86213, fetcher, at(1000))
	e.OnAdopted("abc123", at(1200))

	if len(sink.samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(sink.samples))
	}
	s := sink.samples[0]

	if s.HeaderDelta != 300*time.Millisecond {
		t.Errorf("HeaderDelta = %v, want 300ms", s.HeaderDelta)
	}
	if s.RequestDelta != 200*time.Millisecond {
		t.Errorf("RequestDelta = %v, want 200ms", s.RequestDelta)
	}
	if s.ResponseDelta != 500*time.Millisecond {
		t.Errorf("ResponseDelta = %v, want 500ms", s.ResponseDelta)
	}
	if s.AdoptDelta != 200*time.Millisecond {
		t.Errorf("AdoptDelta = %v, want 200ms", s.AdoptDelta)
	}
	if s.BlockNo != 77 || s.Slot != 1000 || s.Size != 86213 {
		t.Errorf("sample identity = %d/%d/%d, want 77/1000/86213", s.BlockNo, s.Slot, s.Size)
	}
	if s.HeaderRemote != remote {
		t.Errorf("HeaderRemote = %v, want %v", s.HeaderRemote, remote)
	}
	if s.DownloadRemote != fetcher {
		t.Errorf("DownloadRemote = %v, want %v", s.DownloadRemote, fetcher)
	}
	if e.OpenCount() != 0 {
		t.Errorf("OpenCount = %d after adoption, want 0", e.OpenCount())
	}
}

func TestEngineAtMostOnce(t *testing.T) {
	e, sink := newTestEngine(t)

	remote := netip.MustParseAddrPort("203.0.113.9:3001")
	base := time.Unix(1000, 0).UTC()

	e.OnHeaderSeen("abc123", 77, 1000, 0, remote, base)
	e.OnFetchRequested("abc123", base.Add(time.Second))
	e.OnDownloaded("abc123", 100, remote, base.Add(2*time.Second))
	e.OnAdopted("abc123", base.Add(3*time.Second))

	// A fork switch can replay adoption for the same hash.
	e.OnAdopted("abc123", base.Add(4*time.Second))

	// Late duplicates must not reopen a finalized hash either.
	e.OnHeaderSeen("abc123", 77, 1000, 0, remote, base.Add(5*time.Second))
	e.OnDownloaded("abc123", 100, remote, base.Add(6*time.Second))
	e.OnAdopted("abc123", base.Add(7*time.Second))

	if len(sink.samples) != 1 {
		t.Fatalf("got %d samples, want exactly 1", len(sink.samples))
	}
	if e.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, want 0", e.OpenCount())
	}
}

func TestEngineFirstWriterWins(t *testing.T) {
	e, sink := newTestEngine(t)

	first := netip.MustParseAddrPort("203.0.113.9:3001")
	second := netip.MustParseAddrPort("198.51.100.4:3001")
	base := time.Unix(1000, 0).UTC()

	e.OnHeaderSeen("abc123", 77, 1000, 0, first, base.Add(100*time.Millisecond))
	e.OnHeaderSeen("abc123", 77, 1000, 0, second, base.Add(50*time.Millisecond))
	e.OnFetchRequested("abc123", base.Add(200*time.Millisecond))
	e.OnFetchRequested("abc123", base.Add(150*time.Millisecond))
	e.OnDownloaded("abc123", 100, first, base.Add(300*time.Millisecond))
	e.OnDownloaded("abc123", 100, second, base.Add(250*time.Millisecond))
	e.OnAdopted("abc123", base.Add(400*time.Millisecond))

	if len(sink.samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(sink.samples))
	}
	s := sink.samples[0]
	if s.HeaderSeen != base.Add(100*time.Millisecond) {
		t.Errorf("HeaderSeen = %v, first sighting should win", s.HeaderSeen)
	}
	if s.HeaderRemote != first {
		t.Errorf("HeaderRemote = %v, want %v", s.HeaderRemote, first)
	}
	if s.FetchRequested != base.Add(200*time.Millisecond) {
		t.Errorf("FetchRequested = %v, first request should win", s.FetchRequested)
	}
	if s.Downloaded != base.Add(300*time.Millisecond) {
		t.Errorf("Downloaded = %v, first completion should win", s.Downloaded)
	}
	if s.DownloadRemote != first {
		t.Errorf("DownloadRemote = %v, want %v", s.DownloadRemote, first)
	}
}

func TestEngineIncompleteRecordDropped(t *testing.T) {
	e, sink := newTestEngine(t)

	base := time.Unix(1000, 0).UTC()

	// Adoption without a download milestone, as after a local replay.
	e.OnHeaderSeen("abc123", 77, 1000, 0, netip.AddrPort{}, base)
	e.OnAdopted("abc123", base.Add(time.Second))

	if len(sink.samples) != 0 {
		t.Fatalf("got %d samples from incomplete record, want 0", len(sink.samples))
	}
	if e.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, incomplete record should still close", e.OpenCount())
	}
}

func TestEngineAdoptionWithoutRecord(t *testing.T) {
	e, sink := newTestEngine(t)

	e.OnAdopted("feedbeef", time.Unix(1000, 0).UTC())
	e.OnFetchRequested("feedbeef", time.Unix(1000, 0).UTC())

	if len(sink.samples) != 0 {
		t.Fatalf("got %d samples, want 0", len(sink.samples))
	}
	if e.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, want 0", e.OpenCount())
	}
}

func TestEngineSweep(t *testing.T) {
	e, sink := newTestEngine(t)

	clock := time.Unix(5000, 0).UTC()
	e.now = func() time.Time { return clock }

	remote := netip.MustParseAddrPort("203.0.113.9:3001")
	e.OnHeaderSeen("stale00", 10, 4000, 0, remote, clock)

	clock = clock.Add(5 * time.Minute)
	e.OnHeaderSeen("fresh00", 11, 4300, 0, remote, clock)

	clock = clock.Add(6 * time.Minute)
	dropped := e.Sweep(clock)

	if dropped != 1 {
		t.Fatalf("Sweep dropped %d, want 1", dropped)
	}
	if e.OpenCount() != 1 {
		t.Errorf("OpenCount = %d after sweep, want 1", e.OpenCount())
	}
	if len(sink.samples) != 0 {
		t.Errorf("sweep emitted %d samples, want 0", len(sink.samples))
	}

	// The swept hash is gone, not finalized; a fresh sighting reopens it.
	e.OnHeaderSeen("stale00", 10, 4000, 0, remote, clock)
	if e.OpenCount() != 2 {
		t.Errorf("OpenCount = %d after reopen, want 2", e.OpenCount())
	}
}

func TestEngineSweepForgetsFinalized(t *testing.T) {
	e, _ := newTestEngine(t)

	clock := time.Unix(5000, 0).UTC()
	e.now = func() time.Time { return clock }

	remote := netip.MustParseAddrPort("203.0.113.9:3001")
	e.OnHeaderSeen("abc123", 77, 1000, 0, remote, clock)
	e.OnFetchRequested("abc123", clock)
	e.OnDownloaded("abc123", 100, remote, clock)
	e.OnAdopted("abc123", clock)

	if _, ok := e.done["abc123"]; !ok {
		t.Fatal("finalized hash not remembered")
	}

	clock = clock.Add(11 * time.Minute)
	e.Sweep(clock)

	if _, ok := e.done["abc123"]; ok {
		t.Error("finalized hash still remembered after sweep horizon")
	}
}
