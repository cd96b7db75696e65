package blocks

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/openblockperf/agent/internal/chain"
)

// DefaultMaxAge is how long an unadopted record may sit in the open table
// before the sweep drops it. Adoption normally follows the header within a
// few seconds; ten minutes is far beyond any plausible adoption latency.
const DefaultMaxAge = 10 * time.Minute

// Record is one in-flight block. Zero-valued milestone timestamps mean the
// milestone has not been observed yet.
type Record struct {
	Hash    string
	BlockNo uint64
	Slot    uint64
	Size    uint64

	HeaderSeen     time.Time
	HeaderRemote   netip.AddrPort
	FetchRequested time.Time
	Downloaded     time.Time
	DownloadRemote netip.AddrPort
	Adopted        time.Time

	// openedAt is the local receive time of the creating event, used for
	// staleness only; the milestone timestamps come from the log.
	openedAt time.Time
}

// Sample is the finalized snapshot of a fully correlated block.
//
// Deltas are reported exactly as computed. Clock skew or out-of-order
// delivery can make them negative; clamping would hide that signal.
type Sample struct {
	Hash    string
	BlockNo uint64
	Slot    uint64
	Size    uint64

	SlotTime       time.Time
	HeaderSeen     time.Time
	HeaderRemote   netip.AddrPort
	FetchRequested time.Time
	Downloaded     time.Time
	DownloadRemote netip.AddrPort
	Adopted        time.Time

	HeaderDelta   time.Duration // slot time -> header sighting
	RequestDelta  time.Duration // header sighting -> fetch request
	ResponseDelta time.Duration // fetch request -> download completion
	AdoptDelta    time.Duration // download completion -> adoption
}

// SampleSink receives each finalized sample exactly once. Emit must not
// block; delivery is the sink's responsibility.
type SampleSink interface {
	Emit(Sample)
}

// MultiSink fans one sample out to several sinks.
type MultiSink []SampleSink

func (m MultiSink) Emit(s Sample) {
	for _, sink := range m {
		sink.Emit(s)
	}
}

// Engine owns the open-record table. Event operations arrive in log order
// from the single dispatch loop; Sweep runs on its own timer and takes the
// same lock for the duration of a pass.
type Engine struct {
	mu   sync.Mutex
	open map[string]*Record
	// done remembers finalized hashes until the sweep forgets them, so a
	// late duplicate event can never reopen a record and emit twice.
	done map[string]time.Time

	network chain.Network
	sink    SampleSink
	maxAge  time.Duration
	log     *slog.Logger
	now     func() time.Time

	incomplete uint64
	swept      uint64
}

// NewEngine creates an engine emitting finalized samples to sink.
func NewEngine(network chain.Network, sink SampleSink, maxAge time.Duration, logger *slog.Logger) *Engine {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Engine{
		open:    make(map[string]*Record),
		done:    make(map[string]time.Time),
		network: network,
		sink:    sink,
		maxAge:  maxAge,
		log:     logger,
		now:     time.Now,
	}
}

// OnHeaderSeen opens the record if absent and sets the header milestone if
// unset. Headers for the same block arrive from many peers; only the first
// sighting counts.
func (e *Engine) OnHeaderSeen(hash string, blockNo, slot, size uint64, remote netip.AddrPort, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.getOrOpen(hash)
	if !ok {
		return
	}
	if r.BlockNo == 0 {
		r.BlockNo = blockNo
	}
	if r.Slot == 0 {
		r.Slot = slot
	}
	if r.Size == 0 {
		r.Size = size
	}
	if r.HeaderSeen.IsZero() {
		r.HeaderSeen = at
		r.HeaderRemote = remote
	}
}

// OnFetchRequested sets the request milestone if the record exists and the
// milestone is unset. The node fans fetch requests out to several peers;
// only the first counts.
func (e *Engine) OnFetchRequested(hash string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.open[hash]
	if !ok {
		return
	}
	if r.FetchRequested.IsZero() {
		r.FetchRequested = at
	}
}

// OnDownloaded opens the record if absent and sets the download milestone
// if unset, including the remote the body actually came from.
func (e *Engine) OnDownloaded(hash string, size uint64, remote netip.AddrPort, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.getOrOpen(hash)
	if !ok {
		return
	}
	if r.Size == 0 {
		r.Size = size
	}
	if r.Downloaded.IsZero() {
		r.Downloaded = at
		r.DownloadRemote = remote
	}
}

// OnAdopted sets the adoption milestone and finalizes the record: deltas are
// computed, the sample goes to the sink, and the record leaves the open
// table. A second adoption for the same hash is a pure no-op, which makes
// emission at-most-once per hash by construction.
func (e *Engine) OnAdopted(hash string, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.open[hash]
	if !ok {
		return
	}
	if r.Adopted.IsZero() {
		r.Adopted = at
	}
	e.finalize(r)
}

// getOrOpen returns the open record for hash, creating it if the hash has
// not already been finalized.
func (e *Engine) getOrOpen(hash string) (*Record, bool) {
	if _, finalized := e.done[hash]; finalized {
		return nil, false
	}
	r, ok := e.open[hash]
	if !ok {
		r = &Record{Hash: hash, openedAt: e.now()}
		e.open[hash] = r
	}
	return r, true
}

// finalize computes deltas and emits. Records missing a milestone cannot
// produce meaningful deltas; they are dropped, counted, and logged instead
// of polluting the backend.
func (e *Engine) finalize(r *Record) {
	delete(e.open, r.Hash)
	e.done[r.Hash] = e.now()

	if r.HeaderSeen.IsZero() || r.FetchRequested.IsZero() || r.Downloaded.IsZero() {
		e.incomplete++
		e.log.Info("dropping incomplete block record",
			"hash", r.Hash,
			"headerSeen", !r.HeaderSeen.IsZero(),
			"fetchRequested", !r.FetchRequested.IsZero(),
			"downloaded", !r.Downloaded.IsZero())
		return
	}

	slotTime := e.network.SlotTime(r.Slot)
	sample := Sample{
		Hash:           r.Hash,
		BlockNo:        r.BlockNo,
		Slot:           r.Slot,
		Size:           r.Size,
		SlotTime:       slotTime,
		HeaderSeen:     r.HeaderSeen,
		HeaderRemote:   r.HeaderRemote,
		FetchRequested: r.FetchRequested,
		Downloaded:     r.Downloaded,
		DownloadRemote: r.DownloadRemote,
		Adopted:        r.Adopted,
		HeaderDelta:    r.HeaderSeen.Sub(slotTime),
		RequestDelta:   r.FetchRequested.Sub(r.HeaderSeen),
		ResponseDelta:  r.Downloaded.Sub(r.FetchRequested),
		AdoptDelta:     r.Adopted.Sub(r.Downloaded),
	}

	if sample.HeaderDelta < 0 || sample.RequestDelta < 0 || sample.ResponseDelta < 0 || sample.AdoptDelta < 0 {
		e.log.Warn("sample has negative delta, emitting as computed",
			"hash", r.Hash, "headerDelta", sample.HeaderDelta,
			"blockReqDelta", sample.RequestDelta,
			"blockRspDelta", sample.ResponseDelta,
			"blockAdoptDelta", sample.AdoptDelta)
	}

	e.sink.Emit(sample)
}

// Sweep drops open records older than the staleness threshold, typically
// blocks that lost a fork race and were never adopted. It also forgets
// finalized hashes older than the threshold. Returns the number of open
// records dropped.
func (e *Engine) Sweep(now time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for hash, r := range e.open {
		if now.Sub(r.openedAt) > e.maxAge {
			delete(e.open, hash)
			dropped++
			e.swept++
			e.log.Debug("swept stale block record", "hash", hash, "age", now.Sub(r.openedAt))
		}
	}
	for hash, finishedAt := range e.done {
		if now.Sub(finishedAt) > e.maxAge {
			delete(e.done, hash)
		}
	}
	return dropped
}

// OpenCount returns the number of in-flight records.
func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.open)
}

// OpenRecords returns a copy of the in-flight records for reporting.
func (e *Engine) OpenRecords() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Record, 0, len(e.open))
	for _, r := range e.open {
		out = append(out, *r)
	}
	return out
}
