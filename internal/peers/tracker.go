package peers

import (
	"log/slog"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// Peer is a remote node with an active connection to or from the tracked
// node, identified by its remote address and port.
type Peer struct {
	Remote      netip.AddrPort
	Local       netip.AddrPort // zero until an event or the OS supplies it
	Direction   Direction
	State       State
	LastUpdated time.Time
}

// Conn is one established OS-level connection involving the node port.
type Conn struct {
	Local     netip.AddrPort
	Remote    netip.AddrPort
	Direction Direction
}

// Tracker owns the authoritative peer map. All mutation goes through its
// operations; Apply calls arrive in log order from the single dispatch loop
// while Reconcile runs on its own timer.
type Tracker struct {
	mu    sync.Mutex
	peers map[netip.AddrPort]*Peer
	log   *slog.Logger
	now   func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		peers: make(map[netip.AddrPort]*Peer),
		log:   logger,
		now:   time.Now,
	}
}

// Apply records a state transition derived from a log event. The peer is
// created if absent; a status-change referencing an untracked peer still
// carries its full state, so dropping it would lose information.
//
// A from-state mismatch against the tracked record is logged but never
// blocks the transition: the log-derived to-state is the node's
// authoritative view.
func (t *Tracker) Apply(at time.Time, from, to State, dir Direction, local, remote netip.AddrPort) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.peers[remote]
	if !ok {
		p = &Peer{Remote: remote}
		t.peers[remote] = p
		t.log.Debug("peer created from log event", "remote", remote, "state", to)
	}

	if from != StateUnknown && p.State != StateUnknown && p.State != from {
		t.log.Warn("peer from-state mismatch, applying anyway",
			"remote", remote, "tracked", p.State, "from", from, "to", to)
	} else if !ValidTransition(p.State, to) {
		t.log.Warn("transition outside table, applying anyway",
			"remote", remote, "tracked", p.State, "to", to)
	}

	p.State = to
	if p.Direction == DirectionUnknown {
		p.Direction = dir
	}
	if local.IsValid() {
		p.Local = local
	}
	p.LastUpdated = at
}

// Flush drops all tracked peers. Called when the node restarts, since every
// previous connection is gone and the peer list will be rebuilt from fresh
// events and reconciliation.
func (t *Tracker) Flush() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.peers)
	t.peers = make(map[netip.AddrPort]*Peer)
	return n
}

// Reconcile aligns peer existence with the OS's established connections:
// connections with no tracked peer are inserted with state Unknown, tracked
// peers with no connection are removed. Idempotent for an unchanged
// snapshot. Returns the number of peers added and removed.
func (t *Tracker) Reconcile(conns []Conn) (added, removed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	alive := make(map[netip.AddrPort]bool, len(conns))
	for _, c := range conns {
		alive[c.Remote] = true
		if _, ok := t.peers[c.Remote]; ok {
			continue
		}
		t.peers[c.Remote] = &Peer{
			Remote:      c.Remote,
			Local:       c.Local,
			Direction:   c.Direction,
			State:       StateUnknown,
			LastUpdated: t.now(),
		}
		added++
	}

	for remote := range t.peers {
		if !alive[remote] {
			delete(t.peers, remote)
			removed++
		}
	}
	return added, removed
}

// Snapshot returns a copy of the current peer set, sorted by remote
// endpoint for stable output.
func (t *Tracker) Snapshot() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Remote.String() < out[j].Remote.String()
	})
	return out
}

// Counts returns the number of peers per state. Every state is present in
// the result, with zero for states no peer is in.
func (t *Tracker) Counts() map[State]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := map[State]int{
		StateUnknown: 0,
		StateCold:    0,
		StateWarm:    0,
		StateHot:     0,
		StateCooling: 0,
	}
	for _, p := range t.peers {
		counts[p.State]++
	}
	return counts
}
