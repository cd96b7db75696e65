package events

import (
	"net/netip"
	"time"

	"github.com/openblockperf/agent/internal/peers"
)

// Payload is one member of the closed set of classified event payloads.
type Payload interface {
	isPayload()
}

// PeerTransition is a peer state change, sourced either from an inbound
// governor promotion/demotion or from a peer-selection status change. From
// is StateUnknown for governor events, which only name the target state.
type PeerTransition struct {
	At        time.Time
	From      peers.State
	To        peers.State
	Direction peers.Direction
	Local     netip.AddrPort // zero when the event carries no local endpoint
	Remote    netip.AddrPort
}

// GovernorCounters is the inbound governor's periodic peer census.
type GovernorCounters struct {
	At   time.Time
	Idle int
	Cold int
	Warm int
	Hot  int
}

// NodeRestart marks the node's server startup; all previously tracked peer
// state is stale from this instant.
type NodeRestart struct {
	At time.Time
}

// HeaderSeen is the first sighting of a block header from a peer.
type HeaderSeen struct {
	At      time.Time
	Hash    string
	BlockNo uint64
	Slot    uint64
	Remote  netip.AddrPort
}

// FetchRequested is the node asking a peer for a block body.
type FetchRequested struct {
	At   time.Time
	Hash string
}

// Downloaded is the completed transfer of a block body.
type Downloaded struct {
	At     time.Time
	Hash   string
	Size   uint64
	Remote netip.AddrPort
}

// Adopted is the block's adoption into the local chain, either by extending
// the current chain or by switching to a fork.
type Adopted struct {
	At   time.Time
	Hash string
}

func (PeerTransition) isPayload()   {}
func (GovernorCounters) isPayload() {}
func (NodeRestart) isPayload()      {}
func (HeaderSeen) isPayload()       {}
func (FetchRequested) isPayload()   {}
func (Downloaded) isPayload()       {}
func (Adopted) isPayload()          {}
