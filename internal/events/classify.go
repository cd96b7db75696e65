package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/openblockperf/agent/internal/nodelog"
	"github.com/openblockperf/agent/internal/peers"
)

// decoder turns a raw record into one typed payload.
type decoder func(ev *nodelog.Event) (Payload, error)

// registry maps each recognized namespace to its decoder. The node emits
// governor traces under both the Local and Remote prefix; new namespaces
// observed in production logs get added here.
var registry = map[string]decoder{
	"ChainSync.Client.DownloadedHeader":         decodeHeaderSeen,
	"BlockFetch.Client.SendFetchRequest":        decodeFetchRequested,
	"BlockFetch.Client.CompletedBlockFetch":     decodeDownloaded,
	"ChainDB.AddBlockEvent.AddedToCurrentChain": decodeAdopted,
	"ChainDB.AddBlockEvent.SwitchedToAFork":     decodeAdopted,

	"Net.InboundGovernor.Local.PromotedToWarmRemote":     decodeGovernorTransition(peers.StateWarm),
	"Net.InboundGovernor.Local.PromotedToHotRemote":      decodeGovernorTransition(peers.StateHot),
	"Net.InboundGovernor.Local.DemotedToWarmRemote":      decodeGovernorTransition(peers.StateWarm),
	"Net.InboundGovernor.Local.DemotedToColdRemote":      decodeGovernorTransition(peers.StateCold),
	"Net.InboundGovernor.Remote.PromotedToWarmRemote":    decodeGovernorTransition(peers.StateWarm),
	"Net.InboundGovernor.Remote.PromotedToHotRemote":     decodeGovernorTransition(peers.StateHot),
	"Net.InboundGovernor.Remote.DemotedToWarmRemote":     decodeGovernorTransition(peers.StateWarm),
	"Net.InboundGovernor.Remote.DemotedToColdRemote":     decodeGovernorTransition(peers.StateCold),
	"Net.InboundGovernor.Local.InboundGovernorCounters":  decodeCounters,
	"Net.InboundGovernor.Remote.InboundGovernorCounters": decodeCounters,

	"Net.PeerSelection.Actions.StatusChanged": decodeStatusChanged,
	"Net.Server.Local.Started":                decodeRestart,
}

// Classify maps a trace record to its typed payload. A nil payload with a
// nil error means the namespace is not recognized; a non-nil error means the
// namespace matched but the payload was malformed. Both are discards, never
// stream failures.
func Classify(ev *nodelog.Event) (Payload, error) {
	dec, ok := registry[ev.NS]
	if !ok {
		return nil, nil
	}
	return dec(ev)
}

// connRef is the simple connectionId form: a single string
// "local_addr:port remote_addr:port", IPv6 in brackets.
type connRef struct {
	ConnectionID string `json:"connectionId"`
}

func (c connRef) endpoints() (local, remote netip.AddrPort, err error) {
	localStr, remoteStr, found := strings.Cut(c.ConnectionID, " ")
	if !found {
		return local, remote, fmt.Errorf("connectionId %q: missing separator", c.ConnectionID)
	}
	if local, err = netip.ParseAddrPort(localStr); err != nil {
		return local, remote, fmt.Errorf("connectionId local endpoint: %w", err)
	}
	if remote, err = netip.ParseAddrPort(remoteStr); err != nil {
		return local, remote, fmt.Errorf("connectionId remote endpoint: %w", err)
	}
	return local, remote, nil
}

func decodeHeaderSeen(ev *nodelog.Event) (Payload, error) {
	var data struct {
		Block   string  `json:"block"`
		BlockNo uint64  `json:"blockNo"`
		Slot    uint64  `json:"slot"`
		Peer    connRef `json:"peer"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("DownloadedHeader payload: %w", err)
	}
	if data.Block == "" {
		return nil, fmt.Errorf("DownloadedHeader payload: empty block hash")
	}
	_, remote, err := data.Peer.endpoints()
	if err != nil {
		return nil, fmt.Errorf("DownloadedHeader payload: %w", err)
	}
	return HeaderSeen{
		At:      ev.At,
		Hash:    data.Block,
		BlockNo: data.BlockNo,
		Slot:    data.Slot,
		Remote:  remote,
	}, nil
}

func decodeFetchRequested(ev *nodelog.Event) (Payload, error) {
	var data struct {
		Head string `json:"head"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("SendFetchRequest payload: %w", err)
	}
	if data.Head == "" {
		return nil, fmt.Errorf("SendFetchRequest payload: empty head hash")
	}
	return FetchRequested{At: ev.At, Hash: data.Head}, nil
}

func decodeDownloaded(ev *nodelog.Event) (Payload, error) {
	var data struct {
		Block string  `json:"block"`
		Size  uint64  `json:"size"`
		Peer  connRef `json:"peer"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("CompletedBlockFetch payload: %w", err)
	}
	if data.Block == "" {
		return nil, fmt.Errorf("CompletedBlockFetch payload: empty block hash")
	}
	_, remote, err := data.Peer.endpoints()
	if err != nil {
		return nil, fmt.Errorf("CompletedBlockFetch payload: %w", err)
	}
	return Downloaded{
		At:     ev.At,
		Hash:   data.Block,
		Size:   data.Size,
		Remote: remote,
	}, nil
}

func decodeAdopted(ev *nodelog.Event) (Payload, error) {
	var data struct {
		Headers []struct {
			Hash string `json:"hash"`
		} `json:"headers"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("AddBlockEvent payload: %w", err)
	}
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("AddBlockEvent payload: no headers")
	}
	// The node renders the header hash with an extra pair of double quotes.
	hash := strings.Trim(data.Headers[0].Hash, `"`)
	if hash == "" {
		return nil, fmt.Errorf("AddBlockEvent payload: empty header hash")
	}
	return Adopted{At: ev.At, Hash: hash}, nil
}

// addrPortObj is the complex connectionId form with nested address objects.
// Port arrives as a string in some node versions and as a number in others.
type addrPortObj struct {
	Address string   `json:"address"`
	Port    flexPort `json:"port"`
}

func (a addrPortObj) addrPort() (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(a.Address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("address %q: %w", a.Address, err)
	}
	return netip.AddrPortFrom(addr, uint16(a.Port)), nil
}

type flexPort uint16

func (p *flexPort) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseUint(string(b), 10, 16)
	if err != nil {
		return fmt.Errorf("port %q: %w", b, err)
	}
	*p = flexPort(v)
	return nil
}

func decodeGovernorTransition(to peers.State) decoder {
	return func(ev *nodelog.Event) (Payload, error) {
		var data struct {
			ConnectionID struct {
				LocalAddress  addrPortObj `json:"localAddress"`
				RemoteAddress addrPortObj `json:"remoteAddress"`
			} `json:"connectionId"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return nil, fmt.Errorf("governor payload: %w", err)
		}
		local, err := data.ConnectionID.LocalAddress.addrPort()
		if err != nil {
			return nil, fmt.Errorf("governor payload local: %w", err)
		}
		remote, err := data.ConnectionID.RemoteAddress.addrPort()
		if err != nil {
			return nil, fmt.Errorf("governor payload remote: %w", err)
		}
		return PeerTransition{
			At:        ev.At,
			From:      peers.StateUnknown, // governor traces only name the target state
			To:        to,
			Direction: governorDirection(ev.NS),
			Local:     local,
			Remote:    remote,
		}, nil
	}
}

// governorDirection derives the connection direction from the governor
// namespace: the Remote prefix reports peers that connected to us.
func governorDirection(ns string) peers.Direction {
	switch {
	case strings.Contains(ns, ".Remote."):
		return peers.DirectionInbound
	case strings.Contains(ns, ".Local."):
		return peers.DirectionOutbound
	}
	return peers.DirectionUnknown
}

func decodeCounters(ev *nodelog.Event) (Payload, error) {
	var data struct {
		IdlePeers int `json:"idlePeers"`
		ColdPeers int `json:"coldPeers"`
		WarmPeers int `json:"warmPeers"`
		HotPeers  int `json:"hotPeers"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("InboundGovernorCounters payload: %w", err)
	}
	return GovernorCounters{
		At:   ev.At,
		Idle: data.IdlePeers,
		Cold: data.ColdPeers,
		Warm: data.WarmPeers,
		Hot:  data.HotPeers,
	}, nil
}

func decodeStatusChanged(ev *nodelog.Event) (Payload, error) {
	var data struct {
		PeerStatusChangeType string `json:"peerStatusChangeType"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return nil, fmt.Errorf("StatusChanged payload: %w", err)
	}
	change, err := ParseStatusChange(data.PeerStatusChangeType)
	if err != nil {
		return nil, fmt.Errorf("StatusChanged payload: %w", err)
	}
	return PeerTransition{
		At:   ev.At,
		From: change.From,
		To:   change.To,
		// Status changes come from the local peer-selection governor,
		// which only manages connections we opened.
		Direction: peers.DirectionOutbound,
		Local:     change.Local,
		Remote:    change.Remote,
	}, nil
}

func decodeRestart(ev *nodelog.Event) (Payload, error) {
	return NodeRestart{At: ev.At}, nil
}
