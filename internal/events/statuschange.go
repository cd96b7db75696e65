package events

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/openblockperf/agent/internal/peers"
)

// StatusChange is the parsed form of a peerStatusChangeType string.
type StatusChange struct {
	From   peers.State
	To     peers.State
	Local  netip.AddrPort // zero for the bare form without a local endpoint
	Remote netip.AddrPort
}

// The node renders peer status changes in three layouts, all starting with
// the "<From>To<To>" transition word:
//
//	ColdToWarm (Just 172.0.118.125:3001) 3.228.174.253:6000
//	ColdToWarm 3.228.174.253:6000
//	WarmToCooling (ConnectionId {localAddress = [2a05::4c24]:3001, remoteAddress = [2600::ce19]:33525})
var (
	transitionRe = regexp.MustCompile(`^([A-Za-z]+)To([A-Za-z]+)\s+(.+)$`)
	justRe       = regexp.MustCompile(`^\(Just (\S+)\) (\S+)$`)
	connIDRe     = regexp.MustCompile(`^\(ConnectionId \{localAddress = (\S+), remoteAddress = (\S+)\}\)$`)
)

// ParseStatusChange parses a peerStatusChangeType string. Any string that
// matches none of the known layouts, or names a state token outside the
// lifecycle, is an error; callers discard the event and carry on.
func ParseStatusChange(s string) (StatusChange, error) {
	m := transitionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return StatusChange{}, fmt.Errorf("status change %q: no transition word", s)
	}

	from, ok := peers.ParseState(m[1])
	if !ok {
		return StatusChange{}, fmt.Errorf("status change %q: unknown from-state %q", s, m[1])
	}
	to, ok := peers.ParseState(m[2])
	if !ok {
		return StatusChange{}, fmt.Errorf("status change %q: unknown to-state %q", s, m[2])
	}

	change := StatusChange{From: from, To: to}
	rest := m[3]

	switch {
	case strings.HasPrefix(rest, "(Just "):
		jm := justRe.FindStringSubmatch(rest)
		if jm == nil {
			return StatusChange{}, fmt.Errorf("status change %q: malformed Just form", s)
		}
		local, err := netip.ParseAddrPort(jm[1])
		if err != nil {
			return StatusChange{}, fmt.Errorf("status change %q: local endpoint: %w", s, err)
		}
		remote, err := netip.ParseAddrPort(jm[2])
		if err != nil {
			return StatusChange{}, fmt.Errorf("status change %q: remote endpoint: %w", s, err)
		}
		change.Local, change.Remote = local, remote

	case strings.HasPrefix(rest, "(ConnectionId "):
		cm := connIDRe.FindStringSubmatch(rest)
		if cm == nil {
			return StatusChange{}, fmt.Errorf("status change %q: malformed ConnectionId form", s)
		}
		local, err := netip.ParseAddrPort(cm[1])
		if err != nil {
			return StatusChange{}, fmt.Errorf("status change %q: local endpoint: %w", s, err)
		}
		remote, err := netip.ParseAddrPort(cm[2])
		if err != nil {
			return StatusChange{}, fmt.Errorf("status change %q: remote endpoint: %w", s, err)
		}
		change.Local, change.Remote = local, remote

	default:
		// Bare form: only the remote endpoint, no local one known yet.
		remote, err := netip.ParseAddrPort(rest)
		if err != nil {
			return StatusChange{}, fmt.Errorf("status change %q: remote endpoint: %w", s, err)
		}
		change.Remote = remote
	}

	return change, nil
}
