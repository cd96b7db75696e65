package netconns

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/prometheus/procfs"

	"github.com/openblockperf/agent/internal/peers"
)

// tcpEstablished is the TCP_ESTABLISHED value from the kernel's socket
// state enum, as rendered in /proc/net/tcp.
const tcpEstablished = 1

// Snapshotter lists the established TCP connections relevant to the node.
type Snapshotter interface {
	Established() ([]peers.Conn, error)
}

// ProcSnapshotter reads /proc/net/tcp and /proc/net/tcp6. Only connections
// touching the node's listen port are returned; everything else on the host
// is someone else's traffic.
type ProcSnapshotter struct {
	fs       procfs.FS
	nodePort uint16
}

// NewProcSnapshotter mounts the proc filesystem at mountPoint, normally
// procfs.DefaultMountPoint. nodePort is the node's p2p listen port.
func NewProcSnapshotter(mountPoint string, nodePort uint16) (*ProcSnapshotter, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcSnapshotter{fs: fs, nodePort: nodePort}, nil
}

func (s *ProcSnapshotter) Established() ([]peers.Conn, error) {
	tcp4, err := s.fs.NetTCP()
	if err != nil {
		return nil, fmt.Errorf("read net/tcp: %w", err)
	}
	tcp6, err := s.fs.NetTCP6()
	if err != nil {
		return nil, fmt.Errorf("read net/tcp6: %w", err)
	}

	var conns []peers.Conn
	for _, line := range append(tcp4, tcp6...) {
		if line.St != tcpEstablished {
			continue
		}
		conn, ok := s.classify(line.LocalAddr, line.LocalPort, line.RemAddr, line.RemPort)
		if !ok {
			continue
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// classify keeps only sockets on the node's port and tags their direction:
// a local match is a peer that dialed in, a remote match is one we dialed.
func (s *ProcSnapshotter) classify(localAddr net.IP, localPort uint64, remAddr net.IP, remPort uint64) (peers.Conn, bool) {
	local, ok := toAddrPort(localAddr, localPort)
	if !ok {
		return peers.Conn{}, false
	}
	remote, ok := toAddrPort(remAddr, remPort)
	if !ok {
		return peers.Conn{}, false
	}

	var dir peers.Direction
	switch {
	case local.Port() == s.nodePort:
		dir = peers.DirectionInbound
	case remote.Port() == s.nodePort:
		dir = peers.DirectionOutbound
	default:
		return peers.Conn{}, false
	}
	return peers.Conn{Local: local, Remote: remote, Direction: dir}, true
}

func toAddrPort(ip net.IP, port uint64) (netip.AddrPort, bool) {
	addr, ok := netip.AddrFromSlice(ip)
	if !ok || port > 65535 {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), true
}
