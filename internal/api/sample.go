package api

import (
	"net/netip"
	"strconv"
	"time"

	"github.com/openblockperf/agent/internal/blocks"
)

// Meta is the per-agent constants stamped onto every sample: the network
// magic, the reporting agent version, and the node's advertised endpoint.
type Meta struct {
	Magic     uint64
	Version   string
	LocalAddr netip.Addr
	LocalPort uint16
}

// blockSampleRequest is the backend's wire format. Field names and the
// fractional-seconds delta encoding must match what the backend already
// accepts from deployed agents.
type blockSampleRequest struct {
	Magic            uint64 `json:"magic"`
	BPVersion        string `json:"bpVersion"`
	BlockNo          uint64 `json:"blockNo"`
	SlotNo           uint64 `json:"slotNo"`
	BlockHash        string `json:"blockHash"`
	BlockSize        uint64 `json:"blockSize"`
	HeaderRemoteAddr string `json:"headerRemoteAddr"`
	HeaderRemotePort uint16 `json:"headerRemotePort"`
	HeaderDelta      string `json:"headerDelta"`
	BlockReqDelta    string `json:"blockReqDelta"`
	BlockRspDelta    string `json:"blockRspDelta"`
	BlockAdoptDelta  string `json:"blockAdoptDelta"`
	BlockRemoteAddr  string `json:"blockRemoteAddress"`
	BlockRemotePort  uint16 `json:"blockRemotePort"`
	BlockLocalAddr   string `json:"blockLocalAddress"`
	BlockLocalPort   uint16 `json:"blockLocalPort"`
	BlockG           int64  `json:"blockG"`
}

func newBlockSampleRequest(s blocks.Sample, meta Meta) blockSampleRequest {
	return blockSampleRequest{
		Magic:            meta.Magic,
		BPVersion:        meta.Version,
		BlockNo:          s.BlockNo,
		SlotNo:           s.Slot,
		BlockHash:        s.Hash,
		BlockSize:        s.Size,
		HeaderRemoteAddr: addrText(s.HeaderRemote.Addr()),
		HeaderRemotePort: s.HeaderRemote.Port(),
		HeaderDelta:      secondsText(s.HeaderDelta),
		BlockReqDelta:    secondsText(s.RequestDelta),
		BlockRspDelta:    secondsText(s.ResponseDelta),
		BlockAdoptDelta:  secondsText(s.AdoptDelta),
		BlockRemoteAddr:  addrText(s.DownloadRemote.Addr()),
		BlockRemotePort:  s.DownloadRemote.Port(),
		BlockLocalAddr:   addrText(meta.LocalAddr),
		BlockLocalPort:   meta.LocalPort,
		BlockG:           s.SlotTime.Unix(),
	}
}

// secondsText renders a delta as fractional seconds with millisecond
// precision, the encoding deployed agents have always sent.
func secondsText(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func addrText(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
