package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openblockperf/agent/internal/blocks"
)

func testSample() blocks.Sample {
	return blocks.Sample{
		Hash:           "8f3c1742aa",
		BlockNo:        10424367,
		Slot:           127580651,
		Size:           86213,
		SlotTime:       time.Unix(1719146942, 0).UTC(),
		HeaderRemote:   netip.MustParseAddrPort("203.0.113.9:3001"),
		DownloadRemote: netip.MustParseAddrPort("198.51.100.4:6000"),
		HeaderDelta:    300 * time.Millisecond,
		RequestDelta:   200 * time.Millisecond,
		ResponseDelta:  500 * time.Millisecond,
		AdoptDelta:     200 * time.Millisecond,
	}
}

func testMeta() Meta {
	return Meta{
		Magic:     764824073,
		Version:   "v2.0.0",
		LocalAddr: netip.MustParseAddr("10.0.0.5"),
		LocalPort: 3001,
	}
}

func TestClientSubmitBlockSample(t *testing.T) {
	var got map[string]any
	var gotKey, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	err := c.SubmitBlockSample(context.Background(), newBlockSampleRequest(testSample(), testMeta()))
	require.NoError(t, err)

	assert.Equal(t, "/submit/blocksample", gotPath)
	assert.Equal(t, "secret-key", gotKey)

	assert.Equal(t, float64(764824073), got["magic"])
	assert.Equal(t, "v2.0.0", got["bpVersion"])
	assert.Equal(t, "8f3c1742aa", got["blockHash"])
	assert.Equal(t, "0.300", got["headerDelta"])
	assert.Equal(t, "0.200", got["blockReqDelta"])
	assert.Equal(t, "0.500", got["blockRspDelta"])
	assert.Equal(t, "0.200", got["blockAdoptDelta"])
	assert.Equal(t, "203.0.113.9", got["headerRemoteAddr"])
	assert.Equal(t, float64(3001), got["headerRemotePort"])
	assert.Equal(t, "198.51.100.4", got["blockRemoteAddress"])
	assert.Equal(t, float64(6000), got["blockRemotePort"])
	assert.Equal(t, "10.0.0.5", got["blockLocalAddress"])
	assert.Equal(t, float64(3001), got["blockLocalPort"])
	assert.Equal(t, float64(1719146942), got["blockG"])
}

func TestClientSubmitBlockSampleRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wrong")
	err := c.SubmitBlockSample(context.Background(), newBlockSampleRequest(testSample(), testMeta()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad api key")
}

func TestSecondsTextNegative(t *testing.T) {
	assert.Equal(t, "-0.250", secondsText(-250*time.Millisecond))
	assert.Equal(t, "0.000", secondsText(0))
}
