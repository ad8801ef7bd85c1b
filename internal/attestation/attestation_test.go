package attestation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	vaaLib "github.com/wormhole-foundation/wormhole/sdk/vaa"
	"go.uber.org/zap"

	"github.com/wormhole-demo/connect/internal/layout"
	"github.com/wormhole-demo/connect/internal/vaa"
)

func TestRetryFindsResult(t *testing.T) {
	var calls int
	v, found, err := Retry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) (string, bool, error) {
		calls++
		switch calls {
		case 1:
			return "", false, nil
		case 2:
			return "", false, errors.New("temporary outage")
		}
		return "ok", true, nil
	}, time.Millisecond, time.Second)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "ok", v)
	require.Equal(t, 3, calls)
}

func TestRetryExhaustsBudget(t *testing.T) {
	var calls int
	_, found, err := Retry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, errors.New("still failing")
	}, 5*time.Millisecond, 15*time.Millisecond)
	require.NoError(t, err)
	require.False(t, found)
	require.GreaterOrEqual(t, calls, 2)
	require.LessOrEqual(t, calls, 5)
}

func TestRetryBudgetIsWallClock(t *testing.T) {
	var calls int
	start := time.Now()
	_, found, err := Retry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) (int, bool, error) {
		calls++
		time.Sleep(50 * time.Millisecond)
		return 0, false, nil
	}, 10*time.Millisecond, 100*time.Millisecond)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.False(t, found)
	require.LessOrEqual(t, calls, 3)
	require.Less(t, elapsed, 300*time.Millisecond)
}

func TestRetryWithoutBudgetCallsOnce(t *testing.T) {
	var calls int
	_, found, err := Retry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	}, time.Second, 0)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, 1, calls)
}

func TestRetryStopsOnWireError(t *testing.T) {
	var calls int
	_, found, err := Retry(context.Background(), zap.NewNop(), "test", func(ctx context.Context) (int, bool, error) {
		calls++
		return 0, false, &layout.Error{Path: "payload", Err: layout.ErrShortBuffer}
	}, time.Millisecond, time.Second)
	require.ErrorIs(t, err, layout.ErrShortBuffer)
	require.False(t, found)
	require.Equal(t, 1, calls)
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, found, err := Retry(ctx, zap.NewNop(), "test", func(ctx context.Context) (int, bool, error) {
		cancel()
		return 0, false, nil
	}, time.Millisecond, time.Second)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, found)
}

func testVAA(t *testing.T, sequence uint64) (*vaa.VAA, []byte) {
	t.Helper()
	r := vaa.Default()
	v, err := r.Create(vaa.RawLiteral, vaa.Create{
		Timestamp:      1700000000,
		EmitterChain:   vaaLib.ChainIDEthereum,
		EmitterAddress: vaaLib.Address{31: 0x42},
		Sequence:       sequence,
		RawPayload:     []byte("hello"),
	})
	require.NoError(t, err)
	raw, err := r.Serialize(v)
	require.NoError(t, err)
	return v, raw
}

func TestAPIClientGetVAA(t *testing.T) {
	v, raw := testVAA(t, 7)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.NotFound(w, r)
			return
		}
		require.Equal(t, "/api/v1/vaas/"+v.ID().String(), r.URL.Path)
		fmt.Fprintf(w, `{"data":{"vaa":%q}}`, base64.StdEncoding.EncodeToString(raw))
	}))
	defer srv.Close()

	c := NewAPIClient(zap.NewNop(), srv.URL+"/")
	_, found, err := c.GetVAA(context.Background(), v.ID())
	require.NoError(t, err)
	require.False(t, found)

	got, found, err := c.GetVAA(context.Background(), v.ID())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, raw, got)
}

func TestAPIClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := NewAPIClient(zap.NewNop(), srv.URL).GetVAA(context.Background(), vaa.MessageID{})
	require.ErrorContains(t, err, "unexpected status 500")
}

func TestAPIClientDeliveryAndTransactionStatus(t *testing.T) {
	id := vaa.MessageID{Chain: vaaLib.ChainIDSolana, Sequence: 3}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/relays/" + id.String():
			fmt.Fprint(w, `{"data":{"delivery":{"execution":{"status":"success","detail":"ok"}},"toTxHash":"0xabc"}}`)
		case "/api/v1/transactions/" + id.String():
			fmt.Fprint(w, `{"globalTx":{"destinationTx":{"chainId":2,"status":"completed","txHash":"0xdef"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(zap.NewNop(), srv.URL)
	ds, found, err := c.GetDeliveryStatus(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, ds.Delivered())
	require.Equal(t, "0xabc", ds.ToTxHash)

	ts, found, err := c.GetTransactionStatus(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint16(2), ts.DestinationChain)
	require.Equal(t, "0xdef", ts.DestinationTx)
}

func TestCircleClientWaitsForComplete(t *testing.T) {
	hash := common.HexToHash("0x01")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/attestations/"+hash.Hex(), r.URL.Path)
		if hits.Add(1) < 3 {
			fmt.Fprint(w, `{"status":"pending_confirmations","attestation":null}`)
			return
		}
		fmt.Fprint(w, `{"status":"complete","attestation":"0xdeadbeef"}`)
	}))
	defer srv.Close()

	f := NewFetcher(zap.NewNop(), nil, NewCircleClient(zap.NewNop(), srv.URL), nil).WithInterval(time.Millisecond)
	att, found, err := f.FetchCircleAttestation(context.Background(), hash, time.Second)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, att)
	require.Equal(t, int32(3), hits.Load())
}

func TestFetcherPrefersSpy(t *testing.T) {
	v, raw := testVAA(t, 11)
	w, err := NewSpyWatcher(zap.NewNop(), "localhost:7073", 16)
	require.NoError(t, err)

	_, ok := w.observe(raw)
	require.True(t, ok)
	cached, ok := w.Lookup(v.ID())
	require.True(t, ok)
	require.Equal(t, raw, cached)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected API request %s", r.URL.Path)
	}))
	defer srv.Close()

	f := NewFetcher(zap.NewNop(), NewAPIClient(zap.NewNop(), srv.URL), nil, w)
	got, found, err := f.FetchVAA(context.Background(), v.ID(), time.Second)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, raw, got)
}

func TestSpyWatcherIgnoresMalformedVAA(t *testing.T) {
	w, err := NewSpyWatcher(zap.NewNop(), "localhost:7073", 16)
	require.NoError(t, err)
	_, ok := w.observe([]byte{1, 0, 0})
	require.False(t, ok)
}

func TestFetcherDeliveryStatusWaitsForTerminal(t *testing.T) {
	id := vaa.MessageID{Chain: vaaLib.ChainIDEthereum, Sequence: 1}
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "waiting"
		if hits.Add(1) > 1 {
			status = "failed"
		}
		fmt.Fprintf(w, `{"data":{"delivery":{"execution":{"status":%q}}}}`, status)
	}))
	defer srv.Close()

	f := NewFetcher(zap.NewNop(), NewAPIClient(zap.NewNop(), srv.URL), nil, nil).WithInterval(time.Millisecond)
	s, found, err := f.FetchDeliveryStatus(context.Background(), id, time.Second)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, s.Failed())
}
