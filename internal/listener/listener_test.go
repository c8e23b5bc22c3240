package listener

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launch-sniper/internal/domain"
	"launch-sniper/internal/solana"
	"launch-sniper/internal/solana/stub"
	"launch-sniper/internal/storage/memory"
)

const (
	mintA = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintB = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClient struct {
	ch chan solana.LogNotification

	mu     sync.Mutex
	filter solana.LogsFilter
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{ch: make(chan solana.LogNotification, 16)}
}

func (c *fakeClient) SubscribeLogs(_ context.Context, f solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
	return c.ch, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// queueDialer hands out the given clients in order, then blocks.
func queueDialer(clients ...*fakeClient) (Dialer, *atomic.Int32) {
	q := make(chan *fakeClient, len(clients))
	for _, c := range clients {
		q <- c
	}
	dials := new(atomic.Int32)
	return func(ctx context.Context, _ func()) (solana.WSClient, error) {
		dials.Add(1)
		select {
		case c := <-q:
			return c, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, dials
}

type fakeMints struct {
	mint string
	err  error
}

func (f fakeMints) LatestMint(context.Context) (string, error) {
	return f.mint, f.err
}

func pumpConfig() Config {
	venue, _ := domain.DefaultVenueConfig(domain.VenuePumpFun)
	return Config{Venue: venue, ReconnectMin: time.Millisecond, ReconnectMax: 5 * time.Millisecond}
}

func start(t *testing.T, l *Listener) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func receive(t *testing.T, out <-chan domain.Candidate) domain.Candidate {
	t.Helper()
	select {
	case c := <-out:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for candidate")
		return domain.Candidate{}
	}
}

func assertNoCandidate(t *testing.T, out <-chan domain.Candidate) {
	t.Helper()
	select {
	case c := <-out:
		t.Fatalf("unexpected candidate %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func creation(sig string, slot int64, logs ...string) solana.LogNotification {
	return solana.LogNotification{
		Signature: sig,
		Slot:      slot,
		Logs:      append([]string{"Program log: Instruction: Initialize"}, logs...),
	}
}

func TestListener_EmitsDecodedCandidate(t *testing.T) {
	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate, 4)
	l := New(pumpConfig(), dial, NewSeen(nil, nil), out, WithClock(func() time.Time { return fixedNow }))
	start(t, l)

	client.ch <- creation("sig-1", 42, "Program log: mint: "+mintA)

	got := receive(t, out)
	assert.Equal(t, domain.Candidate{
		Mint:         mintA,
		Venue:        domain.VenuePumpFun,
		Signature:    "sig-1",
		Slot:         42,
		DiscoveredAt: fixedNow,
	}, got)

	client.mu.Lock()
	defer client.mu.Unlock()
	assert.Equal(t, []string{domain.PumpFunProgramID}, client.filter.Mentions)
	assert.Equal(t, "confirmed", client.filter.Commitment)
}

func TestListener_IgnoresNonCreationAndFailedTransactions(t *testing.T) {
	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate, 4)
	l := New(pumpConfig(), dial, NewSeen(nil, nil), out)
	start(t, l)

	client.ch <- solana.LogNotification{Signature: "buy", Logs: []string{"Program log: Instruction: Buy", "mint: " + mintB}}
	failed := creation("failed", 1, "mint: "+mintB)
	failed.Err = map[string]any{"InstructionError": []any{0, "Custom"}}
	client.ch <- failed
	client.ch <- creation("ok", 2, "PROGRAM LOG: MINT: "+mintA)

	got := receive(t, out)
	assert.Equal(t, mintA, got.Mint)
	assertNoCandidate(t, out)
}

func TestListener_DuplicateMintEmittedOnceAcrossVenues(t *testing.T) {
	seen := NewSeen(nil, nil)
	out := make(chan domain.Candidate, 4)

	pump := newFakeClient()
	pumpDial, _ := queueDialer(pump)
	start(t, New(pumpConfig(), pumpDial, seen, out))

	raydiumVenue, _ := domain.DefaultVenueConfig(domain.VenueRaydium)
	ray := newFakeClient()
	rayDial, _ := queueDialer(ray)
	start(t, New(Config{Venue: raydiumVenue}, rayDial, seen, out))

	pump.ch <- creation("sig-1", 1, "mint: "+mintA)
	got := receive(t, out)
	assert.Equal(t, domain.VenuePumpFun, got.Venue)

	ray.ch <- solana.LogNotification{Signature: "sig-2", Logs: []string{"Program log: initialize2: InitializeInstruction2", "mint: " + mintA}}
	pump.ch <- creation("sig-3", 3, "mint: "+mintA)
	assertNoCandidate(t, out)
	assert.Equal(t, 1, seen.Len())
}

func TestListener_FallsBackToTransactionBalances(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.AddTransaction(&solana.Transaction{
		Signature: "sig-1",
		Meta: &solana.TransactionMeta{PostTokenBalances: []solana.TokenBalance{
			{Mint: domain.WSOLMint},
			{Mint: mintB},
		}},
	})

	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate, 4)
	l := New(pumpConfig(), dial, NewSeen(nil, nil), out, WithTransactions(rpc))
	start(t, l)

	client.ch <- creation("sig-1", 1)
	assert.Equal(t, mintB, receive(t, out).Mint)
}

func TestListener_FallsBackToVenueAPI(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Err = errors.New("rpc down")

	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate, 4)
	l := New(pumpConfig(), dial, NewSeen(nil, nil), out,
		WithTransactions(rpc), WithVenueAPI(fakeMints{mint: mintA}))
	start(t, l)

	client.ch <- creation("sig-1", 1)
	assert.Equal(t, mintA, receive(t, out).Mint)
}

func TestListener_UndecodableEventDropped(t *testing.T) {
	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate, 4)
	seen := NewSeen(nil, nil)
	l := New(pumpConfig(), dial, seen, out,
		WithTransactions(stub.NewRPCClient()), WithVenueAPI(fakeMints{err: errors.New("api down")}))
	start(t, l)

	client.ch <- creation("sig-1", 1, "Program log: mint: not-a-key")
	assertNoCandidate(t, out)
	assert.Equal(t, 0, seen.Len())
}

func TestListener_RedialsAfterStreamCloses(t *testing.T) {
	first := newFakeClient()
	second := newFakeClient()
	dial, dials := queueDialer(first, second)
	out := make(chan domain.Candidate, 4)
	l := New(pumpConfig(), dial, NewSeen(nil, nil), out)
	start(t, l)

	first.ch <- creation("sig-1", 1, "mint: "+mintA)
	assert.Equal(t, mintA, receive(t, out).Mint)
	close(first.ch)

	second.ch <- creation("sig-2", 2, "mint: "+mintB)
	assert.Equal(t, mintB, receive(t, out).Mint)

	first.mu.Lock()
	assert.True(t, first.closed)
	first.mu.Unlock()
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestListener_CancelReleasesUndeliveredMint(t *testing.T) {
	client := newFakeClient()
	dial, _ := queueDialer(client)
	out := make(chan domain.Candidate) // nobody reads
	seen := NewSeen(nil, nil)
	l := New(pumpConfig(), dial, seen, out)
	cancel := start(t, l)

	client.ch <- creation("sig-1", 1, "mint: "+mintA)
	require.Eventually(t, func() bool { return seen.Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return seen.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSupervise_NoVenues(t *testing.T) {
	assert.ErrorIs(t, Supervise(context.Background(), nil), ErrNoVenues)
}

func TestSupervise_ReturnsAfterCancel(t *testing.T) {
	dialA, _ := queueDialer()
	dialB, _ := queueDialer()
	listeners := []*Listener{
		New(pumpConfig(), dialA, NewSeen(nil, nil), make(chan domain.Candidate)),
		New(pumpConfig(), dialB, NewSeen(nil, nil), make(chan domain.Candidate)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Supervise(ctx, listeners) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not return after cancel")
	}
}

func TestMatchesMarker(t *testing.T) {
	logs := []string{"Program 6EF8 invoke [1]", "Program log: Instruction: InitializeMint2"}
	assert.True(t, matchesMarker(logs, "initialize"))
	assert.True(t, matchesMarker(logs, "INITIALIZEMINT2"))
	assert.False(t, matchesMarker(logs, "initialize2"))
	assert.False(t, matchesMarker(nil, "initialize"))
}

func TestMintFromLogs(t *testing.T) {
	tests := []struct {
		name string
		logs []string
		want string
	}{
		{"colon", []string{"Program log: mint: " + mintA}, mintA},
		{"equals", []string{"Program data: name=X mint=" + mintB}, mintB},
		{"skips wsol", []string{"mint: " + domain.WSOLMint, "mint: " + mintA}, mintA},
		{"invalid key", []string{"mint: 1111"}, ""},
		{"no field", []string{"Program log: Instruction: Create " + mintA}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mintFromLogs(tt.logs))
		})
	}
}

func TestSeen_PersistsAndWarms(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSeenMintStore()

	seen := NewSeen(store, nil)
	assert.True(t, seen.Add(ctx, mintA, domain.VenuePumpFun))
	assert.False(t, seen.Add(ctx, mintA, domain.VenueRaydium))
	assert.True(t, seen.Add(ctx, mintB, domain.VenueRaydium))
	seen.Release(ctx, mintB)

	restarted := NewSeen(store, nil)
	require.NoError(t, restarted.Warm(ctx))
	assert.Equal(t, 1, restarted.Len())
	assert.False(t, restarted.Add(ctx, mintA, domain.VenuePumpFun))
	assert.True(t, restarted.Add(ctx, mintB, domain.VenuePumpFun))
}

func TestListener_OverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req struct {
			ID     uint64        `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !assert.NoError(t, json.Unmarshal(msg, &req)) {
			return
		}
		assert.Equal(t, "logsSubscribe", req.Method)
		_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": 7})
		_ = conn.WriteJSON(map[string]any{
			"jsonrpc": "2.0",
			"method":  "logsNotification",
			"params": map[string]any{
				"subscription": 7,
				"result": map[string]any{
					"context": map[string]any{"slot": 99},
					"value": map[string]any{
						"signature": "ws-sig",
						"err":       nil,
						"logs":      []string{"Program log: Instruction: Initialize", "Program log: mint: " + mintA},
					},
				},
			},
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	dial := WSDialer(endpoint, solana.WSClientConfig{
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		PingInterval:      time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      time.Second,
		SubscribeTimeout:  time.Second,
	})

	out := make(chan domain.Candidate, 1)
	start(t, New(pumpConfig(), dial, NewSeen(nil, nil), out))

	got := receive(t, out)
	assert.Equal(t, mintA, got.Mint)
	assert.Equal(t, "ws-sig", got.Signature)
	assert.Equal(t, int64(99), got.Slot)
}
