package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// drain keeps a server connection open until the client goes away.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// confirmSubscribe reads a logsSubscribe request and confirms it with subID.
func confirmSubscribe(t *testing.T, conn *websocket.Conn, subID int64) *wsRequest {
	t.Helper()
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	var req wsRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		t.Errorf("unmarshal request: %v", err)
		return nil
	}
	if req.Method != "logsSubscribe" {
		t.Errorf("expected logsSubscribe, got %s", req.Method)
	}

	if err := conn.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: subID}); err != nil {
		t.Errorf("write response: %v", err)
	}
	return &req
}

func sendLogs(conn *websocket.Conn, subID, slot int64, sig string, logs ...string) error {
	return conn.WriteJSON(wsNotification{
		JSONRPC: "2.0",
		Method:  "logsNotification",
		Params: &wsNotificationParams{
			Subscription: subID,
			Result: wsNotificationResult{
				Context: &wsContext{Slot: slot},
				Value:   wsLogsValue{Signature: sig, Logs: logs},
			},
		},
	})
}

func testConfig() *WSClientConfig {
	return &WSClientConfig{
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectDelay:    50 * time.Millisecond,
		MaxReconnectAttempts: 2,
		PingInterval:         time.Second,
		ReadTimeout:          5 * time.Second,
		WriteTimeout:         time.Second,
		SubscribeTimeout:     time.Second,
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		req := confirmSubscribe(t, c, 12345)
		if req == nil {
			return
		}

		opts, _ := req.Params[1].(map[string]interface{})
		if opts["commitment"] != "processed" {
			t.Errorf("expected processed commitment, got %v", opts["commitment"])
		}
		mentions, _ := req.Params[0].(map[string]interface{})
		if m, _ := mentions["mentions"].([]interface{}); len(m) != 1 || m[0] != "testprogram" {
			t.Errorf("unexpected mentions: %v", mentions)
		}

		time.Sleep(50 * time.Millisecond)
		if err := sendLogs(c, 12345, 100, "testsig", "Program log: Instruction: Create"); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}
		drain(c)
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), testConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{
		Mentions:   []string{"testprogram"},
		Commitment: "processed",
	})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		n := conns.Add(1)
		if confirmSubscribe(t, c, int64(n)) == nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after subscribing.
			return
		}

		time.Sleep(20 * time.Millisecond)
		sendLogs(c, int64(n), 200, "after-reconnect")
		drain(c)
	}))
	defer server.Close()

	var reconnects atomic.Int32
	cfg := testConfig()
	cfg.OnReconnect = func() { reconnects.Add(1) }

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"p"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "after-reconnect" {
			t.Errorf("expected after-reconnect, got %s", notif.Signature)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for notification after reconnect")
	}

	if reconnects.Load() != 1 {
		t.Errorf("expected 1 reconnect, got %d", reconnects.Load())
	}
}

func TestWSClient_ReconnectExhaustedClosesChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		confirmSubscribe(t, c, 1)
		c.Close()
	}))

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), testConfig())
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	// No more listener: every redial fails.
	server.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("channel was not closed after reconnect attempts were exhausted")
	}

	select {
	case <-client.Done():
	default:
		t.Error("client should report done")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drain(conn)
	}))
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_DefaultsAppliedToPartialConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		drain(conn)
	}))
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), &WSClientConfig{PingInterval: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
	if client.config.ReadTimeout != DefaultWSConfig().ReadTimeout {
		t.Errorf("expected default ReadTimeout, got %v", client.config.ReadTimeout)
	}
}

func TestLogsFilter_DefaultCommitment(t *testing.T) {
	if got := (LogsFilter{}).commitment(); got != "confirmed" {
		t.Errorf("expected confirmed, got %s", got)
	}
}
