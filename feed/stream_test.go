package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickerServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []string
	conns   chan *websocket.Conn
}

func newTickerServer(t *testing.T) *tickerServer {
	t.Helper()
	ts := &tickerServer{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.queries = append(ts.queries, r.URL.Query().Get("streams"))
		ts.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tickerServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func sendBook(t *testing.T, conn *websocket.Conn, symbol, bid, ask string) {
	t.Helper()
	msg := fmt.Sprintf(`{"stream":"%s@bookTicker","data":{"u":1,"s":"%s","b":"%s","B":"1","a":"%s","A":"1"}}`,
		strings.ToLower(symbol), symbol, bid, ask)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t,
		"wss://example.test/stream?streams=btcusdt@bookTicker/ethusdt@bookTicker",
		StreamURL("wss://example.test/", []string{"BTCUSDT", "ETHUSDT"}),
	)
}

func TestStreamCachesQuotes(t *testing.T) {
	ts := newTickerServer(t)
	ctx := context.Background()

	s := NewStream(StreamOptions{URL: ts.wsURL(), Reconnect: 10 * time.Millisecond}, nil, logger.NewNop())
	require.NoError(t, s.Start(ctx, []string{"BTCUSDT", "ETHUSDT"}))
	t.Cleanup(func() { _ = s.Close() })

	conn := <-ts.conns
	sendBook(t, conn, "BTCUSDT", "100.0", "100.2")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	sendBook(t, conn, "ETHUSDT", "10", "10.1")

	assert.Eventually(t, func() bool {
		opt, err := s.GetMarkPrice(ctx, "ETHUSDT")
		return err == nil && opt.IsSome()
	}, 2*time.Second, 5*time.Millisecond)

	opt, err := s.GetMarkPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	q, err := opt.Take()
	require.NoError(t, err)
	assert.InDelta(t, 100.1, q.Mark, 1e-9)

	opt, err = s.GetMarkPrice(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.True(t, opt.IsNone())

	ts.mu.Lock()
	assert.Equal(t, []string{"btcusdt@bookTicker/ethusdt@bookTicker"}, ts.queries)
	ts.mu.Unlock()
}

func TestStreamDropsStaleQuotes(t *testing.T) {
	ts := newTickerServer(t)
	ctx := context.Background()

	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	s := NewStream(StreamOptions{URL: ts.wsURL(), MaxAge: 5 * time.Second, Clock: clock}, nil, nil)
	require.NoError(t, s.Start(ctx, []string{"BTCUSDT"}))
	t.Cleanup(func() { _ = s.Close() })

	conn := <-ts.conns
	sendBook(t, conn, "BTCUSDT", "100", "101")
	assert.Eventually(t, func() bool {
		opt, _ := s.GetMarkPrice(ctx, "BTCUSDT")
		return opt.IsSome()
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	now = now.Add(6 * time.Second)
	mu.Unlock()

	opt, err := s.GetMarkPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, opt.IsNone())
}

func TestStreamReconnects(t *testing.T) {
	ts := newTickerServer(t)
	ctx := context.Background()

	s := NewStream(StreamOptions{URL: ts.wsURL(), Reconnect: 10 * time.Millisecond}, nil, nil)
	require.NoError(t, s.Start(ctx, []string{"BTCUSDT"}))
	t.Cleanup(func() { _ = s.Close() })

	first := <-ts.conns
	require.NoError(t, first.Close())

	var second *websocket.Conn
	select {
	case second = <-ts.conns:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not reconnect")
	}

	sendBook(t, second, "BTCUSDT", "50", "50")
	assert.Eventually(t, func() bool {
		opt, _ := s.GetMarkPrice(ctx, "BTCUSDT")
		return opt.IsSome()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStreamStartErrors(t *testing.T) {
	s := NewStream(StreamOptions{URL: "ws://127.0.0.1:1"}, nil, nil)
	assert.Error(t, s.Start(context.Background(), nil))
	assert.Error(t, s.Start(context.Background(), []string{"BTCUSDT"}))
	assert.NoError(t, s.Close())

	_, err := s.Instruments(context.Background())
	assert.Error(t, err)
}
