package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/moznion/go-optional"
	"github.com/rustyeddy/papertrader/logger"
	"github.com/rustyeddy/papertrader/market"
	"go.uber.org/zap"
)

const DefaultStreamURL = "wss://stream.binance.com:9443"

// StreamOptions configures the websocket feed.
type StreamOptions struct {
	URL       string
	MaxAge    time.Duration // quotes older than this are treated as missing
	Reconnect time.Duration
	Clock     func() time.Time
}

// Stream caches Binance bookTicker updates from a combined websocket stream
// and serves the latest quote per handle. The reader goroutine reconnects
// until the stream is closed.
type Stream struct {
	opts   StreamOptions
	quotes *market.QuoteStore
	lister Lister
	log    *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStream(opts StreamOptions, lister Lister, log *logger.Logger) *Stream {
	if opts.URL == "" {
		opts.URL = DefaultStreamURL
	}
	if opts.Reconnect <= 0 {
		opts.Reconnect = 2 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Stream{
		opts:   opts,
		quotes: market.NewQuoteStore(),
		lister: lister,
		log:    log.Named("stream"),
	}
}

// StreamURL is the combined bookTicker stream for handles.
func StreamURL(base string, handles []string) string {
	streams := make([]string, len(handles))
	for i, h := range handles {
		streams[i] = strings.ToLower(h) + "@bookTicker"
	}
	return strings.TrimRight(base, "/") + "/stream?streams=" + strings.Join(streams, "/")
}

// Start dials the stream and begins caching quotes. The first dial is
// synchronous so a bad URL fails at startup.
func (s *Stream) Start(ctx context.Context, handles []string) error {
	if len(handles) == 0 {
		return errors.New("stream: no instruments")
	}
	url := StreamURL(s.opts.URL, handles)

	conn, err := s.dial(ctx, url)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(runCtx, url, conn)
	return nil
}

func (s *Stream) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	s.log.Info("stream connected", zap.String("url", url))
	return conn, nil
}

func (s *Stream) run(ctx context.Context, url string, conn *websocket.Conn) {
	defer close(s.done)

	for {
		err := s.read(conn)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("stream disconnected", zap.Error(err))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.Reconnect):
			}
			conn, err = s.dial(ctx, url)
			if err == nil {
				break
			}
			s.log.Warn("stream reconnect failed", zap.Error(err))
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		if ctx.Err() != nil {
			conn.Close()
			return
		}
	}
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   bookTickerEvent `json:"data"`
}

type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

func (s *Stream) read(conn *websocket.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env streamEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			s.log.Debug("skip undecodable message", zap.Error(err))
			continue
		}
		ev := env.Data
		if ev.Symbol == "" {
			continue
		}
		q, err := parseBook(ev.Symbol, ev.BidPrice, ev.AskPrice, s.opts.Clock())
		if err != nil {
			s.log.Debug("skip bad book", zap.String("symbol", ev.Symbol), zap.Error(err))
			continue
		}
		if quote, err := q.Take(); err == nil {
			s.quotes.Set(quote)
		}
	}
}

// GetMarkPrice serves the cached quote. Missing or stale quotes are None.
func (s *Stream) GetMarkPrice(ctx context.Context, handle string) (optional.Option[market.Quote], error) {
	q, err := s.quotes.Get(handle)
	if err != nil {
		return none(), nil
	}
	if s.opts.MaxAge > 0 && s.opts.Clock().Sub(q.Time) > s.opts.MaxAge {
		return none(), nil
	}
	return some(q), nil
}

func (s *Stream) Instruments(ctx context.Context) ([]market.Instrument, error) {
	if s.lister == nil {
		return nil, errors.New("stream: no instrument lister")
	}
	return s.lister.Instruments(ctx)
}

// Close stops the reader and waits for it to exit.
func (s *Stream) Close() error {
	s.mu.Lock()
	cancel, conn, done := s.cancel, s.conn, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
	return nil
}
