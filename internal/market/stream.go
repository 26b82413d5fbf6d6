package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultStreamURL = "wss://stream.binance.com:9443/stream"

// BarUpdateHandler receives closed bars from a live kline stream.
type BarUpdateHandler func(symbol string, timeframe Timeframe, bar Bar)

// KlineStream maintains a websocket subscription to kline updates for a set
// of symbol/timeframe pairs and invokes the registered handler whenever a bar
// closes. It reconnects with backoff when the connection drops.
type KlineStream struct {
	mu sync.RWMutex

	url           string
	subscriptions map[string]bool // "btcusdt@kline_15m"
	handler       BarUpdateHandler

	conn      *websocket.Conn
	cancel    context.CancelFunc
	running   bool
	updates   int64
	lastEvent time.Time
}

// NewKlineStream creates a stream client. An empty url selects the public
// Binance combined stream endpoint.
func NewKlineStream(url string, handler BarUpdateHandler) *KlineStream {
	if url == "" {
		url = defaultStreamURL
	}
	return &KlineStream{
		url:           url,
		subscriptions: make(map[string]bool),
		handler:       handler,
	}
}

// Subscribe adds a symbol/timeframe pair to the stream. Takes effect on the
// next (re)connect.
func (s *KlineStream) Subscribe(symbol string, timeframe Timeframe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[streamName(symbol, timeframe)] = true
}

// Unsubscribe removes a symbol/timeframe pair.
func (s *KlineStream) Unsubscribe(symbol string, timeframe Timeframe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, streamName(symbol, timeframe))
}

func streamName(symbol string, timeframe Timeframe) string {
	return fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), timeframe)
}

// Start opens the websocket connection and begins dispatching bar closes.
func (s *KlineStream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("kline stream already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop closes the stream.
func (s *KlineStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.running = false
}

func (s *KlineStream) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.connectAndRead(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (s *KlineStream) connectAndRead(ctx context.Context) error {
	s.mu.RLock()
	streams := make([]string, 0, len(s.subscriptions))
	for name := range s.subscriptions {
		streams = append(streams, name)
	}
	s.mu.RUnlock()

	if len(streams) == 0 {
		// Nothing to subscribe to yet; poll for subscriptions.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}

	endpoint := fmt.Sprintf("%s?streams=%s", s.url, strings.Join(streams, "/"))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dialing kline stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading kline stream: %w", err)
		}
		s.dispatch(payload)
	}
}

// klineEvent mirrors the combined-stream kline payload.
type klineEvent struct {
	Data struct {
		Symbol string `json:"s"`
		Kline  struct {
			StartTime int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			Closed    bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

func (s *KlineStream) dispatch(payload []byte) {
	var event klineEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return
	}

	k := event.Data.Kline
	if !k.Closed {
		return
	}

	bar := Bar{
		OpenTime:  k.StartTime,
		Open:      parseFloat(k.Open),
		High:      parseFloat(k.High),
		Low:       parseFloat(k.Low),
		Close:     parseFloat(k.Close),
		Volume:    parseFloat(k.Volume),
		CloseTime: k.CloseTime,
	}

	s.mu.Lock()
	s.updates++
	s.lastEvent = time.Now()
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(event.Data.Symbol, Timeframe(k.Interval), bar)
	}
}

// Updates returns how many closed bars have been dispatched.
func (s *KlineStream) Updates() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}
