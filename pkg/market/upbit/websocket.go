package upbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const wsEndpoint = "wss://api.upbit.com/websocket/v1"

// Tick is one ticker frame from the Upbit websocket.
type Tick struct {
	Type             string  `json:"type"`
	Code             string  `json:"code"`
	TradePrice       float64 `json:"trade_price"`
	TradeVolume      float64 `json:"trade_volume"`
	AccTradeVolume   float64 `json:"acc_trade_volume_24h"`
	SignedChangeRate float64 `json:"signed_change_rate"`
	Timestamp        int64   `json:"timestamp"`
}

// StreamClient consumes the public Upbit ticker stream and reconnects
// with backoff when the connection drops.
type StreamClient struct {
	endpoint string
	symbols  []string
}

// NewStreamClient creates a stream for the given market codes.
func NewStreamClient(symbols []string) *StreamClient {
	return &StreamClient{endpoint: wsEndpoint, symbols: symbols}
}

// SetEndpoint overrides the websocket URL, used by tests.
func (s *StreamClient) SetEndpoint(u string) { s.endpoint = u }

// Run streams ticks into out until ctx is cancelled. The channel is
// closed on return.
func (s *StreamClient) Run(ctx context.Context, out chan<- Tick) {
	defer close(out)

	backoff := time.Second
	for {
		if err := s.stream(ctx, out); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("market[upbit]: stream error: %v, reconnecting in %v", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *StreamClient) stream(ctx context.Context, out chan<- Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	sub := []any{
		map[string]string{"ticket": uuid.NewString()},
		map[string]any{"type": "ticker", "codes": s.symbols},
		map[string]string{"format": "DEFAULT"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("market[upbit]: subscribed to %d symbols", len(s.symbols))

	// Upbit closes idle connections; respond to server pings and close
	// the socket from a watchdog when ctx ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		var tick Tick
		if err := json.Unmarshal(msg, &tick); err != nil {
			log.Printf("market[upbit]: drop malformed frame: %v", err)
			continue
		}
		if tick.Type != "ticker" || tick.Code == "" || tick.TradePrice <= 0 {
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}
