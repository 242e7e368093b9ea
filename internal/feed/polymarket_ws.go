// Package feed streams live trade activity over the Polymarket websocket.
// It is an alternative front door to the same ingestion path the REST poller
// uses: decoded trades are handed to a callback, and the collector persists
// them with the same keys and watermark rules.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smartflow/engine/internal/domain"
	"github.com/smartflow/engine/internal/platform/polymarket"
)

const (
	dialTimeout  = 15 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	reconnectGap = 2 * time.Second
)

// TradeHandler receives each decoded live trade.
type TradeHandler func(ctx context.Context, trade domain.Trade)

// envelope is the wire frame the activity socket emits.
type envelope struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TradeFeed maintains a websocket subscription to the trade activity topic
// and invokes the handler for every trade in one of the tracked markets.
// It reconnects with a fixed backoff until the context is cancelled or
// Close is called.
type TradeFeed struct {
	wsURL     string
	markets   map[string]bool
	onTrade   TradeHandler
	logger    *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

// NewTradeFeed creates a feed filtered to the given condition ids. An empty
// market list means every trade passes.
func NewTradeFeed(wsURL string, conditionIDs []string, onTrade TradeHandler, logger *slog.Logger) *TradeFeed {
	markets := make(map[string]bool, len(conditionIDs))
	for _, cid := range conditionIDs {
		markets[cid] = true
	}
	return &TradeFeed{
		wsURL:   wsURL,
		markets: markets,
		onTrade: onTrade,
		logger:  logger.With(slog.String("component", "trade_feed")),
		done:    make(chan struct{}),
	}
}

// Run connects and consumes until ctx is cancelled or Close is called,
// reconnecting on disconnect.
func (f *TradeFeed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-f.done:
			return nil
		default:
		}
		f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(reconnectGap):
		}
	}
}

func (f *TradeFeed) runConnection(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: dial %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	sub := map[string]any{
		"action": "subscribe",
		"subscriptions": []map[string]string{
			{"topic": "activity", "type": "trades"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("feed subscribed", slog.Int("markets", len(f.markets)))

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	// Unblock ReadMessage when the context ends and keep the connection
	// alive with periodic pings.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-f.done:
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w (%w)", err, domain.ErrWSDisconnect)
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		f.handleMessage(ctx, msg)
	}
}

// handleMessage decodes one frame. Frames that are not trade activity, or
// that fail to decode, are dropped; a noisy upstream must not kill the feed.
func (f *TradeFeed) handleMessage(ctx context.Context, msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		f.logger.Debug("undecodable frame dropped", slog.String("error", err.Error()))
		return
	}
	if env.Type != "trades" || len(env.Payload) == 0 {
		return
	}

	var raw polymarket.APITrade
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		f.logger.Debug("undecodable trade payload dropped", slog.String("error", err.Error()))
		return
	}
	trade := raw.ToDomain()
	if len(f.markets) > 0 && !f.markets[trade.ConditionID] {
		return
	}
	if f.onTrade != nil {
		f.onTrade(ctx, trade)
	}
}

// Close stops the feed permanently.
func (f *TradeFeed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}
