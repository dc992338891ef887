// ws.go implements the per-symbol bookTicker WebSocket feed (C2).
//
// One MarketFeed runs per symbol. Its state machine is deliberately
// simple and has no backoff curve: Connecting -> Streaming on handshake;
// Streaming -> Reconnecting on any socket error, close frame, or a
// 30-second read-idle timeout; Reconnecting waits a fixed 5 seconds and
// re-enters Connecting. The loop runs until ctx is cancelled.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

const (
	readIdleTimeout = 30 * time.Second
	reconnectDelay  = 5 * time.Second
)

// TickHandler is invoked for every parsed bookTicker frame.
type TickHandler func(symbol types.Symbol, tick types.BookTick)

// MarketFeed streams best-bid/best-ask ticks for a single symbol.
type MarketFeed struct {
	url    string
	symbol types.Symbol
	onTick TickHandler
	logger *slog.Logger
}

// NewMarketFeed builds a feed for symbol against the venue's bookTicker
// stream, following the format `wss://{host}/ws/{symbol}@bookTicker`.
func NewMarketFeed(host string, symbol types.Symbol, onTick TickHandler, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		url:    formatStreamURL(host, symbol),
		symbol: symbol,
		onTick: onTick,
		logger: logger.With("component", "market_feed", "symbol", string(symbol)),
	}
}

func formatStreamURL(host string, symbol types.Symbol) string {
	return fmt.Sprintf("wss://%s/ws/%s@bookTicker", host, symbol)
}

// Run connects and maintains the feed with the fixed 5-second reconnect
// delay mandated by §4.2. It blocks until ctx is cancelled.
func (f *MarketFeed) Run(ctx context.Context) error {
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("market feed disconnected, reconnecting", "error", err, "delay", reconnectDelay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *MarketFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrTransport, err)
	}
	defer conn.Close()

	conn.SetPingHandler(func(data string) error {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return conn.WriteMessage(websocket.PongMessage, []byte(data))
	})

	f.logger.Info("market feed connected")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrTransport, err)
		}

		tick, ok := f.parseTick(msg)
		if !ok {
			continue
		}
		f.onTick(f.symbol, tick)
	}
}

// parseTick decodes a bookTicker frame into a BookTick with trailing zeros
// trimmed by decimal's canonical string form. Malformed frames are dropped,
// never surfaced as an error — the feed swallows all parse failures per §7.
func (f *MarketFeed) parseTick(data []byte) (types.BookTick, bool) {
	var raw types.BookTickerMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		f.logger.Debug("dropping malformed tick", "error", err)
		return types.BookTick{}, false
	}
	if strings.TrimSpace(raw.Ask) == "" || strings.TrimSpace(raw.Bid) == "" {
		return types.BookTick{}, false
	}

	ask, err := decimal.NewFromString(raw.Ask)
	if err != nil {
		f.logger.Debug("dropping tick: bad ask", "error", err)
		return types.BookTick{}, false
	}
	bid, err := decimal.NewFromString(raw.Bid)
	if err != nil {
		f.logger.Debug("dropping tick: bad bid", "error", err)
		return types.BookTick{}, false
	}

	return types.BookTick{Ask: ask, Bid: bid}, true
}
