// Package engine is the central orchestrator of the trailing-stop bot.
//
// It wires together all subsystems:
//
//  1. ExchangeClient talks REST to the venue (orders, leverage, precision).
//  2. One MarketFeed per symbol streams best-bid/best-ask ticks.
//  3. Every tick updates the PriceBook and drives the PositionBook, which
//     ratchets every resident Position and, on a stop crossing, places the
//     closing order and appends a ClosedTradeRecord to the TradeJournal.
//  4. The TradeController's HTTP transport accepts Open/Close/list/history
//     commands from outside the process.
//
// Lifecycle: New() → Start() → [runs until shutdown] → Stop()
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"tradestop/internal/config"
	"tradestop/internal/controller"
	"tradestop/internal/exchange"
	"tradestop/internal/journal"
	"tradestop/internal/market"
	"tradestop/internal/metrics"
	"tradestop/internal/position"
	"tradestop/pkg/types"
)

// Engine orchestrates every component of the trailing-stop system. It owns
// the lifecycle of all goroutines and the shared, pre-allocated per-symbol
// state (PriceBook, PositionBook) for the process's lifetime.
type Engine struct {
	cfg    config.Config
	client *exchange.Client

	priceBook   *market.Book
	posBook     *position.Book
	adjustments *position.AdjustmentTableRegistry
	journal     *journal.Journal
	keys        *exchange.KeyManager
	precision   types.QuantityPrecision

	symbols []types.Symbol
	feeds   map[types.Symbol]*exchange.MarketFeed

	controller *controller.Transport
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New resolves the static symbol list and wires the ExchangeClient,
// TradeJournal, and AdjustmentTableRegistry. Network-dependent startup
// (precision fetch, PriceBook/PositionBook allocation, feed spawn) happens
// in Start, per §4.8's six-step sequence.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	auth := exchange.NewAuth(exchange.Credentials{APIKey: cfg.Exchange.APIKey, APISecret: cfg.Exchange.APISecret})
	client := exchange.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.Timeout, auth, logger)

	symbols := make([]types.Symbol, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols = append(symbols, types.Normalize(s))
	}

	tradeJournal, err := journal.Open(cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	adjustments := position.NewAdjustmentTableRegistry(cfg.AdjustmentTables)

	keys := exchange.NewKeyManager()
	if cfg.Exchange.APIKey != "" {
		keys.Insert(exchange.SecretKey{
			UserID:    cfg.Exchange.AccountID,
			APIKey:    cfg.Exchange.APIKey,
			APISecret: cfg.Exchange.APISecret,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:         cfg,
		client:      client,
		adjustments: adjustments,
		journal:     tradeJournal,
		keys:        keys,
		symbols:     symbols,
		feeds:       make(map[types.Symbol]*exchange.MarketFeed),
		logger:      logger.With("component", "engine"),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start runs the remaining bootstrap steps and launches all background
// goroutines: one MarketFeed per symbol and the TradeController transport.
func (e *Engine) Start() error {
	precision, err := e.client.GetQuantityPrecision(e.ctx, e.symbols)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	e.precision = precision

	e.priceBook = market.NewBook(e.symbols)
	e.posBook = position.NewBook(e.symbols)

	for _, sym := range e.symbols {
		feed := exchange.NewMarketFeed(e.cfg.Exchange.WSHost, sym, e.onTick, e.logger)
		e.feeds[sym] = feed

		e.wg.Add(1)
		go func(f *exchange.MarketFeed) {
			defer e.wg.Done()
			if err := f.Run(e.ctx); err != nil && e.ctx.Err() == nil {
				e.logger.Error("market feed error", "error", err)
			}
		}(feed)
	}

	ctrl := controller.New(e.client, e.keys, e.priceBook, e.posBook, e.adjustments, e.journal, e.precision, e.logger)
	e.controller = controller.NewTransport(ctrl, e.cfg.Controller.Addr, e.logger)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.controller.Start(); err != nil {
			e.logger.Error("controller transport error", "error", err)
		}
	}()

	e.logger.Info("engine started", "symbols", len(e.symbols))
	return nil
}

// Stop cancels all feed contexts, shuts down the controller transport,
// waits for every goroutine, and closes the journal connection pool.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()

	if e.controller != nil {
		if err := e.controller.Stop(); err != nil {
			e.logger.Error("controller transport shutdown error", "error", err)
		}
	}

	e.wg.Wait()

	if err := e.journal.Close(); err != nil {
		e.logger.Error("journal close error", "error", err)
	}

	e.logger.Info("shutdown complete")
}

// onTick is the MarketFeed callback named in §4.2: update the PriceBook
// slot, then drive every resident Position for that symbol.
func (e *Engine) onTick(symbol types.Symbol, tick types.BookTick) {
	metrics.TicksProcessed.WithLabelValues(string(symbol)).Inc()

	e.priceBook.Update(symbol, tick)
	e.posBook.Drive(symbol, tick, e.closePosition)

	metrics.LivePositions.WithLabelValues(string(symbol)).Set(float64(len(e.posBook.SnapshotSymbol(symbol))))
}

// closePosition is the PositionBook.Drive CloseFunc: it places the closing
// MARKET order, reads the fill, appends a ClosedTradeRecord, and marks the
// Position terminal — all while the caller still holds the symbol's
// PositionBook lock, per §5's deliberate contract.
func (e *Engine) closePosition(pos *position.Position, exitPrice decimal.Decimal) {
	snap := pos.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Exchange.Timeout)
	defer cancel()

	orderID, err := e.client.CreateOrder(ctx, snap.Symbol, snap.Direction.CloseSide(), snap.Direction.PositionSide(), snap.Quantity.String())
	if err != nil {
		e.logger.Error("stop-triggered close order failed", "symbol", snap.Symbol, "position_id", snap.ID, "error", err)
		pos.MarkClosed()
		metrics.StopTriggers.WithLabelValues(string(snap.Symbol)).Inc()
		return
	}

	closePrice := exitPrice.String()
	status, err := e.client.GetOrder(ctx, snap.Symbol, orderID)
	if err != nil {
		e.logger.Warn("close fill lookup failed, recording ratchet exit price instead", "symbol", snap.Symbol, "position_id", snap.ID, "error", err)
	} else if status.AvgPrice != "" {
		closePrice = status.AvgPrice
	}

	record := types.ClosedTradeRecord{
		Symbol:     string(snap.Symbol),
		EntryPrice: snap.EntryPrice.String(),
		ClosePrice: closePrice,
		Direction:  snap.Direction.String(),
		Quantity:   snap.Quantity.String(),
		Leverage:   strconv.FormatFloat(snap.Leverage, 'f', -1, 64),
	}
	if err := e.journal.Append(record); err != nil {
		e.logger.Error("journal append failed", "symbol", snap.Symbol, "position_id", snap.ID, "error", err)
	}

	pos.MarkClosed()
	metrics.StopTriggers.WithLabelValues(string(snap.Symbol)).Inc()
	metrics.PositionsClosed.WithLabelValues(string(snap.Symbol), "stop").Inc()
}
