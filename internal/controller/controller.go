// Package controller implements TradeController (C9): the command surface
// consumed by the external transport layer for opening/closing positions,
// listing open positions and trade history, and inspecting/editing
// adjustment tables.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"tradestop/internal/exchange"
	"tradestop/internal/journal"
	"tradestop/internal/market"
	"tradestop/internal/metrics"
	"tradestop/internal/position"
	"tradestop/pkg/types"
)

// Controller wires the shared components (ExchangeClient, PriceBook,
// PositionBook, AdjustmentTableRegistry, TradeJournal) into the command
// surface named by §4.9. It holds no mutable state of its own.
type Controller struct {
	client      *exchange.Client
	keys        *exchange.KeyManager
	priceBook   *market.Book
	posBook     *position.Book
	adjustments *position.AdjustmentTableRegistry
	journal     *journal.Journal
	precision   types.QuantityPrecision
	logger      *slog.Logger
}

// New builds a Controller over the Engine's shared components.
func New(
	client *exchange.Client,
	keys *exchange.KeyManager,
	priceBook *market.Book,
	posBook *position.Book,
	adjustments *position.AdjustmentTableRegistry,
	tradeJournal *journal.Journal,
	precision types.QuantityPrecision,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		client:      client,
		keys:        keys,
		priceBook:   priceBook,
		posBook:     posBook,
		adjustments: adjustments,
		journal:     tradeJournal,
		precision:   precision,
		logger:      logger.With("component", "controller"),
	}
}

// OpenRequest is the Open command's input.
type OpenRequest struct {
	UserID          string
	Symbol          types.Symbol
	Direction       types.Direction
	Leverage        float64
	Margin          float64
	StopLossPercent float64
	AdjustmentID    int
}

// OpenResponse reports the opened position.
type OpenResponse struct {
	ID         int64
	Symbol     types.Symbol
	Direction  types.Direction
	Leverage   float64
	Margin     float64
	Quantity   string
	EntryPrice string
	StopPrice  string
}

// Open resolves the user's credentials, reads the latest quote, places a
// MARKET order, and inserts the resulting Position into the PositionBook,
// following the seven steps of §4.9's Open command.
func (c *Controller) Open(ctx context.Context, req OpenRequest) (*OpenResponse, error) {
	if _, ok := c.keys.Get(req.UserID); !ok {
		return nil, fmt.Errorf("open: user %s: %w", req.UserID, ErrValidation)
	}

	tick, ok := c.priceBook.Get(req.Symbol)
	if !ok {
		return nil, fmt.Errorf("open: symbol %s: %w", req.Symbol, ErrNotFound)
	}

	precision, ok := c.precision[req.Symbol]
	if !ok {
		return nil, fmt.Errorf("open: symbol %s precision: %w", req.Symbol, ErrNotFound)
	}

	bands, err := c.adjustments.Snapshot(req.AdjustmentID)
	if err != nil {
		return nil, fmt.Errorf("open: adjustment %d: %w", req.AdjustmentID, ErrNotFound)
	}

	if err := c.client.ChangeLeverage(ctx, req.Symbol, int(req.Leverage)); err != nil {
		c.logger.Warn("change leverage failed, continuing with existing leverage", "symbol", req.Symbol, "error", err)
	}

	entryQuote := tick.Ask
	side := types.SideBuy
	positionSide := types.PositionSideLong
	if req.Direction == types.Short {
		entryQuote = tick.Bid
		side = types.SideSell
		positionSide = types.PositionSideShort
	}

	quantity := formatQuantity(req.Margin*req.Leverage/entryQuote.InexactFloat64(), precision)

	orderID, err := c.client.CreateOrder(ctx, req.Symbol, side, positionSide, quantity)
	if err != nil {
		return nil, fmt.Errorf("open: create order: %w", err)
	}

	status, err := c.client.GetOrder(ctx, req.Symbol, orderID)
	if err != nil {
		return nil, fmt.Errorf("open: get order: %w", err)
	}

	entryPrice, err := decimal.NewFromString(status.AvgPrice)
	if err != nil {
		return nil, fmt.Errorf("open: parse avg price: %w", exchange.ErrDecode)
	}
	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("open: parse quantity: %w", exchange.ErrDecode)
	}

	id := position.NextID()
	pos := position.New(id, strconv.FormatInt(orderID, 10), req.Symbol, req.Direction, entryPrice, qty, req.Leverage, req.StopLossPercent, bands)
	c.posBook.Insert(pos)

	snap := pos.Snapshot()
	metrics.PositionsOpened.WithLabelValues(string(req.Symbol), req.Direction.String()).Inc()

	return &OpenResponse{
		ID:         id,
		Symbol:     req.Symbol,
		Direction:  req.Direction,
		Leverage:   req.Leverage,
		Margin:     req.Margin,
		Quantity:   quantity,
		EntryPrice: snap.EntryPrice.String(),
		StopPrice:  snap.StopLoss.String(),
	}, nil
}

// CloseRequest is the Close command's input.
type CloseRequest struct {
	ID     int64
	Symbol types.Symbol
}

// CloseResponse reports the close fill.
type CloseResponse struct {
	ID         int64
	Symbol     types.Symbol
	Direction  types.Direction
	EntryPrice string
	ClosePrice string
	Quantity   string
}

// Close removes the Position from the PositionBook, places the opposite
// MARKET order, and appends a ClosedTradeRecord to the journal.
func (c *Controller) Close(ctx context.Context, req CloseRequest) (*CloseResponse, error) {
	pos, ok := c.posBook.RemoveByID(req.Symbol, req.ID)
	if !ok {
		return nil, fmt.Errorf("close: position %d: %w", req.ID, ErrNotFound)
	}

	snap := pos.Snapshot()

	orderID, err := c.client.CreateOrder(ctx, snap.Symbol, snap.Direction.CloseSide(), snap.Direction.PositionSide(), snap.Quantity.String())
	if err != nil {
		pos.MarkClosed()
		return nil, fmt.Errorf("close: create order: %w", err)
	}

	status, err := c.client.GetOrder(ctx, snap.Symbol, orderID)
	if err != nil {
		pos.MarkClosed()
		return nil, fmt.Errorf("close: get order: %w", err)
	}

	record := types.ClosedTradeRecord{
		Symbol:     string(snap.Symbol),
		EntryPrice: snap.EntryPrice.String(),
		ClosePrice: status.AvgPrice,
		Direction:  snap.Direction.String(),
		Quantity:   snap.Quantity.String(),
		Leverage:   strconv.FormatFloat(snap.Leverage, 'f', -1, 64),
	}
	if err := c.journal.Append(record); err != nil {
		c.logger.Error("journal append failed", "position_id", req.ID, "error", err)
	}
	pos.MarkClosed()
	metrics.PositionsClosed.WithLabelValues(string(snap.Symbol), "controller").Inc()

	return &CloseResponse{
		ID:         req.ID,
		Symbol:     snap.Symbol,
		Direction:  snap.Direction,
		EntryPrice: snap.EntryPrice.String(),
		ClosePrice: status.AvgPrice,
		Quantity:   snap.Quantity.String(),
	}, nil
}

// ListOpen returns a snapshot of every live Position across all symbols.
func (c *Controller) ListOpen() []types.Position {
	return c.posBook.Snapshot()
}

// ListHistory queries the TradeJournal with an optional filter.
func (c *Controller) ListHistory(filter journal.Filter) ([]types.ClosedTradeRecord, error) {
	records, err := c.journal.List(filter)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// GetAdjustment returns a named AdjustmentTable's current bands.
func (c *Controller) GetAdjustment(id int) ([]types.Adjustment, error) {
	bands, err := c.adjustments.Get(id)
	if err != nil {
		return nil, fmt.Errorf("get adjustment %d: %w", id, ErrNotFound)
	}
	return bands, nil
}

// PutAdjustment replaces a named AdjustmentTable's bands wholesale.
// In-flight Positions, which hold their own snapshot, are unaffected.
func (c *Controller) PutAdjustment(id int, bands []types.Adjustment) {
	c.adjustments.Put(id, bands)
}

// GetUserHold proxies to the venue's positions query.
func (c *Controller) GetUserHold(ctx context.Context) ([]types.PositionSnapshot, error) {
	snaps, err := c.client.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get user hold: %w", err)
	}
	return snaps, nil
}

// formatQuantity renders qty as a fixed-decimal string at the venue's
// required precision for the symbol.
func formatQuantity(qty float64, precision int32) string {
	if qty <= 0 {
		return "0"
	}
	return strconv.FormatFloat(qty, 'f', int(precision), 64)
}
