// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — symbols, directions,
// book ticks, adjustment bands, and the wire/record shapes exchanged with the
// venue and the journal. It has no dependencies on internal packages, so it
// can be imported by any layer.
package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Symbol is a case-normalized venue identifier, e.g. "adausdt".
// It is treated opaquely; the venue defines validity.
type Symbol string

// Normalize lowercases a raw symbol string as read from configuration.
func Normalize(raw string) Symbol {
	return Symbol(strings.ToLower(strings.TrimSpace(raw)))
}

// Side is the REST order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PositionSide is the venue's hedge-mode position side.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Direction is a Position's trade direction.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "SHORT"
	}
	return "LONG"
}

// Side returns the order side used to open a position in this direction.
func (d Direction) Side() Side {
	if d == Short {
		return SideSell
	}
	return SideBuy
}

// CloseSide returns the order side used to close a position in this direction.
func (d Direction) CloseSide() Side {
	if d == Short {
		return SideBuy
	}
	return SideSell
}

// PositionSide maps a Direction to the venue's hedge-mode position side.
func (d Direction) PositionSide() PositionSide {
	if d == Short {
		return PositionSideShort
	}
	return PositionSideLong
}

// BookTick is the latest best-ask/best-bid observed for a symbol.
// Neither field is monotonic; either may change independently.
type BookTick struct {
	Ask decimal.Decimal
	Bid decimal.Decimal
}

// Adjustment is an inclusive-lower, exclusive-upper band over leveraged-profit
// percentage, yielding a tightening factor used by the Position ratchet.
// Max is open-ended (unbounded) when nil.
type Adjustment struct {
	Min        float64  `json:"min" mapstructure:"min"`
	Max        *float64 `json:"max,omitempty" mapstructure:"max"`
	Adjustment float64  `json:"adjustment" mapstructure:"adjustment"`
}

// SentinelAdjustment is appended to every position's adjustment table at
// creation time and governs behavior once leveraged profit exceeds 110%.
func SentinelAdjustment() Adjustment {
	return Adjustment{Min: 1.1, Max: nil, Adjustment: 0.1}
}

// CloneAdjustments returns an independent copy of a band list, suitable for
// snapshotting a named AdjustmentTable into a new Position.
func CloneAdjustments(bands []Adjustment) []Adjustment {
	out := make([]Adjustment, len(bands))
	copy(out, bands)
	return out
}

// QuantityPrecision is the number of decimal places a venue accepts for a
// symbol's order quantity, fetched once at startup.
type QuantityPrecision map[Symbol]int32

// Position is the data snapshot of a single open leveraged trade: direction,
// entry, quantity, leverage, running extremes, current stop, and closed flag.
// It is plain data — the mutex-protected live object that owns the ratchet
// algorithm lives in package position; this type is what gets returned to
// callers. It is not persisted: the journal stores ClosedTradeRecord rows.
type Position struct {
	ID              int64           `json:"id"`
	ExchangeOrderID string          `json:"exchange_order_id"`
	Symbol          Symbol          `json:"symbol"`
	Direction       Direction       `json:"direction"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	Quantity        decimal.Decimal `json:"quantity"`
	Leverage        float64         `json:"leverage"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	HighestPrice    decimal.Decimal `json:"highest_price"`
	LowestPrice     decimal.Decimal `json:"lowest_price"`
	AdjustmentTable []Adjustment    `json:"adjustment_table"`
	IsClosed        bool            `json:"is_closed"`
}

// ClosedTradeRecord is an append-only journal row written when a Position
// closes, either via stop-trigger or an explicit TradeController close.
type ClosedTradeRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Symbol     string    `json:"symbol" gorm:"index"`
	EntryPrice string    `json:"entry_price"`
	ClosePrice string    `json:"close_price"`
	Direction  string    `json:"direction"`
	Quantity   string    `json:"quantity"`
	Leverage   string    `json:"leverage"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}

// TableName pins the gorm table name regardless of struct renames.
func (ClosedTradeRecord) TableName() string {
	return "closed_trades"
}

// OrderResponse is the parsed response of create_order.
type OrderResponse struct {
	OrderID int64 `json:"orderId"`
}

// OrderStatus is the parsed response of get_order.
type OrderStatus struct {
	OrderID     int64  `json:"orderId"`
	AvgPrice    string `json:"avgPrice"`
	ExecutedQty string `json:"executedQty"`
	Status      string `json:"status"`
}

// PositionSnapshot is one row of the venue's get_positions response, used
// only for the user-hold query — it never drives the ratchet.
type PositionSnapshot struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnrealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
}

// Fill is one row of the venue's get_fills response.
type Fill struct {
	ID         int64  `json:"id"`
	OrderID    int64  `json:"orderId"`
	Price      string `json:"price"`
	Qty        string `json:"qty"`
	Commission string `json:"commission"`
	Side       string `json:"side"`
}

// SymbolFilter is one filter entry of a symbol in the venue's exchangeInfo
// response. QuantityPrecision is read from ExchangeInfoSymbol.QuantityPrecision,
// not derived from these filters.
type SymbolFilter struct {
	FilterType string `json:"filterType"`
	StepSize   string `json:"stepSize"`
	TickSize   string `json:"tickSize"`
}

// ExchangeInfoSymbol is one symbol entry of the venue's exchangeInfo response.
type ExchangeInfoSymbol struct {
	Symbol            string         `json:"symbol"`
	QuantityPrecision int32          `json:"quantityPrecision"`
	Filters           []SymbolFilter `json:"filters"`
}

// ExchangeInfoResponse is the venue's GET /fapi/v1/exchangeInfo response.
type ExchangeInfoResponse struct {
	Symbols []ExchangeInfoSymbol `json:"symbols"`
}

// BookTickerMessage is the venue's raw bookTicker websocket frame: at least
// best ask (a) and best bid (b) as decimal strings.
type BookTickerMessage struct {
	Symbol string `json:"s"`
	Ask    string `json:"a"`
	Bid    string `json:"b"`
}
