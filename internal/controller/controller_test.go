package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradestop/internal/exchange"
	"tradestop/internal/journal"
	"tradestop/internal/market"
	"tradestop/internal/position"
	"tradestop/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeVenue answers create_order/get_order/leverage/positions with canned
// responses keyed on the avgPrice the test wants to see echoed back.
func fakeVenue(t *testing.T, avgPrice string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/fapi/v1/order":
			if r.Method == http.MethodPost {
				json.NewEncoder(w).Encode(types.OrderResponse{OrderID: 99})
				return
			}
			json.NewEncoder(w).Encode(types.OrderStatus{OrderID: 99, AvgPrice: avgPrice, ExecutedQty: "10"})
		case "/fapi/v1/leverage":
			json.NewEncoder(w).Encode(map[string]string{})
		case "/fapi/v3/positionRisk":
			json.NewEncoder(w).Encode([]types.PositionSnapshot{})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestController(t *testing.T, avgPrice string) *Controller {
	t.Helper()

	server := fakeVenue(t, avgPrice)
	t.Cleanup(server.Close)

	auth := exchange.NewAuth(exchange.Credentials{APIKey: "test-key", APISecret: "test-secret"})
	client := exchange.NewClient(server.URL, 2*time.Second, auth, testLogger())

	keys := exchange.NewKeyManager()
	keys.Insert(exchange.SecretKey{UserID: "alice", APIKey: "test-key", APISecret: "test-secret"})

	priceBook := market.NewBook([]types.Symbol{"adausdt"})
	priceBook.Update("adausdt", types.BookTick{Ask: decimal.RequireFromString("4.50"), Bid: decimal.RequireFromString("4.49")})

	posBook := position.NewBook([]types.Symbol{"adausdt"})
	adjustments := position.NewAdjustmentTableRegistry(map[int][]types.Adjustment{
		1: {{Min: 0, Max: floatPtr(0.1), Adjustment: 0.02}},
	})
	precision := types.QuantityPrecision{"adausdt": 2}

	j := &journal.Journal{}

	return New(client, keys, priceBook, posBook, adjustments, j, precision, testLogger())
}

func TestOpenUnknownUserIsValidationError(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	_, err := c.Open(context.Background(), OpenRequest{
		UserID: "eve", Symbol: "adausdt", Direction: types.Long,
		Leverage: 10, Margin: 100, StopLossPercent: 0.5, AdjustmentID: 1,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Open with unknown user: err = %v, want ErrValidation", err)
	}
}

func TestOpenUnknownSymbolIsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	_, err := c.Open(context.Background(), OpenRequest{
		UserID: "alice", Symbol: "xrpusdt", Direction: types.Long,
		Leverage: 10, Margin: 100, StopLossPercent: 0.5, AdjustmentID: 1,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open with unconfigured symbol: err = %v, want ErrNotFound", err)
	}
}

func TestOpenUnknownAdjustmentIsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	_, err := c.Open(context.Background(), OpenRequest{
		UserID: "alice", Symbol: "adausdt", Direction: types.Long,
		Leverage: 10, Margin: 100, StopLossPercent: 0.5, AdjustmentID: 99,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open with unknown adjustment id: err = %v, want ErrNotFound", err)
	}
}

func TestOpenInsertsPositionWithFillPrice(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	resp, err := c.Open(context.Background(), OpenRequest{
		UserID: "alice", Symbol: "adausdt", Direction: types.Long,
		Leverage: 10, Margin: 100, StopLossPercent: 0.5, AdjustmentID: 1,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if resp.EntryPrice != "4.51" {
		t.Errorf("EntryPrice = %q, want 4.51 (the fill price, not the pre-trade quote 4.50)", resp.EntryPrice)
	}

	open := c.ListOpen()
	if len(open) != 1 {
		t.Fatalf("len(ListOpen()) = %d, want 1", len(open))
	}
}

func TestCloseUnknownPositionIsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	_, err := c.Close(context.Background(), CloseRequest{ID: 12345, Symbol: "adausdt"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Close of unknown position: err = %v, want ErrNotFound", err)
	}
}

func TestGetPutAdjustmentRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestController(t, "4.51")
	newBands := []types.Adjustment{{Min: 0, Max: floatPtr(0.2), Adjustment: 0.05}}
	c.PutAdjustment(1, newBands)

	got, err := c.GetAdjustment(1)
	if err != nil {
		t.Fatalf("GetAdjustment: %v", err)
	}
	if len(got) != 1 || got[0].Adjustment != 0.05 {
		t.Errorf("GetAdjustment() = %+v, want the bands just written", got)
	}
}

func floatPtr(f float64) *float64 { return &f }
