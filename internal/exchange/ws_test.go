package exchange

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"tradestop/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFormatStreamURL(t *testing.T) {
	t.Parallel()

	got := formatStreamURL("stream.example.com:443", "adausdt")
	want := "wss://stream.example.com:443/ws/adausdt@bookTicker"
	if got != want {
		t.Errorf("formatStreamURL() = %q, want %q", got, want)
	}
}

func TestParseTickDropsMalformedFrames(t *testing.T) {
	t.Parallel()

	f := &MarketFeed{symbol: "adausdt", logger: testLogger()}

	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json at all"},
		{"missing ask", `{"s":"ADAUSDT","b":"4.50"}`},
		{"missing bid", `{"s":"ADAUSDT","a":"4.51"}`},
		{"non-numeric ask", `{"s":"ADAUSDT","a":"abc","b":"4.50"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := f.parseTick([]byte(tt.data)); ok {
				t.Errorf("parseTick(%q) = ok, want dropped", tt.data)
			}
		})
	}
}

func TestParseTickParsesValidFrame(t *testing.T) {
	t.Parallel()

	f := &MarketFeed{symbol: "adausdt", logger: testLogger()}
	tick, ok := f.parseTick([]byte(`{"s":"ADAUSDT","a":"4.5100","b":"4.5000"}`))
	if !ok {
		t.Fatal("parseTick() = dropped, want ok")
	}
	if !tick.Ask.Equal(decimal.RequireFromString("4.51")) {
		t.Errorf("Ask = %v, want 4.51", tick.Ask)
	}
	if !tick.Bid.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("Bid = %v, want 4.5", tick.Bid)
	}
}

func TestMarketFeedRunDeliversTicksAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	var upgrader websocket.Upgrader
	var connCount int
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		mu.Lock()
		connCount++
		first := connCount == 1
		mu.Unlock()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"s":"ADAUSDT","a":"4.51","b":"4.50"}`))
		if first {
			// first connection closes right after one frame; Run then sits in
			// its 5s reconnect delay until the 200ms context is cancelled
			return
		}
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "http://")

	received := make(chan types.BookTick, 4)
	f := NewMarketFeed(host, "adausdt", func(symbol types.Symbol, tick types.BookTick) {
		received <- tick
	}, testLogger())
	f.url = "ws://" + host + "/ws/adausdt@bookTicker"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	select {
	case <-received:
	case <-time.After(150 * time.Millisecond):
		t.Fatal("did not receive a tick before timeout")
	}

	<-done
}
