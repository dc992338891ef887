// Trailing-Stop Engine — an automated perpetual-futures position manager
// that opens MARKET positions on command and rides them with a ratcheting
// trailing stop until either the stop crosses or the position is closed
// explicitly.
//
// Architecture:
//
//	main.go                   — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	internal/engine/engine.go — orchestrator: wires feeds → PriceBook/PositionBook → controller
//	internal/position/        — Position ratchet (C5), AdjustmentTable (C4), PositionBook (C6)
//	internal/market/book.go   — local best-bid/best-ask mirror fed by WebSocket ticks (C3)
//	internal/exchange/        — signed REST client, WebSocket feed, KeyManager (C1, C2)
//	internal/journal/         — append-only closed-trade history (C7)
//	internal/controller/      — command surface + HTTP transport for open/close/list (C9)
//	internal/metrics/         — Prometheus counters/gauges, scraped at /metrics
//
// How the ratchet works:
//
//	A price tick that sets a new running high (long) or low (short)
//	recomputes the stop according to a per-table schedule of profit
//	bands; other ticks leave the stop where it is. Once
//	profit clears the high-profit threshold, the stop tightens off the
//	extreme instead of the entry price. A tick that crosses the current
//	stop triggers an immediate MARKET close and a journal entry.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tradestop/internal/config"
	"tradestop/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("TRADESTOP_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("trailing-stop engine started",
		"symbols", cfg.Symbols,
		"controller_addr", cfg.Controller.Addr,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
