package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradestop/internal/exchange"
	"tradestop/internal/journal"
	"tradestop/pkg/types"
)

// Transport serves the TradeController's commands over plain JSON-over-HTTP,
// following the teacher's stdlib net/http + ServeMux shape (no framework).
type Transport struct {
	ctrl   *Controller
	server *http.Server
	logger *slog.Logger
}

// NewTransport builds the HTTP transport listening on addr.
func NewTransport(ctrl *Controller, addr string, logger *slog.Logger) *Transport {
	t := &Transport{ctrl: ctrl, logger: logger.With("component", "controller_transport")}

	mux := http.NewServeMux()
	mux.HandleFunc("/trade/open", t.handleOpen)
	mux.HandleFunc("/trade/close", t.handleClose)
	mux.HandleFunc("/trade/open-positions", t.handleListOpen)
	mux.HandleFunc("/trade/history", t.handleListHistory)
	mux.HandleFunc("/adjustment", t.handleAdjustment)
	mux.HandleFunc("/user-hold", t.handleUserHold)
	mux.Handle("/metrics", promhttp.Handler())

	t.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return t
}

// Start runs the transport; it blocks until Stop is called.
func (t *Transport) Start() error {
	t.logger.Info("controller transport starting", "addr", t.server.Addr)
	if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("controller transport: %w", err)
	}
	return nil
}

// Stop gracefully shuts the transport down.
func (t *Transport) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}

type envelope struct {
	Code    int    `json:"code"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Code: status, Data: data})
}

// writeError maps the controller/exchange error taxonomy onto HTTP status
// codes per §7: ValidationError/NotFound -> 4xx, Transport/Exchange -> 5xx.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var exchErr *exchange.ExchangeError

	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrTransport), errors.Is(err, exchange.ErrSignature), errors.As(err, &exchErr):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Code: status, Message: err.Error()})
}

type openPayload struct {
	UserID          string  `json:"user_id"`
	Symbol          string  `json:"symbol"`
	Direction       string  `json:"direction"`
	Leverage        float64 `json:"leverage"`
	Margin          float64 `json:"margin"`
	StopLossPercent float64 `json:"stop_loss_percent"`
	AdjustmentID    int     `json:"adjustment_id"`
}

func (t *Transport) handleOpen(w http.ResponseWriter, r *http.Request) {
	var payload openPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("decode open request: %w", ErrValidation))
		return
	}

	dir := types.Long
	if payload.Direction == "SHORT" {
		dir = types.Short
	}

	resp, err := t.ctrl.Open(r.Context(), OpenRequest{
		UserID:          payload.UserID,
		Symbol:          types.Normalize(payload.Symbol),
		Direction:       dir,
		Leverage:        payload.Leverage,
		Margin:          payload.Margin,
		StopLossPercent: payload.StopLossPercent,
		AdjustmentID:    payload.AdjustmentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type closePayload struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
}

func (t *Transport) handleClose(w http.ResponseWriter, r *http.Request) {
	var payload closePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, fmt.Errorf("decode close request: %w", ErrValidation))
		return
	}

	resp, err := t.ctrl.Close(r.Context(), CloseRequest{ID: payload.ID, Symbol: types.Normalize(payload.Symbol)})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (t *Transport) handleListOpen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.ctrl.ListOpen())
}

func (t *Transport) handleListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := journal.Filter{Symbol: types.Normalize(q.Get("symbol"))}
	if raw := q.Get("start"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, fmt.Errorf("parse start: %w", ErrValidation))
			return
		}
		filter.Start = start
	}
	if raw := q.Get("end"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, fmt.Errorf("parse end: %w", ErrValidation))
			return
		}
		filter.End = end
	}

	records, err := t.ctrl.ListHistory(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (t *Transport) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			writeError(w, fmt.Errorf("parse id: %w", ErrValidation))
			return
		}
		bands, err := t.ctrl.GetAdjustment(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bands)
	case http.MethodPut, http.MethodPost:
		var payload struct {
			ID    int                `json:"id"`
			Bands []types.Adjustment `json:"bands"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, fmt.Errorf("decode adjustment request: %w", ErrValidation))
			return
		}
		t.ctrl.PutAdjustment(payload.ID, payload.Bands)
		writeJSON(w, http.StatusOK, nil)
	default:
		writeError(w, fmt.Errorf("method %s not allowed: %w", r.Method, ErrValidation))
	}
}

func (t *Transport) handleUserHold(w http.ResponseWriter, r *http.Request) {
	snaps, err := t.ctrl.GetUserHold(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}
