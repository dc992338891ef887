package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"tradestop/pkg/types"
)

// Client is the venue futures REST API client (C1). It wraps a resty HTTP
// client with retry-on-5xx and HMAC request signing.
type Client struct {
	http   *resty.Client
	auth   *Auth
	logger *slog.Logger
}

// NewClient builds a signed REST client against baseURL.
func NewClient(baseURL string, timeout time.Duration, auth *Auth, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return false
			}
			return r.StatusCode() >= 500
		})

	return &Client{http: httpClient, auth: auth, logger: logger}
}

// venueError is the shape of a failed response body.
type venueError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// signedGet issues a signed GET request to path with the given params.
func (c *Client) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	return c.signedRequest(ctx, http.MethodGet, path, params, out)
}

// signedPost issues a signed POST request to path with the given params.
func (c *Client) signedPost(ctx context.Context, path string, params url.Values, out any) error {
	return c.signedRequest(ctx, http.MethodPost, path, params, out)
}

func (c *Client) signedRequest(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	query, err := c.auth.Sign(params)
	if err != nil {
		return err
	}

	keyHeader, keyValue := c.auth.APIKeyHeader()
	req := c.http.R().
		SetContext(ctx).
		SetHeader(keyHeader, keyValue).
		SetQueryString(query)

	if out != nil {
		req = req.SetResult(out)
	}
	var errBody venueError
	req = req.SetError(&errBody)

	var resp *resty.Response
	switch method {
	case http.MethodGet:
		resp, err = req.Get(path)
	case http.MethodPost:
		resp, err = req.Post(path)
	default:
		return fmt.Errorf("%s %s: unsupported method", method, path)
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusOK {
		if errBody.Code != 0 {
			return fmt.Errorf("%s %s: %w", method, path, mapExchangeCode(errBody.Code, errBody.Msg))
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	return nil
}

// CreateOrder places a MARKET order and returns the venue order id.
func (c *Client) CreateOrder(ctx context.Context, symbol types.Symbol, side types.Side, positionSide types.PositionSide, quantity string) (int64, error) {
	params := url.Values{
		"symbol":       {string(symbol)},
		"positionSide": {string(positionSide)},
		"side":         {string(side)},
		"type":         {"MARKET"},
		"quantity":     {quantity},
	}

	var result types.OrderResponse
	if err := c.signedPost(ctx, "/fapi/v1/order", params, &result); err != nil {
		return 0, fmt.Errorf("create order: %w", err)
	}
	return result.OrderID, nil
}

// GetOrder polls an order's average fill price and executed quantity.
func (c *Client) GetOrder(ctx context.Context, symbol types.Symbol, orderID int64) (types.OrderStatus, error) {
	params := url.Values{
		"symbol":  {string(symbol)},
		"orderId": {fmt.Sprintf("%d", orderID)},
	}

	var result types.OrderStatus
	if err := c.signedGet(ctx, "/fapi/v1/order", params, &result); err != nil {
		return types.OrderStatus{}, fmt.Errorf("get order: %w", err)
	}
	return result, nil
}

// ChangeLeverage sets a symbol's leverage. Failure here is non-fatal for the
// opening flow (§4.9 step 3); callers should log and proceed.
func (c *Client) ChangeLeverage(ctx context.Context, symbol types.Symbol, leverage int) error {
	params := url.Values{
		"symbol":   {string(symbol)},
		"leverage": {fmt.Sprintf("%d", leverage)},
	}
	if err := c.signedPost(ctx, "/fapi/v1/leverage", params, nil); err != nil {
		return fmt.Errorf("change leverage: %w", err)
	}
	return nil
}

// GetPositions returns the exchange-side position snapshots, used only for
// the user-hold query — never to drive the ratchet.
func (c *Client) GetPositions(ctx context.Context) ([]types.PositionSnapshot, error) {
	var result []types.PositionSnapshot
	if err := c.signedGet(ctx, "/fapi/v3/positionRisk", nil, &result); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return result, nil
}

// GetFills returns the fill history for an order.
func (c *Client) GetFills(ctx context.Context, symbol types.Symbol, orderID int64) ([]types.Fill, error) {
	params := url.Values{
		"symbol":  {string(symbol)},
		"orderId": {fmt.Sprintf("%d", orderID)},
	}

	var result []types.Fill
	if err := c.signedGet(ctx, "/fapi/v1/userTrades", params, &result); err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	return result, nil
}

// GetQuantityPrecision fetches exchangeInfo (unsigned, no API key required)
// and returns the quantity precision for the requested symbols.
func (c *Client) GetQuantityPrecision(ctx context.Context, symbols []types.Symbol) (types.QuantityPrecision, error) {
	var result types.ExchangeInfoResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/fapi/v1/exchangeInfo")
	if err != nil {
		return nil, fmt.Errorf("get quantity precision: %w: %v", ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get quantity precision: status %d: %s", resp.StatusCode(), resp.String())
	}

	wanted := make(map[types.Symbol]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	out := make(types.QuantityPrecision, len(symbols))
	for _, sym := range result.Symbols {
		key := types.Normalize(sym.Symbol)
		if wanted[key] {
			out[key] = sym.QuantityPrecision
		}
	}
	return out, nil
}
