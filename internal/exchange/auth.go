// Package exchange implements the venue REST and WebSocket clients.
//
// The REST client (Client) talks to the venue's futures API for order
// management:
//   - CreateOrder:            POST /fapi/v1/order     — place a MARKET order
//   - GetOrder:                GET  /fapi/v1/order     — poll average fill price
//   - ChangeLeverage:          POST /fapi/v1/leverage  — best-effort leverage set
//   - GetPositions:            GET  /fapi/v3/positionRisk — exchange-side holdings
//   - GetFills:                GET  /fapi/v1/userTrades  — fill history for an order
//   - GetQuantityPrecision:    GET  /fapi/v1/exchangeInfo — per-symbol quantity precision
//
// Every mutating or account-scoped request is signed with HMAC-SHA256 over
// the canonical query string and retried on 5xx by the underlying resty client.
package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"
)

// Credentials holds the API key/secret pair used to sign every request.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Auth signs requests with HMAC-SHA256 per §4.1: the signature is computed
// over the same canonical query string sent with the request (the params
// plus timestamp, keys sorted by url.Values.Encode), keyed by the API
// secret, and appended as "&signature=...".
type Auth struct {
	creds Credentials
}

// NewAuth builds an Auth from a resolved credential pair.
func NewAuth(creds Credentials) *Auth {
	return &Auth{creds: creds}
}

// HasCredentials reports whether both key and secret are present.
func (a *Auth) HasCredentials() bool {
	return a.creds.APIKey != "" && a.creds.APISecret != ""
}

// APIKeyHeader returns the header carrying the API key on every signed request.
func (a *Auth) APIKeyHeader() (string, string) {
	return "X-MBX-APIKEY", a.creds.APIKey
}

// Timestamp returns the current millisecond epoch, the only time source the
// signature scheme depends on.
func Timestamp() int64 {
	return time.Now().UnixMilli()
}

// Sign appends `timestamp` to params, computes the HMAC-SHA256 signature of
// the resulting canonical query string, and returns the final query string
// with `&signature=...` appended.
func (a *Auth) Sign(params url.Values) (string, error) {
	if !a.HasCredentials() {
		return "", fmt.Errorf("sign request: %w", ErrSignature)
	}

	params.Set("timestamp", fmt.Sprintf("%d", Timestamp()))
	query := params.Encode()

	sig, err := a.buildHMAC(query)
	if err != nil {
		return "", fmt.Errorf("sign request: %w", err)
	}

	return query + "&signature=" + sig, nil
}

// buildHMAC computes the hex-encoded HMAC-SHA256 signature of the query string.
func (a *Auth) buildHMAC(query string) (string, error) {
	mac := hmac.New(sha256.New, []byte(a.creds.APISecret))
	if _, err := mac.Write([]byte(query)); err != nil {
		return "", fmt.Errorf("write hmac: %w", err)
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}
