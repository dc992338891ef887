package exchange

import (
	"errors"
	"strconv"
)

// Sentinel errors per the §7 taxonomy. Callers use errors.Is against these;
// ExchangeError additionally carries the venue's numeric code and message.
var (
	ErrTransport = errors.New("transport error")
	ErrDecode    = errors.New("decode error")
	ErrSignature = errors.New("signature error")
)

// ExchangeError wraps a venue-returned non-success response.
type ExchangeError struct {
	Code    int
	Message string
}

func (e *ExchangeError) Error() string {
	return "exchange error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// mapExchangeCode maps a venue numeric error code to the §7 taxonomy.
// Every code yields an *ExchangeError carrying the original code; a small
// set of well-known codes get a message prefix naming their category
// (signature/timestamp rejected, order rejected, order does not exist),
// and any other code keeps the venue's message unchanged.
func mapExchangeCode(code int, message string) error {
	switch code {
	case -1021, -1022:
		return &ExchangeError{Code: code, Message: "signature/timestamp rejected: " + message}
	case -2010, -2019, -4003, -4014, -4015:
		return &ExchangeError{Code: code, Message: "order rejected: " + message}
	case -2013:
		return &ExchangeError{Code: code, Message: "order does not exist: " + message}
	default:
		return &ExchangeError{Code: code, Message: message}
	}
}
