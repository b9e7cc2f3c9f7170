package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

type ErrorType string

const (
	PaymentCancelled ErrorType = "PAYMENT_CANCELLED"
	NetworkError     ErrorType = "NETWORK_ERROR"
	PaymentFailed    ErrorType = "PAYMENT_FAILED"
	UnknownError     ErrorType = "UNKNOWN_ERROR"
)

var userMessages = map[ErrorType]string{
	PaymentCancelled: "Payment was cancelled.",
	NetworkError:     "Network problem during payment. Please check your connection and try again.",
	PaymentFailed:    "Payment failed. Please try again or use another payment method.",
	UnknownError:     "Something went wrong with the payment. Please try again.",
}

// ErrorCode accepts both the numeric and the string codes gateways send.
type ErrorCode string

func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = ErrorCode(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = ErrorCode(n.String())
	return nil
}

func CodeOf(n int) ErrorCode {
	return ErrorCode(strconv.Itoa(n))
}

// GatewayError is the rejection payload of the checkout UI.
type GatewayError struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Step        string    `json:"step"`
	Reason      string    `json:"reason"`
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Code != "" {
		return "checkout error " + string(e.Code)
	}
	return "checkout error"
}

type ParsedError struct {
	Type    ErrorType
	Message string
	Code    ErrorCode
}

var codeTypes = map[ErrorCode]ErrorType{
	"PAYMENT_CANCELLED": PaymentCancelled,
	"2":                 PaymentCancelled,
	"NETWORK_ERROR":     NetworkError,
	"0":                 NetworkError,
	"BAD_REQUEST_ERROR": PaymentFailed,
	"GATEWAY_ERROR":     PaymentFailed,
	"SERVER_ERROR":      PaymentFailed,
}

// ParseError classifies a checkout failure. Known codes decide first; the
// description is only read when the code says nothing.
func ParseError(err error) ParsedError {
	if err == nil {
		return parsed(UnknownError, "")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return parsed(PaymentCancelled, "")
	}

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return parsed(UnknownError, "")
	}

	if t, ok := codeTypes[ErrorCode(strings.ToUpper(string(gwErr.Code)))]; ok {
		p := parsed(t, gwErr.Code)
		if t == PaymentFailed && gwErr.Description != "" {
			p.Message = gwErr.Description
		}
		return p
	}

	desc := strings.ToLower(gwErr.Description)
	switch {
	case desc == "":
		return parsed(UnknownError, gwErr.Code)
	case strings.Contains(desc, "cancel"):
		return parsed(PaymentCancelled, gwErr.Code)
	case strings.Contains(desc, "network"):
		return parsed(NetworkError, gwErr.Code)
	}
	p := parsed(PaymentFailed, gwErr.Code)
	p.Message = gwErr.Description
	return p
}

func parsed(t ErrorType, code ErrorCode) ParsedError {
	return ParsedError{Type: t, Message: userMessages[t], Code: code}
}
