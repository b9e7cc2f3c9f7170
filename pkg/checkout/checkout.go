// Package checkout isolates the payment gateway's checkout UI behind a typed
// result. A successful checkout only means the user finished the flow; the
// payment is not captured until the backend says so.
package checkout

import (
	"context"
	"errors"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
)

var ErrInvalidOptions = errors.New("checkout: key and subscription_id are required")

// Gateway presents the checkout and reports the gateway's answer.
type Gateway interface {
	Open(ctx context.Context, opts Options) (*GatewayResponse, error)
}

type GatewayResponse struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}

type PaymentData struct {
	PaymentID      string
	SubscriptionID string
	Signature      string
}

type Result struct {
	Success   bool
	Data      *PaymentData
	Error     *ParsedError
	Cancelled bool
}

type Wrapper struct {
	gateway Gateway
	log     logger.ILogger
}

func NewWrapper(gateway Gateway, log logger.ILogger) *Wrapper {
	return &Wrapper{gateway: gateway, log: log}
}

// OpenSubscriptionCheckout never talks to the backend; confirming capture is
// the caller's job.
func (w *Wrapper) OpenSubscriptionCheckout(ctx context.Context, opts Options) (Result, error) {
	if opts.Key == "" || opts.SubscriptionID == "" {
		return Result{}, ErrInvalidOptions
	}

	resp, err := w.gateway.Open(ctx, opts)
	if err == nil && resp == nil {
		err = &GatewayError{}
	}
	if err != nil {
		pe := ParseError(err)
		metrics.CheckoutResults.WithLabelValues(string(pe.Type)).Inc()
		w.log.Warning("checkout did not complete",
			logger.String("subscription_id", opts.SubscriptionID),
			logger.String("type", string(pe.Type)),
			logger.Error(err),
		)
		return Result{
			Success:   false,
			Error:     &pe,
			Cancelled: pe.Type == PaymentCancelled,
		}, nil
	}

	metrics.CheckoutResults.WithLabelValues("success").Inc()
	return Result{
		Success: true,
		Data: &PaymentData{
			PaymentID:      resp.PaymentID,
			SubscriptionID: resp.SubscriptionID,
			Signature:      resp.Signature,
		},
	}, nil
}
