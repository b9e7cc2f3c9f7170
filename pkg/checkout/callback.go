package checkout

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
)

var ErrNoPendingCheckout = errors.New("checkout: no pending checkout for subscription")

type outcome struct {
	resp *GatewayResponse
	err  error
}

type waiter struct {
	opts Options
	done chan outcome
}

// CallbackGateway serves the checkout as a hosted page. Open blocks until the
// page posts the gateway's callback (Resolve/Reject/Cancel) or ctx ends.
type CallbackGateway struct {
	baseURL string
	log     logger.ILogger

	mu      sync.Mutex
	waiters map[string]*waiter
}

func NewCallbackGateway(baseURL string, log logger.ILogger) *CallbackGateway {
	return &CallbackGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		waiters: make(map[string]*waiter),
	}
}

func (g *CallbackGateway) CheckoutURL(subscriptionID string) string {
	return g.baseURL + "/checkout/" + url.PathEscape(subscriptionID)
}

func (g *CallbackGateway) CallbackURL(subscriptionID string) string {
	return g.CheckoutURL(subscriptionID) + "/callback"
}

func (g *CallbackGateway) Open(ctx context.Context, opts Options) (*GatewayResponse, error) {
	opts.CallbackURL = g.CallbackURL(opts.SubscriptionID)
	w := &waiter{opts: opts, done: make(chan outcome, 1)}

	g.mu.Lock()
	if prev, ok := g.waiters[opts.SubscriptionID]; ok {
		// A newer checkout for the same subscription supersedes the old one.
		prev.done <- outcome{err: &GatewayError{Code: "PAYMENT_CANCELLED", Description: "superseded"}}
	} else {
		metrics.PendingCheckouts.Inc()
	}
	g.waiters[opts.SubscriptionID] = w
	g.mu.Unlock()

	g.log.Info("checkout opened", logger.String("subscription_id", opts.SubscriptionID))

	select {
	case out := <-w.done:
		return out.resp, out.err
	case <-ctx.Done():
		g.remove(opts.SubscriptionID, w)
		return nil, ctx.Err()
	}
}

// Pending returns the options of a checkout still waiting for its callback.
func (g *CallbackGateway) Pending(subscriptionID string) (Options, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, ok := g.waiters[subscriptionID]
	if !ok {
		return Options{}, false
	}
	return w.opts, true
}

func (g *CallbackGateway) Resolve(resp GatewayResponse) error {
	if resp.SubscriptionID == "" {
		return ErrNoPendingCheckout
	}
	return g.finish(resp.SubscriptionID, outcome{resp: &resp})
}

func (g *CallbackGateway) Reject(subscriptionID string, gwErr *GatewayError) error {
	return g.finish(subscriptionID, outcome{err: gwErr})
}

// Cancel is what dismissing the checkout page reports.
func (g *CallbackGateway) Cancel(subscriptionID string) error {
	return g.Reject(subscriptionID, &GatewayError{Code: "PAYMENT_CANCELLED", Description: "Payment cancelled by user"})
}

func (g *CallbackGateway) finish(subscriptionID string, out outcome) error {
	g.mu.Lock()
	w, ok := g.waiters[subscriptionID]
	if ok {
		delete(g.waiters, subscriptionID)
		metrics.PendingCheckouts.Dec()
	}
	g.mu.Unlock()

	if !ok {
		g.log.Warning("callback for unknown checkout", logger.String("subscription_id", subscriptionID))
		return ErrNoPendingCheckout
	}
	w.done <- out
	return nil
}

func (g *CallbackGateway) remove(subscriptionID string, w *waiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiters[subscriptionID] == w {
		delete(g.waiters, subscriptionID)
		metrics.PendingCheckouts.Dec()
	}
}
