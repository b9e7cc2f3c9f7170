package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/logger"
)

func waitPending(t *testing.T, g *CallbackGateway, id string) Options {
	t.Helper()
	var opts Options
	require.Eventually(t, func() bool {
		var ok bool
		opts, ok = g.Pending(id)
		return ok
	}, time.Second, 5*time.Millisecond)
	return opts
}

func TestCallbackGateway_Resolve(t *testing.T) {
	g := NewCallbackGateway("https://pay.example.com/", logger.NewNop())

	done := make(chan *GatewayResponse, 1)
	go func() {
		resp, err := g.Open(context.Background(), Options{Key: "k", SubscriptionID: "sub_1"})
		assert.NoError(t, err)
		done <- resp
	}()

	opts := waitPending(t, g, "sub_1")
	assert.Equal(t, "https://pay.example.com/checkout/sub_1/callback", opts.CallbackURL)

	require.NoError(t, g.Resolve(GatewayResponse{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "sig"}))

	resp := <-done
	assert.Equal(t, "pay_1", resp.PaymentID)
	_, ok := g.Pending("sub_1")
	assert.False(t, ok)
}

func TestCallbackGateway_CancelIsClassified(t *testing.T) {
	g := NewCallbackGateway("http://localhost", logger.NewNop())
	w := NewWrapper(g, logger.NewNop())

	done := make(chan Result, 1)
	go func() {
		res, _ := w.OpenSubscriptionCheckout(context.Background(), Options{Key: "k", SubscriptionID: "sub_2"})
		done <- res
	}()

	waitPending(t, g, "sub_2")
	require.NoError(t, g.Cancel("sub_2"))

	res := <-done
	assert.False(t, res.Success)
	assert.True(t, res.Cancelled)
}

func TestCallbackGateway_ContextEndsWait(t *testing.T) {
	g := NewCallbackGateway("http://localhost", logger.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Open(ctx, Options{Key: "k", SubscriptionID: "sub_3"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, g.Resolve(GatewayResponse{SubscriptionID: "sub_3"}), ErrNoPendingCheckout)
}
