package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/logger"
)

type stubGateway struct {
	resp  *GatewayResponse
	err   error
	calls int
}

func (s *stubGateway) Open(_ context.Context, _ Options) (*GatewayResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestOpenSubscriptionCheckout_RequiresKeyAndSubscription(t *testing.T) {
	gw := &stubGateway{}
	w := NewWrapper(gw, logger.NewNop())

	_, err := w.OpenSubscriptionCheckout(context.Background(), Options{SubscriptionID: "sub_1"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = w.OpenSubscriptionCheckout(context.Background(), Options{Key: "rzp_test"})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	assert.Zero(t, gw.calls)
}

func TestOpenSubscriptionCheckout_Success(t *testing.T) {
	var resp GatewayResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"razorpay_payment_id": "pay_1",
		"razorpay_subscription_id": "sub_1",
		"razorpay_signature": "sig_1"
	}`), &resp))
	gw := &stubGateway{resp: &resp}
	w := NewWrapper(gw, logger.NewNop())

	res, err := w.OpenSubscriptionCheckout(context.Background(), Options{Key: "rzp_test", SubscriptionID: "sub_1"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Nil(t, res.Error)
	assert.Equal(t, &PaymentData{PaymentID: "pay_1", SubscriptionID: "sub_1", Signature: "sig_1"}, res.Data)
	assert.Equal(t, 1, gw.calls)
}

func TestOpenSubscriptionCheckout_Failure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		cancelled bool
	}{
		{"cancel code", &GatewayError{Code: CodeOf(2), Description: "Payment cancelled"}, PaymentCancelled, true},
		{"declined", &GatewayError{Description: "Card declined"}, PaymentFailed, false},
		{"context cancelled", context.Canceled, PaymentCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWrapper(&stubGateway{err: tt.err}, logger.NewNop())
			res, err := w.OpenSubscriptionCheckout(context.Background(), Options{Key: "k", SubscriptionID: "s"})
			require.NoError(t, err)
			assert.False(t, res.Success)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.wantType, res.Error.Type)
			assert.Equal(t, tt.cancelled, res.Cancelled)
		})
	}
}

func TestParseError(t *testing.T) {
	decode := func(raw string) error {
		var e GatewayError
		require.NoError(t, json.Unmarshal([]byte(raw), &e))
		return &e
	}

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"numeric cancel code", decode(`{"code": 2}`), PaymentCancelled},
		{"string cancel code", decode(`{"code": "PAYMENT_CANCELLED"}`), PaymentCancelled},
		{"network description", decode(`{"description": "Network request failed"}`), NetworkError},
		{"declined description", decode(`{"description": "Card declined"}`), PaymentFailed},
		{"empty", decode(`{}`), UnknownError},
		{"code wins over prose", decode(`{"code": 0, "description": "Payment cancelled"}`), NetworkError},
		{"gateway error code", decode(`{"code": "BAD_REQUEST_ERROR", "description": "Invalid card"}`), PaymentFailed},
		{"foreign error", errors.New("boom"), UnknownError},
		{"nil", nil, UnknownError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseError(tt.err)
			assert.Equal(t, tt.want, got.Type)
			assert.NotEmpty(t, got.Message)
		})
	}
}

func TestParseError_KeepsDeclineReason(t *testing.T) {
	got := ParseError(&GatewayError{Description: "Card declined"})
	assert.Equal(t, "Card declined", got.Message)
}

func TestBuildSubscriptionOptions(t *testing.T) {
	opts := BuildSubscriptionOptions(SubscriptionParams{
		Key:            "rzp_test",
		SubscriptionID: "sub_1",
		UserName:       "Ravi",
		ThemeColor:     "#246BFD",
		PlanID:         "plan_gold",
	})

	assert.Equal(t, "rzp_test", opts.Key)
	assert.Equal(t, "sub_1", opts.SubscriptionID)
	assert.Equal(t, Prefill{Name: "Ravi", Email: "", Contact: ""}, opts.Prefill)
	assert.Equal(t, "#246BFD", opts.Theme.Color)
	assert.Equal(t, "", opts.Name)
	assert.Equal(t, map[string]string{"user_id": "", "plan_id": "plan_gold"}, opts.Notes)
}
