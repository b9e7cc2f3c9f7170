package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/checkout"
	"truckmitr/pkg/logger"
)

type openResult struct {
	resp *checkout.GatewayResponse
	err  error
}

func setupRouter(t *testing.T) (*gin.Engine, *checkout.CallbackGateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gw := checkout.NewCallbackGateway("https://pay.example.com", logger.NewNop())
	return NewRouter(gw, logger.NewNop()), gw
}

// openPending starts a checkout and waits until the page can be served.
func openPending(t *testing.T, gw *checkout.CallbackGateway, subID string) <-chan openResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	out := make(chan openResult, 1)
	go func() {
		resp, err := gw.Open(ctx, checkout.BuildSubscriptionOptions(checkout.SubscriptionParams{
			Key:            "rzp_test_key",
			SubscriptionID: subID,
			DisplayName:    "TruckMitr",
		}))
		out <- openResult{resp: resp, err: err}
	}()
	require.Eventually(t, func() bool {
		_, ok := gw.Pending(subID)
		return ok
	}, time.Second, 5*time.Millisecond)
	return out
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "truckmitr_pending_checkouts")
}

func TestCheckoutPage_UnknownSubscription(t *testing.T) {
	r, _ := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/sub_missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Link expired")
}

func TestCheckoutPage_RendersOptions(t *testing.T) {
	r, gw := setupRouter(t)
	done := openPending(t, gw, "sub_page")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/sub_page", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "rzp_test_key")
	assert.Contains(t, body, "checkout.razorpay.com")
	assert.Contains(t, body, "pay.example.com")
	assert.Contains(t, body, "sub_page")

	require.NoError(t, gw.Cancel("sub_page"))
	<-done
}

func TestCheckoutCallback_Success(t *testing.T) {
	r, gw := setupRouter(t)
	done := openPending(t, gw, "sub_ok")

	w := postForm(r, "/checkout/sub_ok/callback", url.Values{
		"razorpay_payment_id":      {"pay_1"},
		"razorpay_subscription_id": {"sub_ok"},
		"razorpay_signature":       {"sig"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "pay_1", res.resp.PaymentID)
	assert.Equal(t, "sig", res.resp.Signature)
}

func TestCheckoutCallback_Failure(t *testing.T) {
	r, gw := setupRouter(t)
	done := openPending(t, gw, "sub_fail")

	w := postForm(r, "/checkout/sub_fail/callback", url.Values{
		"error[code]":        {"BAD_REQUEST_ERROR"},
		"error[description]": {"Card declined by bank"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	res := <-done
	require.Error(t, res.err)
	parsed := checkout.ParseError(res.err)
	assert.Equal(t, checkout.PaymentFailed, parsed.Type)
}

func TestCheckoutCancel(t *testing.T) {
	r, gw := setupRouter(t)
	done := openPending(t, gw, "sub_cancel")

	w := postForm(r, "/checkout/sub_cancel/cancel", url.Values{})
	assert.Equal(t, http.StatusOK, w.Code)

	res := <-done
	assert.Equal(t, checkout.PaymentCancelled, checkout.ParseError(res.err).Type)
}

func TestCheckoutCallback_NoPending(t *testing.T) {
	r, _ := setupRouter(t)
	w := postForm(r, "/checkout/sub_gone/callback", url.Values{"razorpay_payment_id": {"pay_1"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
