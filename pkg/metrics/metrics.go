package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truckmitr_backend_requests_total",
			Help: "Backend API calls by method and status code",
		},
		[]string{"method", "status"},
	)

	CheckoutResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truckmitr_checkout_results_total",
			Help: "Checkout outcomes reported by the payment gateway",
		},
		[]string{"result"},
	)

	SubscriptionPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truckmitr_subscription_polls_total",
			Help: "Finished subscription status polls by outcome",
		},
		[]string{"outcome"},
	)

	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "truckmitr_otp_verifications_total",
			Help: "OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	PendingCheckouts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "truckmitr_pending_checkouts",
			Help: "Checkouts waiting for a gateway callback",
		},
	)

	UnresolvedSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "truckmitr_unresolved_subscriptions",
			Help: "Pending subscriptions still unresolved after the last sweep",
		},
	)
)
