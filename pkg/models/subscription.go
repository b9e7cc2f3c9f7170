package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionCreated       SubscriptionStatus = "created"
	SubscriptionAuthenticated SubscriptionStatus = "authenticated"
	SubscriptionActive        SubscriptionStatus = "active"
	SubscriptionPending       SubscriptionStatus = "pending"
	SubscriptionHalted        SubscriptionStatus = "halted"
	SubscriptionCancelled     SubscriptionStatus = "cancelled"
	SubscriptionCompleted     SubscriptionStatus = "completed"
	SubscriptionExpired       SubscriptionStatus = "expired"
)

// Resolved reports whether polling may stop on this status.
func (s SubscriptionStatus) Resolved() bool {
	return s == SubscriptionActive || s == SubscriptionHalted || s == SubscriptionCancelled
}

type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

type CreatedSubscription struct {
	SubscriptionID string `json:"subscription_id"`
	RazorpayKey    string `json:"razorpay_key"`
}

// PendingSubscription is the locally cached checkout that may still be resumed.
type PendingSubscription struct {
	SubscriptionID string
	PlanID         string
	CreatedAt      time.Time
}

func (p PendingSubscription) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

type PaymentConfirmation struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}
