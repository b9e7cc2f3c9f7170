package models

import "time"

const (
	RoleDriver      = "driver"
	RoleTransporter = "transporter"
)

// User mirrors the backend profile of whoever is chatting with the bot.
// OwnerID is the Telegram chat id that owns the local storage namespace.
type User struct {
	OwnerID           int64               `json:"owner_id"`
	ID                int64               `json:"id"`
	UniqueID          string              `json:"unique_id"`
	Name              string              `json:"name"`
	Mobile            string              `json:"mobile"`
	Email             string              `json:"email"`
	Role              string              `json:"role"`
	ProfileCompletion int                 `json:"profile_completion"`
	Rating            float64             `json:"rating"`
	Subscription      *SubscriptionDetail `json:"subscription,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type SubscriptionDetail struct {
	PlanID    string     `json:"plan_id"`
	PlanName  string     `json:"plan_name"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
