package models

import "time"

type CheckStatus string

const (
	CheckPending    CheckStatus = "pending"
	CheckInProgress CheckStatus = "in_progress"
	CheckVerified   CheckStatus = "verified"
	CheckRejected   CheckStatus = "rejected"
)

type OverallStatus string

const (
	OverallPending    OverallStatus = "pending"
	OverallInProgress OverallStatus = "in_progress"
	OverallCompleted  OverallStatus = "completed"
	OverallRejected   OverallStatus = "rejected"
)

type Check struct {
	Status    CheckStatus `json:"status"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// Verification is owned by the backend; the service only reads it.
type Verification struct {
	ID      Check         `json:"id_check"`
	Address Check         `json:"address_check"`
	Court   Check         `json:"court_check"`
	Overall OverallStatus `json:"overall_status"`
	// ServerOverall is true when the backend supplied Overall itself.
	ServerOverall bool `json:"-"`
}
