// Package verification derives the driver-facing view of the backend's
// ID, address and court checks. It never decides a check itself.
package verification

import (
	"encoding/json"
	"strings"
	"time"

	"truckmitr/pkg/models"
)

// Overall: completed when every check is verified, rejected when any is
// rejected, in progress once at least one is verified, pending otherwise.
func Overall(checks ...models.CheckStatus) models.OverallStatus {
	if len(checks) == 0 {
		return models.OverallPending
	}
	allVerified, anyVerified, anyRejected := true, false, false
	for _, c := range checks {
		switch c {
		case models.CheckVerified:
			anyVerified = true
		case models.CheckRejected:
			anyRejected = true
			allVerified = false
		default:
			allVerified = false
		}
	}
	switch {
	case allVerified:
		return models.OverallCompleted
	case anyRejected:
		return models.OverallRejected
	case anyVerified:
		return models.OverallInProgress
	}
	return models.OverallPending
}

type StepState string

const (
	StepDone    StepState = "done"
	StepActive  StepState = "active"
	StepFailed  StepState = "failed"
	StepWaiting StepState = "waiting"
)

type Step struct {
	Title string
	State StepState
}

// Steps is the four-step progress indicator: submission then one step per check.
func Steps(v models.Verification) []Step {
	return []Step{
		{Title: "Documents submitted", State: StepDone},
		{Title: "ID check", State: stepState(v.ID.Status)},
		{Title: "Address check", State: stepState(v.Address.Status)},
		{Title: "Court check", State: stepState(v.Court.Status)},
	}
}

func stepState(s models.CheckStatus) StepState {
	switch s {
	case models.CheckVerified:
		return StepDone
	case models.CheckRejected:
		return StepFailed
	case models.CheckInProgress:
		return StepActive
	}
	return StepWaiting
}

// Payload covers every shape the backend has used for this record.
type Payload struct {
	OverallStatus string `json:"overall_status"`
	FinalStatus   string `json:"final_status"`

	Verification *struct {
		FinalStatus   string     `json:"final_status"`
		IDStatus      string     `json:"id_status"`
		AddressStatus string     `json:"address_status"`
		CourtStatus   string     `json:"court_status"`
		UpdatedAt     *time.Time `json:"updated_at"`
	} `json:"verification"`

	VerificationStatus *struct {
		ID      json.RawMessage `json:"id"`
		Address json.RawMessage `json:"address"`
		Court   json.RawMessage `json:"court"`
	} `json:"verification_status"`
}

// Normalize folds a Payload into one record. A final status supplied by the
// backend wins over the derived one.
func Normalize(p Payload) models.Verification {
	var v models.Verification

	if vs := p.VerificationStatus; vs != nil {
		v.ID = parseCheck(vs.ID)
		v.Address = parseCheck(vs.Address)
		v.Court = parseCheck(vs.Court)
	}
	if ver := p.Verification; ver != nil {
		fill(&v.ID, ver.IDStatus, ver.UpdatedAt)
		fill(&v.Address, ver.AddressStatus, ver.UpdatedAt)
		fill(&v.Court, ver.CourtStatus, ver.UpdatedAt)
	}
	for _, c := range []*models.Check{&v.ID, &v.Address, &v.Court} {
		if c.Status == "" {
			c.Status = models.CheckPending
		}
	}

	final := p.OverallStatus
	if p.Verification != nil && p.Verification.FinalStatus != "" {
		final = p.Verification.FinalStatus
	}
	if final == "" {
		final = p.FinalStatus
	}
	if o, ok := ParseOverall(final); ok {
		v.Overall = o
		v.ServerOverall = true
	} else {
		v.Overall = Overall(v.ID.Status, v.Address.Status, v.Court.Status)
	}
	return v
}

func fill(c *models.Check, status string, updated *time.Time) {
	if c.Status != "" || status == "" {
		return
	}
	c.Status = ParseCheck(status)
	c.UpdatedAt = updated
}

// parseCheck accepts either "verified" or {"status": "verified", "updated_at": ...}.
func parseCheck(raw json.RawMessage) models.Check {
	if len(raw) == 0 {
		return models.Check{}
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return models.Check{Status: ParseCheck(s)}
	}
	var obj struct {
		Status    string     `json:"status"`
		UpdatedAt *time.Time `json:"updated_at"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Status != "" {
		return models.Check{Status: ParseCheck(obj.Status), UpdatedAt: obj.UpdatedAt}
	}
	return models.Check{}
}

func ParseCheck(s string) models.CheckStatus {
	switch normalize(s) {
	case "verified", "approved", "completed", "clear":
		return models.CheckVerified
	case "rejected", "failed", "discrepancy":
		return models.CheckRejected
	case "in_progress", "processing", "under_review":
		return models.CheckInProgress
	}
	return models.CheckPending
}

func ParseOverall(s string) (models.OverallStatus, bool) {
	switch normalize(s) {
	case "":
		return "", false
	case "completed", "verified", "approved":
		return models.OverallCompleted, true
	case "rejected", "discrepancy", "failed":
		return models.OverallRejected, true
	case "in_progress", "processing":
		return models.OverallInProgress, true
	case "pending":
		return models.OverallPending, true
	}
	return "", false
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
