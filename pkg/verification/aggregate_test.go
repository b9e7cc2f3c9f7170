package verification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/models"
)

func TestOverall(t *testing.T) {
	const (
		p = models.CheckPending
		i = models.CheckInProgress
		v = models.CheckVerified
		r = models.CheckRejected
	)
	tests := []struct {
		name   string
		checks []models.CheckStatus
		want   models.OverallStatus
	}{
		{"all verified", []models.CheckStatus{v, v, v}, models.OverallCompleted},
		{"one rejected beats verified", []models.CheckStatus{v, r, v}, models.OverallRejected},
		{"rejected with pending", []models.CheckStatus{r, p, p}, models.OverallRejected},
		{"some verified", []models.CheckStatus{v, p, i}, models.OverallInProgress},
		{"in progress alone stays pending", []models.CheckStatus{i, p, p}, models.OverallPending},
		{"nothing yet", []models.CheckStatus{p, p, p}, models.OverallPending},
		{"no checks", nil, models.OverallPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.checks...))
		})
	}
}

func TestSteps(t *testing.T) {
	steps := Steps(models.Verification{
		ID:      models.Check{Status: models.CheckVerified},
		Address: models.Check{Status: models.CheckInProgress},
		Court:   models.Check{Status: models.CheckRejected},
	})
	require.Len(t, steps, 4)
	assert.Equal(t, []StepState{StepDone, StepDone, StepActive, StepFailed},
		[]StepState{steps[0].State, steps[1].State, steps[2].State, steps[3].State})
}

func decode(t *testing.T, raw string) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	return p
}

func TestNormalize_LegacyShapes(t *testing.T) {
	t.Run("verification_status objects without final", func(t *testing.T) {
		v := Normalize(decode(t, `{"verification_status": {
			"id": {"status": "verified", "updated_at": "2026-01-02T10:00:00Z"},
			"address": "verified",
			"court": {"status": "pending"}
		}}`))
		assert.Equal(t, models.CheckVerified, v.ID.Status)
		require.NotNil(t, v.ID.UpdatedAt)
		assert.Equal(t, models.OverallInProgress, v.Overall)
		assert.False(t, v.ServerOverall)
	})

	t.Run("verification.final_status wins", func(t *testing.T) {
		v := Normalize(decode(t, `{"verification": {
			"final_status": "Discrepancy",
			"id_status": "verified", "address_status": "verified", "court_status": "verified"
		}}`))
		assert.Equal(t, models.OverallRejected, v.Overall)
		assert.True(t, v.ServerOverall)
	})

	t.Run("overall_status only", func(t *testing.T) {
		v := Normalize(decode(t, `{"overall_status": "in-progress"}`))
		assert.Equal(t, models.OverallInProgress, v.Overall)
		assert.Equal(t, models.CheckPending, v.Court.Status)
	})

	t.Run("unknown final falls back to rule", func(t *testing.T) {
		v := Normalize(decode(t, `{"overall_status": "???", "verification_status": {"id": "verified", "address": "verified", "court": "verified"}}`))
		assert.Equal(t, models.OverallCompleted, v.Overall)
	})
}
