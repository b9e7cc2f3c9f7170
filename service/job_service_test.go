package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
)

func TestReduceJobDraft_WalksAllSteps(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	d := models.JobDraft{}

	inputs := []string{
		"Long haul driver",
		"Pune",
		"15,000 - 25,000",
		"hmv",
		"night driving, loading",
		"2026-06-30",
		"-",
	}
	var err error
	for _, in := range inputs {
		d, err = ReduceJobDraft(d, in, now)
		require.NoError(t, err, in)
	}

	assert.Equal(t, JobStepReview, d.Step)
	assert.Equal(t, "Long haul driver", d.Title)
	assert.Equal(t, 15000, d.SalaryMin)
	assert.Equal(t, 25000, d.SalaryMax)
	assert.Equal(t, "HMV", d.LicenseType)
	assert.Equal(t, []string{"night driving", "loading"}, d.Skills)
	assert.Empty(t, d.Description)

	_, err = ReduceJobDraft(d, "anything", now)
	assert.ErrorIs(t, err, ErrDraftComplete)
}

func TestReduceJobDraft_RejectsBadInputWithoutAdvancing(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		step  string
		input string
		field string
	}{
		{JobStepTitle, "ab", "title"},
		{JobStepLocation, "", "location"},
		{JobStepSalary, "lots", "salary"},
		{JobStepSalary, "30000-20000", "salary_max"},
		{JobStepLicense, "car", "license_type"},
		{JobStepDeadline, "30/06/2026", "deadline"},
		{JobStepDeadline, "2026-04-01", "deadline"},
	}
	for _, tc := range cases {
		t.Run(tc.step+"/"+tc.input, func(t *testing.T) {
			d := models.JobDraft{Step: tc.step}
			got, err := ReduceJobDraft(d, tc.input, now)
			require.Error(t, err)
			var verrs validate.Errors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tc.field)
			assert.Equal(t, tc.step, got.Step)
		})
	}
}

func TestJobService_SubmitPostsAndClearsDraft(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Long haul driver", body["title"])
		assert.Equal(t, "2099-06-30", body["deadline"])
		_, _ = w.Write([]byte(`{"data":{"id":55,"title":"Long haul driver"}}`))
	})
	env.login(t, testOwner)
	svc := NewJobService(env.stg, env.client, env.log).(*jobService)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	for _, in := range []string{"Long haul driver", "Pune", "20000", "HMV", "-", "2099-06-30", "Night shifts"} {
		_, err := svc.ApplyStep(ctx, testOwner, in)
		require.NoError(t, err)
	}
	d, err := svc.Draft(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, JobStepReview, d.Step)

	job, err := svc.Submit(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(55), job.ID)

	fresh, err := svc.Draft(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, JobStepTitle, fresh.Step)
	assert.Empty(t, fresh.Title)
}

func TestJobService_SubmitInvalidDraftSkipsBackend(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t, testOwner)
	svc := NewJobService(env.stg, env.client, env.log)

	_, err := svc.Submit(context.Background(), testOwner)
	var verrs validate.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "title")
}

func TestJobService_ApplyUsesJobID(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/55/apply", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	env.login(t, testOwner)
	svc := NewJobService(env.stg, env.client, env.log)

	require.NoError(t, svc.Apply(context.Background(), testOwner, 55))
}

func TestJobService_ImportRejectsNonSpreadsheet(t *testing.T) {
	env := newTestEnv(t, nil)
	env.login(t, testOwner)
	svc := NewJobService(env.stg, env.client, env.log)

	err := svc.Import(context.Background(), testOwner, "jobs.csv", strings.NewReader("a,b,c"))
	assert.ErrorIs(t, err, validate.ErrNotSpreadsheet)
}

func TestJobService_ImportUploadsWholeFile(t *testing.T) {
	// Minimal zip local file header followed by filler.
	payload := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0}, 1024)...)
	var received atomic.Int64
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/import", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "jobs.xlsx", hdr.Filename)
		var buf bytes.Buffer
		n, _ := buf.ReadFrom(f)
		received.Store(n)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	env.login(t, testOwner)
	svc := NewJobService(env.stg, env.client, env.log)

	require.NoError(t, svc.Import(context.Background(), testOwner, "jobs.xlsx", bytes.NewReader(payload)))
	assert.Equal(t, int64(len(payload)), received.Load())
}
