package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
	"truckmitr/storage"
)

type JobService interface {
	Draft(ctx context.Context, owner int64) (*models.JobDraft, error)
	ApplyStep(ctx context.Context, owner int64, input string) (*models.JobDraft, error)
	ResetDraft(ctx context.Context, owner int64) error
	Submit(ctx context.Context, owner int64) (*models.Job, error)
	List(ctx context.Context, owner int64) ([]models.Job, error)
	Apply(ctx context.Context, owner int64, jobID int64) error
	Import(ctx context.Context, owner int64, fileName string, r io.Reader) error
}

type jobService struct {
	dev device
	api backend.API
	log logger.ILogger
	now func() time.Time
}

func NewJobService(stg storage.IStorage, api backend.API, log logger.ILogger) JobService {
	return &jobService{dev: device{kv: stg.KV()}, api: api, log: log, now: time.Now}
}

func (s *jobService) Draft(ctx context.Context, owner int64) (*models.JobDraft, error) {
	val, err := s.dev.of(owner).Get(ctx, keyJobDraft)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &models.JobDraft{Step: JobStepTitle}, nil
		}
		return nil, err
	}
	var d models.JobDraft
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		s.log.Warning("dropping unreadable job draft", logger.Int64("owner_id", owner), logger.Error(err))
		_ = s.dev.of(owner).Delete(ctx, keyJobDraft)
		return &models.JobDraft{Step: JobStepTitle}, nil
	}
	return &d, nil
}

func (s *jobService) ApplyStep(ctx context.Context, owner int64, input string) (*models.JobDraft, error) {
	d, err := s.Draft(ctx, owner)
	if err != nil {
		return nil, err
	}
	next, err := ReduceJobDraft(*d, input, s.now())
	if err != nil {
		return d, err
	}
	if err := s.saveDraft(ctx, owner, next); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *jobService) saveDraft(ctx context.Context, owner int64, d models.JobDraft) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.dev.of(owner).Set(ctx, keyJobDraft, string(b))
}

func (s *jobService) ResetDraft(ctx context.Context, owner int64) error {
	return s.dev.of(owner).Delete(ctx, keyJobDraft)
}

// Submit posts a completed draft. The draft survives a failed submit.
func (s *jobService) Submit(ctx context.Context, owner int64) (*models.Job, error) {
	d, err := s.Draft(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(d); err != nil {
		return nil, err
	}
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathJobs,
		Token:  tok,
		Body: map[string]any{
			"title":        d.Title,
			"location":     d.Location,
			"salary_min":   d.SalaryMin,
			"salary_max":   d.SalaryMax,
			"license_type": d.LicenseType,
			"skills":       d.Skills,
			"deadline":     d.Deadline.Format(deadlineLayout),
			"description":  d.Description,
		},
		Out: &raw,
	})
	if err != nil {
		return nil, err
	}

	var job models.Job
	if err := json.Unmarshal(unwrapData(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if err := s.ResetDraft(ctx, owner); err != nil {
		s.log.Error("clear job draft", logger.Int64("owner_id", owner), logger.Error(err))
	}
	s.log.Info("job posted", logger.Int64("owner_id", owner), logger.Int64("job_id", job.ID))
	return &job, nil
}

func (s *jobService) List(ctx context.Context, owner int64) ([]models.Job, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.api.Do(ctx, backend.Call{Method: http.MethodGet, Path: backend.PathJobs, Token: tok, Out: &raw}); err != nil {
		return nil, err
	}
	data := unwrapData(raw)
	var wrapped struct {
		Jobs []models.Job `json:"jobs"`
	}
	if json.Unmarshal(data, &wrapped) == nil && wrapped.Jobs != nil {
		return wrapped.Jobs, nil
	}
	var jobs []models.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return jobs, nil
}

func (s *jobService) Apply(ctx context.Context, owner int64, jobID int64) error {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return err
	}
	return s.api.Do(ctx, backend.Call{
		Method:     http.MethodPost,
		Path:       backend.PathJobApply,
		Token:      tok,
		PathParams: map[string]string{"id": strconv.FormatInt(jobID, 10)},
	})
}

// Import uploads a bulk job spreadsheet after sniffing its header.
func (s *jobService) Import(ctx context.Context, owner int64, fileName string, r io.Reader) error {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]
	if err := validate.Spreadsheet(fileName, head); err != nil {
		return err
	}

	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return err
	}
	return s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathJobsImport,
		Token:  tok,
		File: &backend.File{
			Param:  "file",
			Name:   fileName,
			Reader: io.MultiReader(bytes.NewReader(head), r),
		},
	})
}
