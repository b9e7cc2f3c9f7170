package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
	"truckmitr/pkg/models"
	"truckmitr/storage"
)

var ErrIncompleteSubscription = errors.New("subscription response missing subscription_id or razorpay_key")

// SubscriptionService mediates checkout creation and status. The backend is
// the only authority on whether a subscription is paid.
type SubscriptionService interface {
	ListPlans(ctx context.Context, owner int64) ([]models.Plan, error)
	CreateSubscription(ctx context.Context, owner int64, planID string) (*models.CreatedSubscription, error)
	// GetSubscriptionStatus reports ok=false when the status is unknown.
	GetSubscriptionStatus(ctx context.Context, owner int64, subscriptionID string) (models.SubscriptionStatus, bool)
	IsSubscriptionActive(ctx context.Context, owner int64, subscriptionID string) bool
	// PollSubscriptionStatus returns "" with a nil error when attempts run out.
	PollSubscriptionStatus(ctx context.Context, owner int64, subscriptionID string, maxAttempts int, interval time.Duration) (models.SubscriptionStatus, error)
	ConfirmPayment(ctx context.Context, owner int64, payment models.PaymentConfirmation) error
	GetPendingSubscription(ctx context.Context, owner int64) (*models.PendingSubscription, error)
	ClearPendingSubscription(ctx context.Context, owner int64) error
}

type SubscriptionOptions struct {
	PendingTTL   time.Duration
	PollAttempts int
	PollInterval time.Duration
	Now          func() time.Time
}

type subscriptionService struct {
	dev  device
	api  backend.API
	log  logger.ILogger
	opts SubscriptionOptions
}

func NewSubscriptionService(stg storage.IStorage, api backend.API, log logger.ILogger, opts SubscriptionOptions) SubscriptionService {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 24 * time.Hour
	}
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 5
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &subscriptionService{
		dev:  device{kv: stg.KV()},
		api:  api,
		log:  log,
		opts: opts,
	}
}

func (s *subscriptionService) ListPlans(ctx context.Context, owner int64) ([]models.Plan, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.api.Do(ctx, backend.Call{Method: http.MethodGet, Path: backend.PathSubscriptionPlans, Token: tok, Out: &raw}); err != nil {
		return nil, err
	}
	var body struct {
		Plans []models.Plan `json:"plans"`
	}
	data := unwrapData(raw)
	if err := json.Unmarshal(data, &body); err == nil && body.Plans != nil {
		return body.Plans, nil
	}
	var plans []models.Plan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	return plans, nil
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, owner int64, planID string) (*models.CreatedSubscription, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathSubscriptionCreate,
		Token:  tok,
		Body:   map[string]string{"plan_id": planID},
		Out:    &raw,
	})
	if err != nil {
		s.log.Error("create subscription failed", logger.Int64("owner_id", owner), logger.String("plan_id", planID), logger.Error(err))
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	var created models.CreatedSubscription
	if err := json.Unmarshal(unwrapData(raw), &created); err != nil {
		s.log.Warning("undecodable subscription response", logger.String("plan_id", planID), logger.Error(err))
	}
	if created.SubscriptionID == "" || created.RazorpayKey == "" {
		if msg := backend.MessageFromBody(raw); msg != "" {
			return nil, fmt.Errorf("%w: %w", ErrIncompleteSubscription, &backend.APIError{StatusCode: http.StatusOK, Message: msg})
		}
		return nil, ErrIncompleteSubscription
	}

	kv := s.dev.of(owner)
	writes := [][2]string{
		{keyPendingSubscriptionID, created.SubscriptionID},
		{keyPendingPlanID, planID},
		{keyPendingCreatedAt, s.opts.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, w := range writes {
		if err := kv.Set(ctx, w[0], w[1]); err != nil {
			// The checkout can still proceed; only resume is lost.
			s.log.Error("failed to persist pending subscription", logger.String("key", w[0]), logger.Error(err))
			break
		}
	}
	return &created, nil
}

func (s *subscriptionService) GetSubscriptionStatus(ctx context.Context, owner int64, subscriptionID string) (models.SubscriptionStatus, bool) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		s.log.Warning("subscription status without session", logger.Int64("owner_id", owner), logger.Error(err))
		return "", false
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, backend.Call{
		Method:     http.MethodGet,
		Path:       backend.PathSubscriptionStatus,
		PathParams: map[string]string{"id": subscriptionID},
		Token:      tok,
		Out:        &raw,
	})
	if err != nil {
		s.log.Error("get subscription status failed", logger.String("subscription_id", subscriptionID), logger.Error(err))
		return "", false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(unwrapData(raw), &body); err != nil || body.Status == "" {
		s.log.Error("subscription status missing in response", logger.String("subscription_id", subscriptionID))
		return "", false
	}
	return models.SubscriptionStatus(body.Status), true
}

func (s *subscriptionService) IsSubscriptionActive(ctx context.Context, owner int64, subscriptionID string) bool {
	status, ok := s.GetSubscriptionStatus(ctx, owner, subscriptionID)
	return ok && status == models.SubscriptionActive
}

func (s *subscriptionService) PollSubscriptionStatus(ctx context.Context, owner int64, subscriptionID string, maxAttempts int, interval time.Duration) (models.SubscriptionStatus, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.opts.PollAttempts
	}
	if interval <= 0 {
		interval = s.opts.PollInterval
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.SubscriptionPolls.WithLabelValues("cancelled_by_caller").Inc()
			return "", err
		}

		status, ok := s.GetSubscriptionStatus(ctx, owner, subscriptionID)
		if ok {
			switch status {
			case models.SubscriptionActive:
				if err := s.ClearPendingSubscription(ctx, owner); err != nil {
					s.log.Error("failed to clear pending subscription", logger.Error(err))
				}
				metrics.SubscriptionPolls.WithLabelValues(string(status)).Inc()
				return status, nil
			case models.SubscriptionHalted, models.SubscriptionCancelled:
				metrics.SubscriptionPolls.WithLabelValues(string(status)).Inc()
				return status, nil
			}
		}

		s.log.Debug("subscription not resolved yet",
			logger.String("subscription_id", subscriptionID),
			logger.Int("attempt", attempt),
			logger.String("status", string(status)),
		)
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			metrics.SubscriptionPolls.WithLabelValues("cancelled_by_caller").Inc()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	metrics.SubscriptionPolls.WithLabelValues("exhausted").Inc()
	return "", nil
}

func (s *subscriptionService) ConfirmPayment(ctx context.Context, owner int64, payment models.PaymentConfirmation) error {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return err
	}
	return s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathSubscriptionCapture,
		Token:  tok,
		Body:   payment,
	})
}

// GetPendingSubscription expires lazily: a stale record is deleted on read.
func (s *subscriptionService) GetPendingSubscription(ctx context.Context, owner int64) (*models.PendingSubscription, error) {
	kv := s.dev.of(owner)

	values := make(map[string]string, 3)
	for _, key := range []string{keyPendingSubscriptionID, keyPendingPlanID, keyPendingCreatedAt} {
		val, err := kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		values[key] = val
	}
	if len(values) == 0 {
		return nil, nil
	}

	createdAt, err := time.Parse(time.RFC3339Nano, values[keyPendingCreatedAt])
	pending := models.PendingSubscription{
		SubscriptionID: values[keyPendingSubscriptionID],
		PlanID:         values[keyPendingPlanID],
		CreatedAt:      createdAt,
	}
	if err != nil || pending.SubscriptionID == "" || pending.Expired(s.opts.Now(), s.opts.PendingTTL) {
		if err := s.ClearPendingSubscription(ctx, owner); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &pending, nil
}

func (s *subscriptionService) ClearPendingSubscription(ctx context.Context, owner int64) error {
	return s.dev.of(owner).Delete(ctx, keyPendingSubscriptionID, keyPendingPlanID, keyPendingCreatedAt)
}
