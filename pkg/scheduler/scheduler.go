// Package scheduler runs the periodic reconcile of checkouts that were left
// pending, e.g. when a user closed the payment page without returning.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/metrics"
	"truckmitr/pkg/models"
	"truckmitr/service"
	"truckmitr/storage"
)

// Notifier is told when a sweep resolves a pending subscription.
type Notifier interface {
	SubscriptionResolved(ownerID int64, status models.SubscriptionStatus)
}

type Scheduler struct {
	cron     *cron.Cron
	users    storage.IUserStorage
	services service.IServiceManager
	notifier Notifier
	log      logger.ILogger
}

func New(users storage.IUserStorage, services service.IServiceManager, notifier Notifier, log logger.ILogger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		users:    users,
		services: services,
		notifier: notifier,
		log:      log,
	}
}

// Start registers the sweep under spec ("@hourly", "*/10 * * * *", ...).
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.SweepPending(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("pending subscription sweep scheduled", logger.String("spec", spec))
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepPending checks every known user's pending checkout once. Expired
// records are dropped by the read itself.
func (s *Scheduler) SweepPending(ctx context.Context) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		s.log.Error("sweep: list users", logger.Error(err))
		return
	}

	subs := s.services.Subscription()
	open := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		pending, err := subs.GetPendingSubscription(ctx, u.OwnerID)
		if err != nil {
			s.log.Error("sweep: read pending", logger.Int64("owner_id", u.OwnerID), logger.Error(err))
			continue
		}
		if pending == nil {
			continue
		}

		status, ok := subs.GetSubscriptionStatus(ctx, u.OwnerID, pending.SubscriptionID)
		if !ok || !status.Resolved() {
			open++
			continue
		}
		if err := subs.ClearPendingSubscription(ctx, u.OwnerID); err != nil {
			s.log.Error("sweep: clear pending", logger.Int64("owner_id", u.OwnerID), logger.Error(err))
		}
		if status == models.SubscriptionActive {
			if _, err := s.services.Session().RefreshProfile(ctx, u.OwnerID); err != nil {
				s.log.Warning("sweep: refresh profile", logger.Int64("owner_id", u.OwnerID), logger.Error(err))
			}
		}
		s.log.Info("sweep: pending subscription resolved",
			logger.Int64("owner_id", u.OwnerID),
			logger.String("subscription_id", pending.SubscriptionID),
			logger.String("status", string(status)),
		)
		if s.notifier != nil {
			s.notifier.SubscriptionResolved(u.OwnerID, status)
		}
	}
	metrics.UnresolvedSubscriptions.Set(float64(open))
}

type cronLogger struct {
	log logger.ILogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, logger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, logger.Error(err), logger.Any("details", keysAndValues))
}
