package service

import (
	"context"

	"truckmitr/config"
	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

type IServiceManager interface {
	Session() SessionService
	Subscription() SubscriptionService
	Verification() VerificationService
	Video() VideoService
	Quiz() QuizService
	Certificate() CertificateService
	Job() JobService
	Support() SupportService
}

type service struct {
	sessionService      SessionService
	subscriptionService SubscriptionService
	verificationService VerificationService
	videoService        VideoService
	quizService         QuizService
	certificateService  CertificateService
	jobService          JobService
	supportService      SupportService
}

type unauthorizedNotifier interface {
	OnUnauthorized(fn func(ctx context.Context))
}

func New(stg storage.IStorage, api backend.API, cfg config.Config, log logger.ILogger) IServiceManager {
	s := &service{
		sessionService: NewSessionService(stg, api, log),
		subscriptionService: NewSubscriptionService(stg, api, log, SubscriptionOptions{
			PendingTTL:   cfg.PendingSubscriptionTTL,
			PollAttempts: cfg.PollAttempts,
			PollInterval: cfg.PollInterval,
		}),
		verificationService: NewVerificationService(stg, api, log),
		videoService:        NewVideoService(stg, api, log, cfg.VideoProgressExclusive),
		quizService:         NewQuizService(stg, api, log),
		certificateService:  NewCertificateService(stg, api, log, cfg.CertificateDir),
		jobService:          NewJobService(stg, api, log),
		supportService:      NewSupportService(stg, api, log),
	}

	if n, ok := api.(unauthorizedNotifier); ok {
		n.OnUnauthorized(func(ctx context.Context) {
			owner, ok := backend.OwnerFrom(ctx)
			if !ok {
				return
			}
			log.Warning("global logout after 401", logger.Int64("owner_id", owner))
			// The request context may already be done; logout must still land.
			if err := s.sessionService.Logout(context.WithoutCancel(ctx), owner); err != nil {
				log.Error("global logout failed", logger.Int64("owner_id", owner), logger.Error(err))
			}
		})
	}
	return s
}

func (s *service) Session() SessionService           { return s.sessionService }
func (s *service) Subscription() SubscriptionService { return s.subscriptionService }
func (s *service) Verification() VerificationService { return s.verificationService }
func (s *service) Video() VideoService               { return s.videoService }
func (s *service) Quiz() QuizService                 { return s.quizService }
func (s *service) Certificate() CertificateService   { return s.certificateService }
func (s *service) Job() JobService                   { return s.jobService }
func (s *service) Support() SupportService           { return s.supportService }
