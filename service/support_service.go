package service

import (
	"context"
	"net/http"
	"strings"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

type SupportService interface {
	RequestCallback(ctx context.Context, owner int64, reason string) error
}

type supportService struct {
	dev device
	api backend.API
	log logger.ILogger
}

func NewSupportService(stg storage.IStorage, api backend.API, log logger.ILogger) SupportService {
	return &supportService{dev: device{kv: stg.KV()}, api: api, log: log}
}

func (s *supportService) RequestCallback(ctx context.Context, owner int64, reason string) error {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "general"
	}
	return s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathCallbackRequest,
		Token:  tok,
		Body:   map[string]string{"reason": reason},
	})
}
