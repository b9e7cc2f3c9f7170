package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/verification"
	"truckmitr/storage"
)

type VerificationService interface {
	Status(ctx context.Context, owner int64) (models.Verification, error)
}

type verificationService struct {
	dev device
	api backend.API
	log logger.ILogger
}

func NewVerificationService(stg storage.IStorage, api backend.API, log logger.ILogger) VerificationService {
	return &verificationService{dev: device{kv: stg.KV()}, api: api, log: log}
}

func (s *verificationService) Status(ctx context.Context, owner int64) (models.Verification, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return models.Verification{}, err
	}

	var raw json.RawMessage
	if err := s.api.Do(ctx, backend.Call{
		Method: http.MethodGet,
		Path:   backend.PathVerificationStatus,
		Token:  tok,
		Out:    &raw,
	}); err != nil {
		return models.Verification{}, err
	}

	var payload verification.Payload
	if err := json.Unmarshal(unwrapData(raw), &payload); err != nil {
		return models.Verification{}, fmt.Errorf("decode verification status: %w", err)
	}
	v := verification.Normalize(payload)
	s.log.Debug("verification status",
		logger.Int64("owner_id", owner),
		logger.String("overall", string(v.Overall)),
		logger.Bool("server_overall", v.ServerOverall),
	)
	return v, nil
}
