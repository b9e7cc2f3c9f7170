package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/pkg/validate"
	"truckmitr/storage"
)

type QuizService interface {
	Submit(ctx context.Context, owner int64, moduleID int64, answers []models.QuizAnswer) (*models.QuizResult, error)
}

type quizService struct {
	dev device
	api backend.API
	log logger.ILogger
}

func NewQuizService(stg storage.IStorage, api backend.API, log logger.ILogger) QuizService {
	return &quizService{dev: device{kv: stg.KV()}, api: api, log: log}
}

// Submit sends answers for scoring; scoring itself is the backend's.
func (s *quizService) Submit(ctx context.Context, owner int64, moduleID int64, answers []models.QuizAnswer) (*models.QuizResult, error) {
	if len(answers) == 0 {
		return nil, validate.Errors{"answers": "is required"}
	}
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	err = s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathQuizSubmit,
		Token:  tok,
		Body:   map[string]any{"module_id": moduleID, "answers": answers},
		Out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	var result models.QuizResult
	if err := json.Unmarshal(unwrapData(raw), &result); err != nil {
		return nil, fmt.Errorf("decode quiz result: %w", err)
	}
	s.log.Info("quiz submitted",
		logger.Int64("owner_id", owner),
		logger.Int64("module_id", moduleID),
		logger.Int("score", result.Score),
		logger.Bool("passed", result.Passed),
	)
	return &result, nil
}
