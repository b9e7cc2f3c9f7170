package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/storage"
)

type VideoService interface {
	Modules(ctx context.Context, owner int64) ([]models.VideoModule, error)
	SaveProgress(ctx context.Context, owner int64, videoID string, position float64) error
	// Progress reports ok=false when nothing was saved for the video.
	Progress(ctx context.Context, owner int64, videoID string) (float64, bool, error)
	Complete(ctx context.Context, owner int64, moduleID int64, videoID string) error
}

type videoService struct {
	dev       device
	api       backend.API
	log       logger.ILogger
	exclusive bool
}

// NewVideoService: with exclusive set, saving progress for one video drops
// the saved progress of every other video.
func NewVideoService(stg storage.IStorage, api backend.API, log logger.ILogger, exclusive bool) VideoService {
	return &videoService{dev: device{kv: stg.KV()}, api: api, log: log, exclusive: exclusive}
}

func (s *videoService) Modules(ctx context.Context, owner int64) ([]models.VideoModule, error) {
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := s.api.Do(ctx, backend.Call{Method: http.MethodGet, Path: backend.PathVideoModules, Token: tok, Out: &raw}); err != nil {
		return nil, err
	}
	data := unwrapData(raw)
	var wrapped struct {
		Modules []models.VideoModule `json:"modules"`
	}
	if json.Unmarshal(data, &wrapped) == nil && wrapped.Modules != nil {
		return wrapped.Modules, nil
	}
	var modules []models.VideoModule
	if err := json.Unmarshal(data, &modules); err != nil {
		return nil, fmt.Errorf("decode modules: %w", err)
	}
	return modules, nil
}

func (s *videoService) SaveProgress(ctx context.Context, owner int64, videoID string, position float64) error {
	kv := s.dev.of(owner)
	key := videoProgressPrefix + videoID

	if s.exclusive {
		keys, err := kv.Keys(ctx, videoProgressPrefix)
		if err != nil {
			return err
		}
		stale := make([]string, 0, len(keys))
		for _, k := range keys {
			if k != key {
				stale = append(stale, k)
			}
		}
		if err := kv.Delete(ctx, stale...); err != nil {
			return err
		}
	}
	return kv.Set(ctx, key, strconv.FormatFloat(position, 'f', 3, 64))
}

func (s *videoService) Progress(ctx context.Context, owner int64, videoID string) (float64, bool, error) {
	val, err := s.dev.of(owner).Get(ctx, videoProgressPrefix+videoID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	pos, err := strconv.ParseFloat(val, 64)
	if err != nil {
		s.log.Warning("corrupt video progress", logger.String("video_id", videoID), logger.String("value", val))
		return 0, false, nil
	}
	return pos, true, nil
}

func (s *videoService) Complete(ctx context.Context, owner int64, moduleID int64, videoID string) error {
	if err := s.dev.of(owner).Delete(ctx, videoProgressPrefix+videoID); err != nil {
		return err
	}
	ctx, tok, err := s.dev.authed(ctx, owner)
	if err != nil {
		return err
	}
	return s.api.Do(ctx, backend.Call{
		Method: http.MethodPost,
		Path:   backend.PathWatchActivity,
		Token:  tok,
		Body: map[string]any{
			"module_id": moduleID,
			"video_id":  videoID,
			"status":    "completed",
		},
	})
}
