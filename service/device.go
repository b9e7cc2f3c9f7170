package service

import (
	"context"
	"encoding/json"
	"errors"

	"truckmitr/pkg/backend"
	"truckmitr/storage"
)

// Keys of the per-owner device storage.
const (
	keyAuthToken     = "auth_token"
	keySessionActive = "session_active"

	keyPendingSubscriptionID = "pending_subscription_id"
	keyPendingPlanID         = "pending_plan_id"
	keyPendingCreatedAt      = "pending_subscription_created_at"

	keyJobDraft = "job_draft"

	videoProgressPrefix = "video_progress_"
)

var ErrNotAuthenticated = errors.New("not logged in")

type device struct {
	kv storage.IKeyValueStorage
}

func (d device) of(owner int64) storage.IKeyValueStorage {
	return storage.Device(d.kv, owner)
}

func (d device) token(ctx context.Context, owner int64) (string, error) {
	tok, err := d.of(owner).Get(ctx, keyAuthToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotAuthenticated
		}
		return "", err
	}
	if tok == "" {
		return "", ErrNotAuthenticated
	}
	return tok, nil
}

// authed prepares an owner-tagged context and the bearer token for a call.
func (d device) authed(ctx context.Context, owner int64) (context.Context, string, error) {
	tok, err := d.token(ctx, owner)
	if err != nil {
		return ctx, "", err
	}
	return backend.WithOwner(ctx, owner), tok, nil
}

// unwrapData returns the "data" member when the backend wrapped its payload.
func unwrapData(raw json.RawMessage) json.RawMessage {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data
	}
	return raw
}
