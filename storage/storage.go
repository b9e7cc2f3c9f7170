package storage

import (
	"context"
	"errors"

	"truckmitr/pkg/models"
)

var ErrNotFound = errors.New("storage: not found")

type IStorage interface {
	KV() IKeyValueStorage
	User() IUserStorage
	Close()
}

// IKeyValueStorage is the device-local persistence the mobile client kept:
// auth token, session flag, pending subscription and watch progress.
// Writes are last-write-wins per key.
type IKeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type IUserStorage interface {
	Save(ctx context.Context, user *models.User) error
	Get(ctx context.Context, ownerID int64) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, ownerID int64) error
}

type composite struct {
	IStorage
	kv IKeyValueStorage
}

func (c composite) KV() IKeyValueStorage { return c.kv }

// WithKV keeps base for everything except key-value persistence.
func WithKV(base IStorage, kv IKeyValueStorage) IStorage {
	return composite{IStorage: base, kv: kv}
}
