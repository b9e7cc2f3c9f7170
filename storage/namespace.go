package storage

import (
	"context"
	"strconv"
	"strings"
)

type namespaced struct {
	kv     IKeyValueStorage
	prefix string
}

// Device scopes kv to one chat owner, the way each phone had its own storage.
func Device(kv IKeyValueStorage, ownerID int64) IKeyValueStorage {
	return namespaced{kv: kv, prefix: "u:" + strconv.FormatInt(ownerID, 10) + ":"}
}

func (n namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n namespaced) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = n.prefix + k
	}
	return n.kv.Delete(ctx, full...)
}

func (n namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.kv.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}
