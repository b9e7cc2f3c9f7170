package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"truckmitr/pkg/backend"
	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/storage"
	redisrepo "truckmitr/storage/redis"
)

const testOwner int64 = 4242

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func (m *memUsers) Save(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.OwnerID] = &cp
	return nil
}

func (m *memUsers) Get(_ context.Context, owner int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[owner]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetAll(_ context.Context) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memUsers) Delete(_ context.Context, owner int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, owner)
	return nil
}

type testStorage struct {
	kv    storage.IKeyValueStorage
	users *memUsers
}

func (s *testStorage) KV() storage.IKeyValueStorage { return s.kv }
func (s *testStorage) User() storage.IUserStorage   { return s.users }
func (s *testStorage) Close()                       {}

type testEnv struct {
	stg    *testStorage
	client *backend.Client
	log    logger.ILogger
}

// newTestEnv wires a miniredis-backed storage and a backend client pointed
// at h.
func newTestEnv(t *testing.T, h http.HandlerFunc) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	if h == nil {
		h = func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected backend call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	log := logger.NewNop()
	return &testEnv{
		stg: &testStorage{
			kv:    redisrepo.NewKVRepo(rdb, log),
			users: &memUsers{users: map[int64]*models.User{}},
		},
		client: backend.New(srv.URL, 5*time.Second, 0, log),
		log:    log,
	}
}

func (e *testEnv) device(owner int64) storage.IKeyValueStorage {
	return storage.Device(e.stg.kv, owner)
}

func (e *testEnv) login(t *testing.T, owner int64) {
	t.Helper()
	kv := e.device(owner)
	require.NoError(t, kv.Set(context.Background(), keyAuthToken, "tok"))
	require.NoError(t, kv.Set(context.Background(), keySessionActive, "true"))
}
