package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmitr/config"
	"truckmitr/pkg/logger"
	"truckmitr/storage"
)

type Store struct {
	pool *pgxpool.Pool
	log  logger.ILogger
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := cfg.PostgresURL()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	cwd, _ := os.Getwd()
	if err := migrateUp(url, filepath.Join(cwd, "migrations", "postgres"), log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	return &Store{
		pool: pool,
		log:  log,
	}, nil
}

func migrateUp(url, mPath string, log logger.ILogger) error {
	m, err := migrate.New("file://"+mPath, url)
	if err != nil {
		log.Warning("migration init error or no migrations found", logger.Error(err))
		return nil
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) GetPool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) KV() storage.IKeyValueStorage { return NewKVRepo(s.pool, s.log) }
func (s *Store) User() storage.IUserStorage   { return NewUserRepo(s.pool, s.log) }
