package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truckmitr/pkg/logger"
	"truckmitr/pkg/models"
	"truckmitr/storage"
)

const userColumns = `owner_id, backend_id, unique_id, name, mobile, email, role, profile_completion, rating, subscription, updated_at`

type userRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewUserRepo(db *pgxpool.Pool, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

func (r *userRepo) Save(ctx context.Context, user *models.User) error {
	var sub []byte
	if user.Subscription != nil {
		var err error
		if sub, err = json.Marshal(user.Subscription); err != nil {
			return err
		}
	}
	query := `
		INSERT INTO users (owner_id, backend_id, unique_id, name, mobile, email, role, profile_completion, rating, subscription)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id) DO UPDATE
		SET backend_id = EXCLUDED.backend_id,
			unique_id = EXCLUDED.unique_id,
			name = EXCLUDED.name,
			mobile = EXCLUDED.mobile,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			profile_completion = EXCLUDED.profile_completion,
			rating = EXCLUDED.rating,
			subscription = EXCLUDED.subscription,
			updated_at = NOW()
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.OwnerID, user.ID, user.UniqueID, user.Name, user.Mobile, user.Email,
		user.Role, user.ProfileCompletion, user.Rating, sub,
	).Scan(&user.UpdatedAt)
	if err != nil {
		r.log.Error("failed to save user", logger.Int64("owner_id", user.OwnerID), logger.Error(err))
		return err
	}
	return nil
}

func (r *userRepo) Get(ctx context.Context, ownerID int64) (*models.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE owner_id = $1`, ownerID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get user", logger.Int64("owner_id", ownerID), logger.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *userRepo) GetAll(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY owner_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) Delete(ctx context.Context, ownerID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE owner_id = $1`, ownerID)
	return err
}

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u   models.User
		sub []byte
	)
	err := row.Scan(
		&u.OwnerID, &u.ID, &u.UniqueID, &u.Name, &u.Mobile, &u.Email,
		&u.Role, &u.ProfileCompletion, &u.Rating, &sub, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(sub) > 0 {
		var detail models.SubscriptionDetail
		if err := json.Unmarshal(sub, &detail); err == nil {
			u.Subscription = &detail
		}
	}
	return &u, nil
}
