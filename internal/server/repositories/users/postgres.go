package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertByKakaoID(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (kakao_id, email, nickname, profile_image_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (kakao_id) DO UPDATE
		 SET nickname = EXCLUDED.nickname,
		     profile_image_url = EXCLUDED.profile_image_url,
		     updated_at = now()
		 RETURNING id, kakao_id, email, nickname, profile_image_url, created_at, updated_at
		 `

	stored := &models.User{}
	err := r.db.QueryRowContext(ctx, query,
		user.KakaoID, user.Email, user.Nickname, user.ProfileImageURL).
		Scan(&stored.ID, &stored.KakaoID, &stored.Email, &stored.Nickname,
			&stored.ProfileImageURL, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return stored, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT id, kakao_id, email, nickname, profile_image_url, created_at, updated_at
		 FROM users
		 WHERE id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.KakaoID, &user.Email, &user.Nickname,
			&user.ProfileImageURL, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
