package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store over dbx.DBTX. When the handle can begin
// transactions (*sql.DB), Rotate runs in its own transaction; otherwise it
// joins the caller's.
type PostgresStore struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresStore(db dbx.DBTX) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (r *PostgresStore) Save(ctx context.Context, rt *models.RefreshToken) error {
	return r.insert(ctx, r.db, rt)
}

func (r *PostgresStore) insert(ctx context.Context, db dbx.DBTX, rt *models.RefreshToken) error {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = r.now()
	}

	query := `
		INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.ExecContext(ctx, query, rt.ID, Digest(rt.Token), rt.UserID, rt.ExpiresAt, rt.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrDuplicateToken
		}
		return unavailable(err)
	}
	return nil
}

func (r *PostgresStore) FindByToken(ctx context.Context, token string) (*models.RefreshToken, bool, error) {
	query := `
		SELECT id, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	rt := &models.RefreshToken{Token: token}
	err := r.db.QueryRowContext(ctx, query, Digest(token)).Scan(&rt.ID, &rt.UserID, &rt.ExpiresAt, &rt.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, unavailable(err)
	}
	return rt, true, nil
}

func (r *PostgresStore) DeleteByToken(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token_hash = $1
	`
	if _, err := r.db.ExecContext(ctx, query, Digest(token)); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *PostgresStore) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Rotate relies on DELETE ... RETURNING taking the row lock: of two
// concurrent rotations of the same token only one sees the row.
func (r *PostgresStore) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) error {
	rotate := func(ctx context.Context, tx dbx.DBTX) error {
		query := `
			DELETE FROM refresh_tokens
			WHERE token_hash = $1
			RETURNING id
		`
		var id string
		if err := tx.QueryRowContext(ctx, query, Digest(oldToken)).Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorNotFound
			}
			return unavailable(err)
		}
		return r.insert(ctx, tx, next)
	}

	b, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return rotate(ctx, r.db)
	}

	err := dbx.WithTx(ctx, b, nil, rotate)
	if err != nil && !errors.Is(err, common.ErrorNotFound) &&
		!errors.Is(err, common.ErrDuplicateToken) && !errors.Is(err, common.ErrStoreUnavailable) {
		return unavailable(err)
	}
	return err
}
