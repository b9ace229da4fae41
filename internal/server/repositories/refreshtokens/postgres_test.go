package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ     = `(?s)^INSERT\s+INTO\s+refresh_tokens\s+\(id,\s*token_hash,\s*user_id,\s*expires_at,\s*created_at\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	selectQ     = `(?s)^SELECT\s+id,\s*user_id,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	deleteQ     = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	deleteUserQ = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	rotateQ     = `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+RETURNING\s+id\s*$`
)

func newStoreWithMock(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newStoreWithMock(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectExec(insertQ).
		WithArgs(sqlmock.AnyArg(), Digest("tok"), "42", exp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rt := &models.RefreshToken{Token: "tok", UserID: "42", ExpiresAt: exp}
	require.NoError(t, s.Save(context.Background(), rt))
	assert.NotEmpty(t, rt.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveDuplicate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(insertQ).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := s.Save(context.Background(), &models.RefreshToken{Token: "tok", UserID: "42"})
	require.ErrorIs(t, err, common.ErrDuplicateToken)
}

func TestPostgresStore_SaveDBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := s.Save(context.Background(), &models.RefreshToken{Token: "tok", UserID: "42"})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgresStore_FindByToken(t *testing.T) {
	s, mock := newStoreWithMock(t)
	exp := time.Now().Add(time.Hour)
	created := time.Now()

	mock.ExpectQuery(selectQ).
		WithArgs(Digest("tok")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "expires_at", "created_at"}).
			AddRow("id-1", "42", exp, created))

	got, found, err := s.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, "42", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(exp))
}

func TestPostgresStore_FindByTokenMissing(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectQ).WithArgs(Digest("missing")).WillReturnError(sql.ErrNoRows)

	got, found, err := s.FindByToken(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestPostgresStore_FindByTokenTimeout(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(selectQ).WillReturnError(context.DeadlineExceeded)

	_, found, err := s.FindByToken(context.Background(), "tok")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, found)
}

func TestPostgresStore_DeleteByToken(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(deleteQ).WithArgs(Digest("tok")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, s.DeleteByToken(context.Background(), "tok"))

	mock.ExpectExec(deleteQ).WithArgs(Digest("tok")).WillReturnError(errors.New("db err"))
	require.ErrorIs(t, s.DeleteByToken(context.Background(), "tok"), common.ErrStoreUnavailable)
}

func TestPostgresStore_DeleteAllByUser(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(deleteUserQ).WithArgs("42").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteAllByUser(context.Background(), "42")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestPostgresStore_Rotate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(rotateQ).
		WithArgs(Digest("old")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-old"))
	mock.ExpectExec(insertQ).
		WithArgs(sqlmock.AnyArg(), Digest("new"), "42", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Rotate(context.Background(), "old", &models.RefreshToken{Token: "new", UserID: "42", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RotateLostRace(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(rotateQ).
		WithArgs(Digest("old")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := s.Rotate(context.Background(), "old", &models.RefreshToken{Token: "new", UserID: "42"})
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RotateInsertFails(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(rotateQ).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-old"))
	mock.ExpectExec(insertQ).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Rotate(context.Background(), "old", &models.RefreshToken{Token: "new", UserID: "42"})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RotateBeginFails(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	err := s.Rotate(context.Background(), "old", &models.RefreshToken{Token: "new", UserID: "42"})
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}
