// Package refreshtokens persists refresh-token records.
//
// Every adapter keys records by a digest of the token string; callers always
// pass the raw token. I/O failures, including context cancellation, are
// reported wrapped in common.ErrStoreUnavailable and never as a missing record.
package refreshtokens

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"golang.org/x/crypto/blake2b"
)

// Store is the refresh-token persistence contract.
type Store interface {
	// Save persists rt. A token string already present yields
	// common.ErrDuplicateToken.
	Save(ctx context.Context, rt *models.RefreshToken) error

	// FindByToken returns the record for token. found is false, with a nil
	// error, when no record exists.
	FindByToken(ctx context.Context, token string) (rt *models.RefreshToken, found bool, err error)

	// DeleteByToken removes the record for token. Absent records are not an error.
	DeleteByToken(ctx context.Context, token string) error

	// DeleteAllByUser removes every record of userID and returns how many
	// were removed.
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)

	// Rotate atomically removes oldToken and saves next. When oldToken is
	// already gone nothing is saved and common.ErrorNotFound is returned.
	Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) error
}

// Digest is the value stored in place of the token string.
func Digest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStoreUnavailable, err)
}
