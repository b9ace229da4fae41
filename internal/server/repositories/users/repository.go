// Package users persists local accounts linked to identity-provider profiles.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// UpsertByKakaoID creates the user or refreshes its nickname and profile
	// image, and returns the stored row. Email is only set at signup. The
	// input is not modified.
	UpsertByKakaoID(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}
