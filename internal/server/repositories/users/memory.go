package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// MemoryRepository keeps users in process memory. Ids start at 1.
type MemoryRepository struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]models.User
	byKakao map[string]int64
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:  1,
		byID:    make(map[int64]models.User),
		byKakao: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *MemoryRepository) UpsertByKakaoID(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	id, ok := r.byKakao[user.KakaoID]
	stored := r.byID[id]
	if !ok {
		id = r.nextID
		r.nextID++
		r.byKakao[user.KakaoID] = id
		stored = models.User{ID: id, KakaoID: user.KakaoID, Email: user.Email, CreatedAt: now}
	}
	stored.Nickname = user.Nickname
	stored.ProfileImageURL = user.ProfileImageURL
	stored.UpdatedAt = now
	r.byID[id] = stored

	out := stored
	return &out, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}
