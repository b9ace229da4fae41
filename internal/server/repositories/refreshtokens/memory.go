package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. A single mutex serializes
// every operation, which makes Rotate atomic.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]models.RefreshToken
	byUser map[string]map[string]struct{}
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash: make(map[string]models.RefreshToken),
		byUser: make(map[string]map[string]struct{}),
		now:    time.Now,
	}
}

func (s *MemoryStore) Save(ctx context.Context, rt *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(rt)
}

func (s *MemoryStore) saveLocked(rt *models.RefreshToken) error {
	h := Digest(rt.Token)
	if _, ok := s.byHash[h]; ok {
		return common.ErrDuplicateToken
	}
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = s.now()
	}

	s.byHash[h] = *rt
	set, ok := s.byUser[rt.UserID]
	if !ok {
		set = make(map[string]struct{})
		s.byUser[rt.UserID] = set
	}
	set[h] = struct{}{}
	return nil
}

func (s *MemoryStore) FindByToken(ctx context.Context, token string) (*models.RefreshToken, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byHash[Digest(token)]
	if !ok {
		return nil, false, nil
	}
	return &rt, true, nil
}

func (s *MemoryStore) DeleteByToken(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(Digest(token))
	return nil
}

func (s *MemoryStore) deleteLocked(h string) bool {
	rt, ok := s.byHash[h]
	if !ok {
		return false
	}
	delete(s.byHash, h)
	if set, ok := s.byUser[rt.UserID]; ok {
		delete(set, h)
		if len(set) == 0 {
			delete(s.byUser, rt.UserID)
		}
	}
	return true
}

func (s *MemoryStore) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.byUser[userID]
	for h := range set {
		delete(s.byHash, h)
	}
	delete(s.byUser, userID)
	return int64(len(set)), nil
}

func (s *MemoryStore) Rotate(ctx context.Context, oldToken string, next *models.RefreshToken) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldHash := Digest(oldToken)
	if _, ok := s.byHash[oldHash]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := s.byHash[Digest(next.Token)]; ok {
		return common.ErrDuplicateToken
	}

	s.deleteLocked(oldHash)
	return s.saveLocked(next)
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}
