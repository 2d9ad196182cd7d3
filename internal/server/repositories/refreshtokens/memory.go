package refreshtokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// MemoryRepository keeps refresh tokens in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*models.RefreshToken
	now    func() time.Time
}

func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		rows: make(map[string]*models.RefreshToken),
		now:  now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[token.Token]; ok {
		return common.ErrorAlreadyExists
	}

	r.nextID++
	token.ID = r.nextID
	token.CreatedAt = r.now()
	token.IsRevoked = false

	stored := *token
	r.rows[token.Token] = &stored
	return nil
}

func (r *MemoryRepository) FindActiveForUser(ctx context.Context, userID int64, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *models.RefreshToken
	for _, t := range r.rows {
		if t.UserID != userID || !t.Active(now) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) ||
			(t.CreatedAt.Equal(best.CreatedAt) && t.ID > best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	out := *best
	return &out, nil
}

func (r *MemoryRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.rows[token]
	if !ok || t.IsRevoked {
		return nil, common.ErrorNotFound
	}
	out := *t
	return &out, nil
}

func (r *MemoryRepository) Revoke(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.rows[token]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (r *MemoryRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.rows {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, t := range r.rows {
		if t.UserID == userID && t.ExpiresAt.Before(now) {
			delete(r.rows, k)
		}
	}
	return nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, t := range r.rows {
		if t.ExpiresAt.Before(now) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

// All returns a snapshot of every stored row, revoked or not.
func (r *MemoryRepository) All() []models.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.RefreshToken, 0, len(r.rows))
	for _, t := range r.rows {
		out = append(out, *t)
	}
	return out
}

// Get returns the stored row for token regardless of its revoked flag.
func (r *MemoryRepository) Get(token string) (models.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.rows[token]
	if !ok {
		return models.RefreshToken{}, false
	}
	return *t, true
}
