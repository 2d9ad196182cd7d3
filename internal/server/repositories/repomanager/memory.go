package repomanager

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager serves in-process repositories. InTx runs fn
// directly; each repository call is atomic on its own but a failing fn does
// not undo earlier calls.
type MemoryRepositoryManager struct {
	users         *users.MemoryRepository
	refreshTokens *refreshtokens.MemoryRepository
}

func NewMemoryRepositoryManager(now func() time.Time) *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:         users.NewMemoryRepository(now),
		refreshTokens: refreshtokens.NewMemoryRepository(now),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error {
	return nil
}

func (m *MemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.refreshTokens
}

func (m *MemoryRepositoryManager) InTx(ctx context.Context, fn TxFunc) error {
	return fn(ctx, m.users, m.refreshTokens)
}

func (m *MemoryRepositoryManager) Close() error {
	return nil
}
