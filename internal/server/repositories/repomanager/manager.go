// Package repomanager vends the repositories the server needs and runs
// multi-repository work atomically where the backend supports it.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// TxFunc receives repositories bound to one unit of work.
type TxFunc func(ctx context.Context, users users.Repository, tokens refreshtokens.Repository) error

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
	// InTx runs fn with repositories that commit or roll back together.
	InTx(ctx context.Context, fn TxFunc) error
	Close() error
}

// MemoryDSN selects the in-memory manager in New.
const MemoryDSN = "memory"

// New returns the in-memory manager for MemoryDSN and a PostgreSQL manager
// for anything else.
func New(dsn string) (RepositoryManager, error) {
	if dsn == MemoryDSN {
		return NewMemoryRepositoryManager(nil), nil
	}
	return NewPostgresRepositoryManager(dsn)
}
