package repomanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryManager_SharesState(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepositoryManager(nil)
	require.NoError(t, m.RunMigrations(ctx))

	u, err := m.Users().Create(ctx, &models.User{Email: "a@b.c"})
	require.NoError(t, err)
	require.NoError(t, m.RefreshTokens().Create(ctx, &models.RefreshToken{UserID: u.ID, Token: "t", ExpiresAt: time.Now().Add(time.Hour)}))

	err = m.InTx(ctx, func(ctx context.Context, ur users.Repository, rt refreshtokens.Repository) error {
		if err := ur.SetActive(ctx, u.ID, false); err != nil {
			return err
		}
		n, err := rt.RevokeAllForUser(ctx, u.ID)
		assert.Equal(t, int64(1), n)
		return err
	})
	require.NoError(t, err)

	got, err := m.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	sentinel := errors.New("stop")
	err = m.InTx(ctx, func(context.Context, users.Repository, refreshtokens.Repository) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, m.Close())
}
