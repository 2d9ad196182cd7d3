// Package tokens implements the refresh-token lifecycle: issuing paired
// access and refresh tokens, reusing or rotating the stored refresh token,
// revocation and expiry cleanup.
//
// A stored refresh token is ACTIVE (not revoked and not past expires_at),
// REVOKED (terminal, lingers until reaped) or gone (reaped). EXPIRED is never
// stored; it is derived from expires_at when the row is read.
//
// The Manager holds no per-user state. Its correctness rests on the store's
// per-row atomicity, so it is safe for concurrent use.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
)

// DefaultRotationThreshold is the remaining lifetime below which a refresh
// rotates the presented token.
const DefaultRotationThreshold = 24 * time.Hour

// Result is the outcome of a successful refresh.
type Result struct {
	Tokens  models.TokenPair
	User    models.UserSummary
	Rotated bool
}

// Manager drives refresh-token state transitions.
type Manager struct {
	users     users.Repository
	tokens    refreshtokens.Repository
	codec     *auth.Codec
	threshold time.Duration
	now       func() time.Time
	log       logging.Logger
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRotationThreshold overrides DefaultRotationThreshold.
func WithRotationThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.threshold = d
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func NewManager(u users.Repository, t refreshtokens.Repository, codec *auth.Codec, opts ...Option) *Manager {
	m := &Manager{
		users:     u,
		tokens:    t,
		codec:     codec,
		threshold: DefaultRotationThreshold,
		now:       time.Now,
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func internalErr(err error) error {
	return common.NewError(common.CodeInternal, "internal error", err)
}

const (
	msgInvalidToken = "invalid refresh token"
	msgExpiredToken = "refresh token expired"
	msgInactiveUser = "user not found or inactive"
)

// Issue returns a token pair for user. An ACTIVE refresh token is reused;
// otherwise the user's expired rows are deleted and a new token is stored.
// The access token is always freshly minted.
func (m *Manager) Issue(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	now := m.now()

	pair := &models.TokenPair{}

	active, err := m.tokens.FindActiveForUser(ctx, user.ID, now)
	switch {
	case err == nil:
		pair.RefreshToken = active.Token
		pair.RefreshExpiresAt = active.ExpiresAt
	case errors.Is(err, common.ErrorNotFound):
		if err := m.tokens.DeleteExpiredForUser(ctx, user.ID, now); err != nil {
			return nil, internalErr(err)
		}
		stored, err := m.mintRefresh(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		pair.RefreshToken = stored.Token
		pair.RefreshExpiresAt = stored.ExpiresAt
	default:
		return nil, internalErr(err)
	}

	access, accessExp, err := m.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, internalErr(err)
	}
	pair.AccessToken = access
	pair.AccessExpiresAt = accessExp

	return pair, nil
}

func (m *Manager) mintRefresh(ctx context.Context, userID int64) (*models.RefreshToken, error) {
	token, exp, err := m.codec.IssueRefresh(userID)
	if err != nil {
		return nil, internalErr(err)
	}
	rt := &models.RefreshToken{UserID: userID, Token: token, ExpiresAt: exp}
	if err := m.tokens.Create(ctx, rt); err != nil {
		return nil, internalErr(err)
	}
	return rt, nil
}

// Refresh exchanges a presented refresh token for a new access token. The
// refresh token is rotated only when less than the rotation threshold of its
// lifetime remains; otherwise the same value is handed back.
//
// Failures are coded InvalidToken (bad signature, wrong type, unknown or
// revoked), Expired (past expiry; the row is revoked), Forbidden (owner gone
// or inactive; the row is revoked) or Internal.
func (m *Manager) Refresh(ctx context.Context, presented string) (*Result, error) {
	claims, err := m.codec.VerifyRefresh(presented)
	if err != nil && !errors.Is(err, auth.ErrExpired) {
		return nil, common.NewError(common.CodeInvalidToken, msgInvalidToken, err)
	}
	codecExpired := err != nil

	stored, err := m.tokens.FindByToken(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.CodeInvalidToken, msgInvalidToken, err)
		}
		return nil, internalErr(err)
	}

	if claims.UserID != stored.UserID {
		return nil, common.NewError(common.CodeInvalidToken, msgInvalidToken, nil)
	}

	now := m.now()
	if codecExpired || !now.Before(stored.ExpiresAt) {
		if err := m.tokens.Revoke(ctx, presented); err != nil {
			return nil, internalErr(err)
		}
		m.log.Debug(ctx, "expired refresh token revoked", "user_id", stored.UserID, "token_id", stored.ID)
		return nil, common.NewError(common.CodeExpired, msgExpiredToken, nil)
	}

	user, err := m.users.GetUserByID(ctx, stored.UserID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, internalErr(err)
	}
	if err != nil || !user.IsActive {
		if err := m.tokens.Revoke(ctx, presented); err != nil {
			return nil, internalErr(err)
		}
		m.log.Info(ctx, "refresh token revoked for inactive user", "user_id", stored.UserID, "token_id", stored.ID)
		return nil, common.NewError(common.CodeForbidden, msgInactiveUser, nil)
	}

	access, accessExp, err := m.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, internalErr(err)
	}

	res := &Result{
		Tokens: models.TokenPair{
			AccessToken:      access,
			AccessExpiresAt:  accessExp,
			RefreshToken:     stored.Token,
			RefreshExpiresAt: stored.ExpiresAt,
		},
		User: user.Summary(),
	}

	if stored.ExpiresAt.Sub(now) < m.threshold {
		if err := m.tokens.Revoke(ctx, presented); err != nil {
			return nil, internalErr(err)
		}
		next, err := m.mintRefresh(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		res.Tokens.RefreshToken = next.Token
		res.Tokens.RefreshExpiresAt = next.ExpiresAt
		res.Rotated = true
		m.log.Debug(ctx, "refresh token rotated", "user_id", user.ID, "old_token_id", stored.ID, "new_token_id", next.ID)
	}

	return res, nil
}

// Revoke marks the presented token revoked. Unknown tokens are not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if err := m.tokens.Revoke(ctx, token); err != nil {
		return internalErr(err)
	}
	return nil
}

// RevokeAll revokes every ACTIVE token of the user and reports how many
// rows changed.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) (int64, error) {
	n, err := m.tokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, internalErr(err)
	}
	return n, nil
}

// Reap deletes every stored token whose expiry has passed, revoked or not.
func (m *Manager) Reap(ctx context.Context) (int64, error) {
	n, err := m.tokens.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, internalErr(err)
	}
	return n, nil
}
