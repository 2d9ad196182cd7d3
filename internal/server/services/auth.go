// Package services contains server-side business logic. This file implements
// Service, which handles registration, login, token refresh, logout and the
// account administration used by authctl.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
	"github.com/dmitrijs2005/tokenkeeper/internal/cryptox"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/auth"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/tokens"
)

// AuthResult is the success payload of register, login and refresh.
type AuthResult struct {
	User   models.UserSummary
	Tokens models.TokenPair
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Service orchestrates the auth flows. It is the only place that combines
// credential store reads with lifecycle manager calls.
type Service struct {
	repos  repomanager.RepositoryManager
	tokens *tokens.Manager
	codec  *auth.Codec
	hasher cryptox.PasswordHasher
	log    logging.Logger
}

// NewService constructs a Service.
func NewService(repos repomanager.RepositoryManager, mgr *tokens.Manager, codec *auth.Codec,
	hasher cryptox.PasswordHasher, log logging.Logger) *Service {
	return &Service{
		repos:  repos,
		tokens: mgr,
		codec:  codec,
		hasher: hasher,
		log:    log,
	}
}

func internalErr(err error) error {
	return common.NewError(common.CodeInternal, "internal error", err)
}

// passthrough keeps coded errors from the lifecycle manager and wraps
// anything else as Internal.
func passthrough(err error) error {
	var coded *common.Error
	if errors.As(err, &coded) {
		return err
	}
	return internalErr(err)
}

// Register creates an account and issues its first token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	usersRepo := s.repos.Users()

	_, err := usersRepo.GetUserByEmail(ctx, in.Email)
	if err == nil {
		return nil, common.NewError(common.CodeConflict, "user with this email already exists", nil)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, internalErr(err)
	}

	hash, err := s.hasher.Hash([]byte(in.Password))
	if err != nil {
		if errors.Is(err, cryptox.ErrPasswordTooLong) {
			return nil, common.NewError(common.CodeInvalidInput, "password is too long", err)
		}
		return nil, internalErr(err)
	}

	user, err := usersRepo.Create(ctx, &models.User{Name: in.Name, Email: in.Email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewError(common.CodeConflict, "user with this email already exists", err)
		}
		return nil, internalErr(err)
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, passthrough(err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &AuthResult{User: user.Summary(), Tokens: *pair}, nil
}

// Login verifies credentials and returns a token pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repos.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.CodeInvalidCredentials, "invalid email or password", nil)
		}
		return nil, internalErr(err)
	}

	if err := s.hasher.Verify(user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, cryptox.ErrMismatch) {
			return nil, common.NewError(common.CodeInvalidCredentials, "invalid email or password", nil)
		}
		return nil, internalErr(err)
	}

	if !user.IsActive {
		return nil, common.NewError(common.CodeForbidden, "account is deactivated", nil)
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, passthrough(err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{User: user.Summary(), Tokens: *pair}, nil
}

// Refresh exchanges a refresh token for a new access token and possibly a
// rotated refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, common.NewError(common.CodeInvalidToken, "refresh token not provided", nil)
	}

	res, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		if common.Is(err, common.CodeInternal) {
			s.log.Error(ctx, "refresh failed", "error", err)
		}
		return nil, passthrough(err)
	}

	return &AuthResult{User: res.User, Tokens: res.Tokens}, nil
}

// Logout revokes the presented refresh token. It never fails from the
// caller's point of view; store errors are only logged.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		s.log.Warn(ctx, "logout: revoke failed", "error", err)
	}
}

// LogoutAll revokes every active refresh token of the user. Store errors are
// only logged.
func (s *Service) LogoutAll(ctx context.Context, userID int64) {
	n, err := s.tokens.RevokeAll(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "logout-all: revoke failed", "user_id", userID, "error", err)
		return
	}
	s.log.Info(ctx, "user logged out everywhere", "user_id", userID, "revoked", n)
}

// Authenticate verifies an access token and loads its user. Missing users are
// NotFound, inactive ones Forbidden.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, common.NewError(common.CodeInvalidToken, "access token not provided", nil)
	}

	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return nil, common.NewError(common.CodeExpired, "access token expired", err)
		}
		return nil, common.NewError(common.CodeInvalidToken, "invalid access token", err)
	}

	user, err := s.repos.Users().GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.CodeNotFound, "user not found", err)
		}
		return nil, internalErr(err)
	}
	if !user.IsActive {
		return nil, common.NewError(common.CodeForbidden, "account is deactivated", nil)
	}

	return user, nil
}

// Profile returns the public view of a user.
func (s *Service) Profile(ctx context.Context, userID int64) (*models.UserSummary, error) {
	user, err := s.repos.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.CodeNotFound, "user not found", err)
		}
		return nil, internalErr(err)
	}
	summary := user.Summary()
	return &summary, nil
}

// SetActive activates or deactivates the account with the given email.
// Deactivation revokes all of the user's refresh tokens in the same unit of
// work; outstanding access tokens die with the next Authenticate.
func (s *Service) SetActive(ctx context.Context, email string, active bool) (*models.UserSummary, error) {
	user, err := s.repos.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.CodeNotFound, "user not found", err)
		}
		return nil, internalErr(err)
	}

	err = s.repos.InTx(ctx, func(ctx context.Context, ur users.Repository, rt refreshtokens.Repository) error {
		if err := ur.SetActive(ctx, user.ID, active); err != nil {
			return err
		}
		if active {
			return nil
		}
		_, err := rt.RevokeAllForUser(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, internalErr(err)
	}

	user.IsActive = active
	s.log.Info(ctx, "user activation changed", "user_id", user.ID, "active", active)
	summary := user.Summary()
	return &summary, nil
}

// RevokeAllByEmail revokes every active refresh token of the account with the
// given email and reports how many were revoked.
func (s *Service) RevokeAllByEmail(ctx context.Context, email string) (int64, error) {
	user, err := s.repos.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.NewError(common.CodeNotFound, "user not found", err)
		}
		return 0, internalErr(err)
	}

	n, err := s.tokens.RevokeAll(ctx, user.ID)
	if err != nil {
		return 0, passthrough(err)
	}
	s.log.Info(ctx, "refresh tokens revoked by admin", "user_id", user.ID, "revoked", n)
	return n, nil
}

// Reap runs one expired-token sweep.
func (s *Service) Reap(ctx context.Context) (int64, error) {
	n, err := s.tokens.Reap(ctx)
	if err != nil {
		return 0, passthrough(err)
	}
	return n, nil
}
