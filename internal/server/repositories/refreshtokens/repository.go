// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/server/models"
)

// Repository defines operations for issuing, retrieving, revoking and
// deleting refresh tokens. Every method touches rows independently; revocation
// is idempotent.
type Repository interface {
	// Create stores a new, non-revoked token and fills in ID and CreatedAt.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindActiveForUser returns the newest non-revoked token for userID that
	// has not expired at now. Ties on creation time go to the higher ID.
	// It returns common.ErrorNotFound when there is none.
	FindActiveForUser(ctx context.Context, userID int64, now time.Time) (*models.RefreshToken, error)

	// FindByToken looks up a non-revoked token by value. Revoked rows are
	// reported as common.ErrorNotFound.
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the token revoked. Unknown tokens are not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllForUser marks every non-revoked token of userID revoked and
	// returns how many rows changed.
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpiredForUser removes userID's rows whose expiry is before now.
	DeleteExpiredForUser(ctx context.Context, userID int64, now time.Time) error

	// DeleteExpired removes every row whose expiry is before now, revoked or
	// not, and returns how many rows were deleted.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
