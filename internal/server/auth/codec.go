// Package auth signs and verifies the access and refresh JWTs.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	ErrSignatureInvalid = errors.New("token signature is invalid")
	ErrMalformed        = errors.New("token is malformed")
	ErrExpired          = errors.New("token is expired")
	ErrTypeMismatch     = errors.New("token type mismatch")
)

// Claims is the payload carried by both token kinds. Email is set on access
// tokens only; refresh tokens carry a unique jti in RegisteredClaims.ID.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	Type   Kind   `json:"type"`
}

type keyConfig struct {
	secret []byte
	ttl    time.Duration
}

// Codec issues and verifies tokens. Each kind has its own secret so that a
// leaked access secret cannot forge refresh tokens.
type Codec struct {
	keys map[Kind]keyConfig
	now  func() time.Time
}

// NewCodec builds a Codec. now may be nil, in which case time.Now is used.
func NewCodec(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{
		keys: map[Kind]keyConfig{
			KindAccess:  {secret: accessSecret, ttl: accessTTL},
			KindRefresh: {secret: refreshSecret, ttl: refreshTTL},
		},
		now: now,
	}
}

// TTL returns the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	return c.keys[kind].ttl
}

// Issue stamps claims with the type tag, issued-at and expiry, and signs them
// with the secret of kind. It returns the token and its expiry.
func (c *Codec) Issue(claims Claims, kind Kind) (string, time.Time, error) {
	key, ok := c.keys[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}

	// jwt NumericDate has second precision
	now := c.now().Truncate(time.Second)
	exp := now.Add(key.ttl)

	claims.Type = kind
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, exp, nil
}

// IssueAccess mints an access token for the user.
func (c *Codec) IssueAccess(userID int64, email string) (string, time.Time, error) {
	return c.Issue(Claims{UserID: userID, Email: email}, KindAccess)
}

// IssueRefresh mints a refresh token with a fresh jti, so two tokens issued
// in the same second never collide.
func (c *Codec) IssueRefresh(userID int64) (string, time.Time, error) {
	claims := Claims{UserID: userID}
	claims.ID = uuid.NewString()
	return c.Issue(claims, KindRefresh)
}

// Verify checks the type tag, signature and expiry of token. The failure
// reasons are ErrTypeMismatch, ErrSignatureInvalid, ErrMalformed and
// ErrExpired; on ErrExpired the decoded claims are still returned.
func (c *Codec) Verify(token string, kind Kind) (*Claims, error) {
	key, ok := c.keys[kind]
	if !ok {
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}

	// the type tag is read before the signature so a token of the other kind
	// is reported as such even though it is signed with a different secret
	peek := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, peek); err != nil {
		return nil, ErrMalformed
	}
	if peek.Type != kind {
		return nil, ErrTypeMismatch
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key.secret, nil
	})
	switch {
	case err == nil && parsed.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return claims, ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	default:
		return nil, ErrSignatureInvalid
	}
}

// VerifyAccess verifies an access token.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.Verify(token, KindAccess)
}

// VerifyRefresh verifies a refresh token.
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return c.Verify(token, KindRefresh)
}
