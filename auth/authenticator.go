// Package auth implements the session token lifecycle: issuing tokens
// against stored credentials, validating them for a claimed owner, and
// extending or revoking them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreybb/doorman/datastore"
	"github.com/coreybb/doorman/models"
	"github.com/coreybb/doorman/webutil"
)

const (
	// TokenIDLength is the fixed length of generated token identifiers.
	TokenIDLength = 20

	// DefaultTokenTTL is how long a freshly issued or extended token
	// remains valid.
	DefaultTokenTTL = time.Hour
)

var (
	// ErrUserNotFound is returned by Issue when no user exists for the phone.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned by Issue on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenExpired is returned by Extend when the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

type Authenticator struct {
	users  *datastore.UserRepository
	tokens *datastore.TokenRepository
	hasher webutil.PasswordHasher
	ttl    time.Duration
	now    func() time.Time // injectable clock for expiry tests
}

func NewAuthenticator(users *datastore.UserRepository, tokens *datastore.TokenRepository, hasher webutil.PasswordHasher, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue checks the password against the stored digest for phone and, on
// a match, persists and returns a fresh token expiring one TTL from now.
func (a *Authenticator) Issue(ctx context.Context, phone, password string) (*models.Token, error) {
	user, err := a.users.GetUserByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user %s: %w", phone, err)
	}

	if !a.hasher.Compare(user.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}

	id, err := webutil.GenerateRandomString(TokenIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}

	token := &models.Token{
		ID:      id,
		Phone:   phone,
		Expires: a.now().Add(a.ttl).UnixMilli(),
	}
	if err := a.tokens.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// Verify reports whether tokenID names an existing, unexpired token
// bound to phone. It is a predicate: lookup failures read as invalid.
func (a *Authenticator) Verify(ctx context.Context, tokenID, phone string) bool {
	if tokenID == "" {
		return false
	}
	token, err := a.tokens.GetTokenByID(ctx, tokenID)
	if err != nil {
		return false
	}
	return token.Phone == phone && !token.ExpiredAt(a.now())
}

// Extend resets an unexpired token's expiry to one TTL from now.
// An expired token cannot be extended and is left unmodified.
func (a *Authenticator) Extend(ctx context.Context, tokenID string) error {
	token, err := a.tokens.GetTokenByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.ExpiredAt(a.now()) {
		return ErrTokenExpired
	}

	token.Expires = a.now().Add(a.ttl).UnixMilli()
	if err := a.tokens.UpdateToken(ctx, token); err != nil {
		return fmt.Errorf("failed to store extended token: %w", err)
	}
	return nil
}

// Revoke deletes a token. Deleting an absent token reports
// datastore.ErrNotFound.
func (a *Authenticator) Revoke(ctx context.Context, tokenID string) error {
	return a.tokens.DeleteToken(ctx, tokenID)
}

// WithClock replaces the time source. Intended for tests.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}
