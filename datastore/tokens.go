package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreybb/doorman/models"
)

const tokensCollection = "tokens"

type TokenRepository struct {
	store *FileStore
}

func NewTokenRepository(store *FileStore) *TokenRepository {
	return &TokenRepository{store: store}
}

func (r *TokenRepository) CreateToken(ctx context.Context, token *models.Token) error {
	if err := r.store.Create(ctx, tokensCollection, token.ID, token); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// GetTokenByID retrieves a token by its identifier.
func (r *TokenRepository) GetTokenByID(ctx context.Context, id string) (*models.Token, error) {
	var token models.Token
	if err := r.store.Read(ctx, tokensCollection, id, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *TokenRepository) UpdateToken(ctx context.Context, token *models.Token) error {
	if err := r.store.Update(ctx, tokensCollection, token.ID, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteToken(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, tokensCollection, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// ListTokenIDs returns the ids of all persisted tokens, expired or not.
func (r *TokenRepository) ListTokenIDs(ctx context.Context) ([]string, error) {
	ids, err := r.store.List(ctx, tokensCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return ids, nil
}
