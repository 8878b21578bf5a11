package datastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreybb/doorman/models"
)

const usersCollection = "users"

// userRecord is the persisted form of a user. The hashed password is
// stored on disk but excluded from models.User serialization, so the
// API boundary can never leak it; this record bridges the two.
type userRecord struct {
	Phone          string `json:"phone"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	HashedPassword string `json:"hashedPassword"`
	TOSAgreement   bool   `json:"tosAgreement"`
}

type UserRepository struct {
	store *FileStore
}

func NewUserRepository(store *FileStore) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.store.Create(ctx, usersCollection, user.Phone, toRecord(user)); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByPhone retrieves a user by phone number.
func (r *UserRepository) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	var rec userRecord
	if err := r.store.Read(ctx, usersCollection, phone, &rec); err != nil {
		return nil, err
	}
	return fromRecord(&rec), nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.store.Update(ctx, usersCollection, user.Phone, toRecord(user)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, phone string) error {
	if err := r.store.Delete(ctx, usersCollection, phone); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func toRecord(user *models.User) *userRecord {
	return &userRecord{
		Phone:          user.Phone,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		HashedPassword: user.HashedPassword,
		TOSAgreement:   user.TOSAgreement,
	}
}

func fromRecord(rec *userRecord) *models.User {
	return &models.User{
		Phone:          rec.Phone,
		FirstName:      rec.FirstName,
		LastName:       rec.LastName,
		HashedPassword: rec.HashedPassword,
		TOSAgreement:   rec.TOSAgreement,
	}
}
