package document

import (
	"context"

	"github.com/elijificent/experimentation/internal/domain"
	"github.com/elijificent/experimentation/internal/repository"
	"github.com/elijificent/experimentation/internal/store"
)

// Users is the user account repository.
type Users struct {
	base
}

// NewUsers constructs a user repository.
func NewUsers(st store.Store) *Users {
	return &Users{base{store: st}}
}

// Create inserts a user. Returns (nil, nil) when the supplied identity is
// already taken.
func (r *Users) Create(ctx context.Context, fields repository.Fields) (*domain.User, error) {
	doc, err := r.create(ctx, store.Users, fields, nil)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeUser(doc)
}

// Get fetches a user by identity.
func (r *Users) Get(ctx context.Context, id string) (*domain.User, error) {
	doc, err := r.get(ctx, store.Users, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

// Update patches the named user fields and returns the re-read entity.
func (r *Users) Update(ctx context.Context, id string, fields repository.Fields) (*domain.User, error) {
	doc, err := r.update(ctx, store.Users, id, fields)
	if err != nil || doc == nil {
		return nil, err
	}
	return decodeUser(doc)
}

// Delete removes a user.
func (r *Users) Delete(ctx context.Context, id string) (bool, error) {
	return r.store.Delete(ctx, store.Users, id)
}

// GetByUsername fetches a user by the unique username field.
func (r *Users) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	doc, found, err := r.store.Find(ctx, store.Users, "username", username)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, repository.ErrNotFound
	}
	return decodeUser(doc)
}

func decodeUser(doc store.Document) (*domain.User, error) {
	hash, err := docBytes(doc, "hashed_password")
	if err != nil {
		return nil, err
	}
	return &domain.User{
		ID:           docString(doc, "user_uuid"),
		Username:     docString(doc, "username"),
		PasswordHash: hash,
		Salt:         docString(doc, "random_salt"),
	}, nil
}
