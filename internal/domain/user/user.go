// Package user manages guest shoppers identified by a client-generated key.
package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/swag-store/internal/validation"
)

// User is a guest shopper.
type User struct {
	Key       string    `json:"user_key" validate:"required,uuid"`
	Name      string    `json:"name" validate:"required,min=1,max=50"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists users.
type Repository interface {
	// Upsert creates the user or refreshes the name of an existing one, and
	// fills CreatedAt from storage.
	Upsert(ctx context.Context, u *User) error
}

// Service registers guests.
type Service struct {
	repo Repository
}

// NewService creates a user Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Guest validates and upserts a guest user. Surrounding whitespace in the
// name is dropped before validation.
func (s *Service) Guest(ctx context.Context, key, name string) (*User, error) {
	u := &User{
		Key:  strings.TrimSpace(key),
		Name: strings.TrimSpace(name),
	}
	if err := validation.Struct(u); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		return nil, errors.Wrap(err, "upsert user")
	}
	return u, nil
}
