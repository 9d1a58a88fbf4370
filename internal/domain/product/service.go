package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service applies admin catalog changes after validating them.
type Service struct {
	repo Repository
}

// NewService creates a product Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates p, assigns an ID when it has none, and stores it.
func (s *Service) Create(ctx context.Context, p *Product) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := Validate(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return errors.Wrap(err, "create product")
	}
	return nil
}

// Update validates p and replaces the stored product with the same ID.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := Validate(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return s.notFound(err, p.ID, "update product")
	}
	return nil
}

// SetTiers replaces the pricing tiers of product id.
func (s *Service) SetTiers(ctx context.Context, id string, tiers []PricingTier) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFound(err, id, "get product")
	}
	p.PricingTiers = tiers
	if err := s.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes product id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.notFound(err, id, "delete product")
	}
	return nil
}

func (s *Service) notFound(err error, id, op string) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{ProductID: id}
	}
	return errors.Wrap(err, op)
}
