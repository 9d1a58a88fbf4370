package stock

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/swag-store/internal/validation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Service validates and applies inventory changes.
type Service struct {
	repo Repository
}

// NewService creates a stock Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Adjust applies a batch of adjustments in order and returns their log
// entries. Zero deltas are skipped. Processing stops at the first failure.
func (s *Service) Adjust(ctx context.Context, adjustments []Adjustment) ([]LogEntry, error) {
	for i := range adjustments {
		if err := validation.Struct(&adjustments[i]); err != nil {
			return nil, err
		}
	}

	entries := make([]LogEntry, 0, len(adjustments))
	for _, a := range adjustments {
		if a.Delta == 0 {
			continue
		}
		reason := a.Reason
		if reason == "" {
			reason = ReasonManual
		}
		entry, err := s.repo.Adjust(ctx, a.ProductID, a.Delta, reason)
		if err != nil {
			return entries, errors.Wrapf(err, "adjust %s", a.ProductID)
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// History returns recent stock changes. The limit is clamped to a sane range.
func (s *Service) History(ctx context.Context, limit int) ([]LogEntry, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	entries, err := s.repo.History(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "stock history")
	}
	return entries, nil
}
