package application

import (
	"context"
	"errors"
	"log"

	inventory "energytrade-cloud/internal/inventory/domain"
	"energytrade-cloud/internal/observability/metrics"
)

// Service guards inventory mutations for the order-confirmation flow.
type Service struct {
	repo   inventory.Repository
	logger *log.Logger
}

// NewService constructs a service.
func NewService(repo inventory.Repository, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("inventory service: nil repo")
	}
	return &Service{repo: repo, logger: logger}, nil
}

// Reduce atomically reserves quantity on an item. ErrInsufficientInventory is
// fatal to the calling order: the caller must not confirm.
func (s *Service) Reduce(ctx context.Context, itemID string, quantity float64) (float64, error) {
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}
	remaining, err := s.repo.Reduce(ctx, itemID, quantity)
	if err != nil {
		metrics.ObserveInventoryReduce(metrics.ResultError)
		if errors.Is(err, inventory.ErrInsufficientInventory) {
			metrics.IncInventoryInsufficient()
			s.logf("inventory reject: item=%s requested=%.3f", itemID, quantity)
		}
		return 0, err
	}
	metrics.ObserveInventoryReduce(metrics.ResultSuccess)
	s.logf("inventory reduce: item=%s requested=%.3f remaining=%.3f", itemID, quantity, remaining)
	return remaining, nil
}

// Restock returns quantity to an item after an order cancellation.
func (s *Service) Restock(ctx context.Context, itemID string, quantity float64) (float64, error) {
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}
	remaining, err := s.repo.Restock(ctx, itemID, quantity)
	if err != nil {
		return 0, err
	}
	s.logf("inventory restock: item=%s returned=%.3f remaining=%.3f", itemID, quantity, remaining)
	return remaining, nil
}

// Get loads an item.
func (s *Service) Get(ctx context.Context, itemID string) (*inventory.Item, error) {
	return s.repo.Get(ctx, itemID)
}

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
