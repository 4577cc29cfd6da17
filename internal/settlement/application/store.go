package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"energytrade-cloud/internal/ledger"
	settlement "energytrade-cloud/internal/settlement/domain"
)

// Store is the settlement persistence service: idempotent creation plus
// ledger-driven updates.
type Store struct {
	repo   settlement.Repository
	logger *log.Logger
	clock  func() time.Time
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithStoreClock overrides the time source.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore constructs a store.
func NewStore(repo settlement.Repository, logger *log.Logger, opts ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("settlement store: nil repo")
	}
	s := &Store{
		repo:   repo,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateParams describes a new settlement leg.
type CreateParams struct {
	TransactionID          string
	OrderItemID            string
	Role                   settlement.Role
	ContractedQuantity     float64
	CounterpartyPlatformID string
	CounterpartyDiscomID   string
}

// CreateSettlement registers a settlement leg. Calling it again for the same
// (transaction, role) is a no-op that returns the original row.
func (s *Store) CreateSettlement(ctx context.Context, params CreateParams) (*settlement.Settlement, error) {
	if params.TransactionID == "" {
		return nil, settlement.ErrEmptyTransactionID
	}
	if !params.Role.Valid() {
		return nil, settlement.ErrInvalidRole
	}
	if params.ContractedQuantity <= 0 {
		return nil, settlement.ErrInvalidQuantity
	}

	now := s.clock()
	entity := &settlement.Settlement{
		TransactionID:      params.TransactionID,
		OrderItemID:        params.OrderItemID,
		Role:               params.Role,
		Status:             settlement.StatusPending,
		BuyerDiscomStatus:  settlement.DiscomPending,
		SellerDiscomStatus: settlement.DiscomPending,
		ContractedQuantity: params.ContractedQuantity,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if params.CounterpartyPlatformID != "" {
		entity.CounterpartyPlatformID = &params.CounterpartyPlatformID
	}
	if params.CounterpartyDiscomID != "" {
		entity.CounterpartyDiscomID = &params.CounterpartyDiscomID
	}
	return s.repo.Create(ctx, entity)
}

// GetSettlement loads one leg.
func (s *Store) GetSettlement(ctx context.Context, transactionID string, role settlement.Role) (*settlement.Settlement, error) {
	return s.repo.Get(ctx, transactionID, role)
}

// GetByTransaction loads all legs of a transaction.
func (s *Store) GetByTransaction(ctx context.Context, transactionID string) ([]*settlement.Settlement, error) {
	return s.repo.GetByTransaction(ctx, transactionID)
}

// ListSettlements returns settlements matching the filter.
func (s *Store) ListSettlements(ctx context.Context, filter settlement.Filter) ([]*settlement.Settlement, error) {
	return s.repo.List(ctx, filter)
}

// UpdateFromLedger applies a ledger record to every leg of a transaction and
// returns the post-update rows so callers can detect newly-settled
// transitions without re-reading.
func (s *Store) UpdateFromLedger(ctx context.Context, transactionID string, record *ledger.Record) ([]settlement.UpdateResult, error) {
	if record == nil {
		return nil, errors.New("settlement store: nil ledger record")
	}
	legs, err := s.repo.GetByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, settlement.ErrNotFound
	}

	now := s.clock()
	update := ledgerUpdateFromRecord(record, now)
	results := make([]settlement.UpdateResult, 0, len(legs))
	for _, leg := range legs {
		result, err := s.repo.ApplyLedger(ctx, transactionID, leg.Role, update, now)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ApplyToLeg applies a ledger record to a single leg.
func (s *Store) ApplyToLeg(ctx context.Context, transactionID string, role settlement.Role, record *ledger.Record) (settlement.UpdateResult, error) {
	if record == nil {
		return settlement.UpdateResult{}, errors.New("settlement store: nil ledger record")
	}
	now := s.clock()
	return s.repo.ApplyLedger(ctx, transactionID, role, ledgerUpdateFromRecord(record, now), now)
}

// MarkOnSettleNotified flips the one-shot notification flag. Idempotent.
func (s *Store) MarkOnSettleNotified(ctx context.Context, transactionID string, role settlement.Role) error {
	return s.repo.MarkNotified(ctx, transactionID, role)
}

// ListPendingReconciliation returns settlements the poller must still work
// on: every non-terminal leg, plus settled legs whose callback has not
// succeeded yet.
func (s *Store) ListPendingReconciliation(ctx context.Context) ([]*settlement.Settlement, error) {
	return s.repo.ListUnsettled(ctx)
}

// ledgerUpdateFromRecord normalizes a ledger record for persistence. Actual
// delivery prefers the buyer-side ACTUAL_PUSHED metric and falls back to the
// seller-side ACTUAL_DELIVERED.
func ledgerUpdateFromRecord(record *ledger.Record, syncedAt time.Time) settlement.LedgerUpdate {
	update := settlement.LedgerUpdate{
		BuyerDiscomStatus:  discomStatus(record.StatusBuyerDiscom),
		SellerDiscomStatus: discomStatus(record.StatusSellerDiscom),
		SyncedAt:           syncedAt,
	}
	if value, ok := record.BuyerMetric(ledger.MetricActualPushed); ok {
		update.ActualDelivered = &value
	} else if value, ok := record.SellerMetric(ledger.MetricActualDelivered); ok {
		update.ActualDelivered = &value
	}
	if data, err := json.Marshal(record); err == nil {
		update.Data = data
	}
	return update
}

// discomStatus maps a ledger flag to the domain flag. Anything other than an
// explicit COMPLETED counts as pending.
func discomStatus(status ledger.DiscomStatus) settlement.DiscomStatus {
	if status == ledger.DiscomCompleted {
		return settlement.DiscomCompleted
	}
	return settlement.DiscomPending
}
