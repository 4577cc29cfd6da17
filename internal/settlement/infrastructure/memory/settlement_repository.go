package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	settlement "energytrade-cloud/internal/settlement/domain"
)

type key struct {
	transactionID string
	role          settlement.Role
}

// SettlementRepository is an in-memory repository for settlements.
type SettlementRepository struct {
	mu   sync.RWMutex
	data map[key]*settlement.Settlement
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository() *SettlementRepository {
	return &SettlementRepository{data: make(map[key]*settlement.Settlement)}
}

// Create inserts a settlement; an existing row wins and is returned as stored.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) (*settlement.Settlement, error) {
	_ = ctx
	if s == nil {
		return nil, settlement.ErrNilSettlement
	}
	if s.TransactionID == "" {
		return nil, settlement.ErrEmptyTransactionID
	}
	if !s.Role.Valid() {
		return nil, settlement.ErrInvalidRole
	}

	k := key{transactionID: s.TransactionID, role: s.Role}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.data[k]; ok {
		return existing.Clone(), nil
	}
	r.data[k] = s.Clone()
	return s.Clone(), nil
}

// Get loads one settlement leg.
func (r *SettlementRepository) Get(ctx context.Context, transactionID string, role settlement.Role) (*settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[key{transactionID: transactionID, role: role}]
	if !ok {
		return nil, settlement.ErrNotFound
	}
	return s.Clone(), nil
}

// GetByTransaction loads all legs of a transaction.
func (r *SettlementRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*settlement.Settlement
	for k, s := range r.data {
		if k.transactionID == transactionID {
			result = append(result, s.Clone())
		}
	}
	sortByCreation(result)
	return result, nil
}

// List returns settlements matching the filter, oldest-created-first.
func (r *SettlementRepository) List(ctx context.Context, filter settlement.Filter) ([]*settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*settlement.Settlement
	for _, s := range r.data {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.Role != nil && s.Role != *filter.Role {
			continue
		}
		result = append(result, s.Clone())
	}
	sortByCreation(result)
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// ListUnsettled returns settlements needing reconciliation work: non-terminal
// legs plus settled legs whose callback has not succeeded yet.
func (r *SettlementRepository) ListUnsettled(ctx context.Context) ([]*settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*settlement.Settlement
	for _, s := range r.data {
		if !s.Status.Terminal() || !s.OnSettleNotified {
			result = append(result, s.Clone())
		}
	}
	sortByCreation(result)
	return result, nil
}

// ApplyLedger persists one ledger snapshot to one leg.
func (r *SettlementRepository) ApplyLedger(ctx context.Context, transactionID string, role settlement.Role, update settlement.LedgerUpdate, now time.Time) (settlement.UpdateResult, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[key{transactionID: transactionID, role: role}]
	if !ok {
		return settlement.UpdateResult{}, settlement.ErrNotFound
	}
	newlySettled := s.ApplyLedger(update, now)
	return settlement.UpdateResult{Settlement: s.Clone(), NewlySettled: newlySettled}, nil
}

// MarkNotified flips the one-shot notification flag.
func (r *SettlementRepository) MarkNotified(ctx context.Context, transactionID string, role settlement.Role) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[key{transactionID: transactionID, role: role}]
	if !ok {
		return settlement.ErrNotFound
	}
	s.OnSettleNotified = true
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func sortByCreation(settlements []*settlement.Settlement) {
	sort.SliceStable(settlements, func(i, j int) bool {
		if settlements[i].CreatedAt.Equal(settlements[j].CreatedAt) {
			return settlements[i].Role < settlements[j].Role
		}
		return settlements[i].CreatedAt.Before(settlements[j].CreatedAt)
	})
}
