package settlement

import (
	"context"
	"time"
)

// UpdateResult is the outcome of applying one ledger snapshot to one leg.
type UpdateResult struct {
	Settlement   *Settlement
	NewlySettled bool
}

// Filter narrows a settlement listing.
type Filter struct {
	Status *Status
	Role   *Role
	Limit  int
}

// Repository persists settlements, one row per (transaction, role).
type Repository interface {
	// Create inserts a settlement. Idempotent: an existing (transaction, role)
	// row is left untouched and returned as stored.
	Create(ctx context.Context, s *Settlement) (*Settlement, error)
	Get(ctx context.Context, transactionID string, role Role) (*Settlement, error)
	GetByTransaction(ctx context.Context, transactionID string) ([]*Settlement, error)
	List(ctx context.Context, filter Filter) ([]*Settlement, error)
	// ListUnsettled returns settlements needing reconciliation work,
	// oldest-created-first: non-terminal legs plus settled legs whose
	// callback has not succeeded yet.
	ListUnsettled(ctx context.Context) ([]*Settlement, error)
	// ApplyLedger persists one ledger snapshot to one leg as a single atomic
	// update and returns the post-update row.
	ApplyLedger(ctx context.Context, transactionID string, role Role, update LedgerUpdate, now time.Time) (UpdateResult, error)
	// MarkNotified flips the one-shot notification flag. Idempotent.
	MarkNotified(ctx context.Context, transactionID string, role Role) error
}
