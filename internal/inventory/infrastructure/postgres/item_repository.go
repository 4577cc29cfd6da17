package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	inventory "energytrade-cloud/internal/inventory/domain"
)

const defaultItemTable = "items"

// ItemRepository is a Postgres implementation for inventory items.
type ItemRepository struct {
	db    *sql.DB
	table string
}

// NewItemRepository constructs a repository with defaults.
func NewItemRepository(db *sql.DB, opts ...RepositoryOption) *ItemRepository {
	repo := &ItemRepository{db: db, table: defaultItemTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ItemRepository)

// WithTable overrides the default table.
func WithTable(table string) RepositoryOption {
	return func(repo *ItemRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads an item.
func (r *ItemRepository) Get(ctx context.Context, itemID string) (*inventory.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("item repo: nil db")
	}
	if itemID == "" {
		return nil, inventory.ErrItemNotFound
	}

	query := fmt.Sprintf(`
SELECT id, available_quantity, updated_at
FROM %s
WHERE id = $1`, r.table)

	var item inventory.Item
	row := r.db.QueryRowContext(ctx, query, itemID)
	if err := row.Scan(&item.ID, &item.AvailableQuantity, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Reduce decrements available quantity in a single conditional statement.
// The WHERE guard is what prevents concurrent oversell: the database either
// applies the full decrement or touches nothing.
func (r *ItemRepository) Reduce(ctx context.Context, itemID string, quantity float64) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("item repo: nil db")
	}
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}

	query := fmt.Sprintf(`
UPDATE %s
SET available_quantity = available_quantity - $1,
    updated_at = NOW()
WHERE id = $2 AND available_quantity >= $1
RETURNING available_quantity`, r.table)

	var remaining float64
	row := r.db.QueryRowContext(ctx, query, quantity, itemID)
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, r.classifyMiss(ctx, itemID)
		}
		return 0, err
	}
	return remaining, nil
}

// Restock increments available quantity. Same single-statement discipline as
// Reduce; never creates missing items.
func (r *ItemRepository) Restock(ctx context.Context, itemID string, quantity float64) (float64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("item repo: nil db")
	}
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}

	query := fmt.Sprintf(`
UPDATE %s
SET available_quantity = available_quantity + $1,
    updated_at = NOW()
WHERE id = $2
RETURNING available_quantity`, r.table)

	var remaining float64
	row := r.db.QueryRowContext(ctx, query, quantity, itemID)
	if err := row.Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, inventory.ErrItemNotFound
		}
		return 0, err
	}
	return remaining, nil
}

// classifyMiss distinguishes a missing item from insufficient stock after the
// conditional update matched no row. Read-only, so it sits safely outside the
// atomic decrement.
func (r *ItemRepository) classifyMiss(ctx context.Context, itemID string) error {
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, r.table)
	var one int
	if err := r.db.QueryRowContext(ctx, query, itemID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return inventory.ErrItemNotFound
		}
		return err
	}
	return inventory.ErrInsufficientInventory
}
