package inventory

import (
	"context"
	"time"
)

// Item is one sellable inventory position. AvailableQuantity is the only
// field this layer mutates; it must never go negative.
type Item struct {
	ID                string
	AvailableQuantity float64
	UpdatedAt         time.Time
}

// Repository persists items. Reduce and Restock must be single atomic
// conditional operations evaluated by the storage layer, never a
// read-then-write pair in application code.
type Repository interface {
	Get(ctx context.Context, itemID string) (*Item, error)
	Reduce(ctx context.Context, itemID string, quantity float64) (float64, error)
	Restock(ctx context.Context, itemID string, quantity float64) (float64, error)
}
