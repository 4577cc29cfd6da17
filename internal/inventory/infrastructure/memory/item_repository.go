package memory

import (
	"context"
	"sync"
	"time"

	inventory "energytrade-cloud/internal/inventory/domain"
)

// ItemRepository is an in-memory repository for items. The mutex takes the
// place of the database's conditional update: check and decrement happen under
// one critical section, preserving the no-oversell contract.
type ItemRepository struct {
	mu   sync.Mutex
	data map[string]*inventory.Item
}

// NewItemRepository constructs a repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{data: make(map[string]*inventory.Item)}
}

// Put seeds an item (overwrites existing).
func (r *ItemRepository) Put(item inventory.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := item
	r.data[item.ID] = &stored
}

// Get loads an item.
func (r *ItemRepository) Get(ctx context.Context, itemID string) (*inventory.Item, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.data[itemID]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	found := *item
	return &found, nil
}

// Reduce decrements available quantity if sufficient.
func (r *ItemRepository) Reduce(ctx context.Context, itemID string, quantity float64) (float64, error) {
	_ = ctx
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.data[itemID]
	if !ok {
		return 0, inventory.ErrItemNotFound
	}
	if item.AvailableQuantity < quantity {
		return 0, inventory.ErrInsufficientInventory
	}
	item.AvailableQuantity -= quantity
	item.UpdatedAt = time.Now().UTC()
	return item.AvailableQuantity, nil
}

// Restock increments available quantity.
func (r *ItemRepository) Restock(ctx context.Context, itemID string, quantity float64) (float64, error) {
	_ = ctx
	if quantity <= 0 {
		return 0, inventory.ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.data[itemID]
	if !ok {
		return 0, inventory.ErrItemNotFound
	}
	item.AvailableQuantity += quantity
	item.UpdatedAt = time.Now().UTC()
	return item.AvailableQuantity, nil
}
