package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	inventory "energytrade-cloud/internal/inventory/domain"
	"energytrade-cloud/internal/inventory/infrastructure/memory"
)

func newTestService(t *testing.T, items ...inventory.Item) (*Service, *memory.ItemRepository) {
	t.Helper()
	repo := memory.NewItemRepository()
	for _, item := range items {
		repo.Put(item)
	}
	service, err := NewService(repo, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, repo
}

func TestReduceExactDrain(t *testing.T) {
	service, _ := newTestService(t, inventory.Item{ID: "item-1", AvailableQuantity: 10})
	ctx := context.Background()

	remaining, err := service.Reduce(ctx, "item-1", 10)
	if err != nil {
		t.Fatalf("reduce: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %.3f", remaining)
	}

	if _, err := service.Reduce(ctx, "item-1", 1); !errors.Is(err, inventory.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}
}

func TestReduceMissingItem(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.Reduce(context.Background(), "nope", 1); !errors.Is(err, inventory.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestReduceInvalidQuantity(t *testing.T) {
	service, _ := newTestService(t, inventory.Item{ID: "item-1", AvailableQuantity: 10})
	if _, err := service.Reduce(context.Background(), "item-1", 0); !errors.Is(err, inventory.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := service.Reduce(context.Background(), "item-1", -2); !errors.Is(err, inventory.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestConcurrentReduceNeverOversells(t *testing.T) {
	const (
		pool     = 40.0
		unit     = 3.0
		requests = 50
	)
	service, repo := newTestService(t, inventory.Item{ID: "item-1", AvailableQuantity: pool})
	ctx := context.Background()

	var succeeded atomic.Int32
	var rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Reduce(ctx, "item-1", unit)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, inventory.ErrInsufficientInventory):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// floor(40/3) = 13 requests fit; the rest must be rejected.
	if got := succeeded.Load(); got != 13 {
		t.Fatalf("expected 13 successful reductions, got %d", got)
	}
	if got := rejected.Load(); got != requests-13 {
		t.Fatalf("expected %d rejections, got %d", requests-13, got)
	}

	item, err := repo.Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if item.AvailableQuantity < 0 {
		t.Fatalf("quantity went negative: %.3f", item.AvailableQuantity)
	}
	if want := pool - 13*unit; item.AvailableQuantity != want {
		t.Fatalf("expected %.3f remaining, got %.3f", want, item.AvailableQuantity)
	}
}

func TestRestock(t *testing.T) {
	service, _ := newTestService(t, inventory.Item{ID: "item-1", AvailableQuantity: 2})
	ctx := context.Background()

	remaining, err := service.Restock(ctx, "item-1", 5)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if remaining != 7 {
		t.Fatalf("expected 7 remaining, got %.3f", remaining)
	}

	if _, err := service.Restock(ctx, "nope", 5); !errors.Is(err, inventory.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
