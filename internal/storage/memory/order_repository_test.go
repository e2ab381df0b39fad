package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(userID int64) domain.Order {
	return domain.Order{
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		TotalAmount:     decimal.RequireFromString("15.00"),
		ShippingAddress: "1 Main St",
		PaymentMethod:   domain.DefaultPaymentMethod,
		Items: []domain.OrderItem{
			{ProductID: 1, ProductName: "Tea", Quantity: 3, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()

	created, err := repo.Create(newOrder(1))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected first id 1, got %d", created.ID)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	stored, err := repo.Get(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ShippingAddress != "1 Main St" {
		t.Fatalf("unexpected address %q", stored.ShippingAddress)
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := memory.NewOrderRepository()
	if _, err := repo.Get(99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderRepository_ListByUser(t *testing.T) {
	repo := memory.NewOrderRepository()
	base := time.Now().UTC()

	first := newOrder(1)
	first.CreatedAt = base.Add(-time.Hour)
	second := newOrder(1)
	second.CreatedAt = base
	if _, err := repo.Create(first); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(second); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(newOrder(2)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	orders, err := repo.ListByUser(1, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != 2 {
		t.Fatalf("expected newest order first, got %d", orders[0].ID)
	}

	limited, _ := repo.ListByUser(1, 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestOrderRepository_Save(t *testing.T) {
	repo := memory.NewOrderRepository()
	created, _ := repo.Create(newOrder(1))

	created.Status = domain.OrderStatusProcessing
	if err := repo.Save(created); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	stored, _ := repo.Get(created.ID)
	if stored.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", stored.Status)
	}

	missing := newOrder(1)
	missing.ID = 404
	if err := repo.Save(missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
