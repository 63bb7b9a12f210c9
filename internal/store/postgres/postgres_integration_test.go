package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"pastelaria/backend/internal/domain"
)

func TestDecrementStockFloorsAtZero(t *testing.T) {
	databaseURL := os.Getenv("PASTELARIA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PASTELARIA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.CreateProduct(ctx, domain.Product{
		ID:        productID,
		Name:      "Pastel Integração",
		Category:  domain.CategoryPasteis,
		StockUnit: domain.StockUnitUnits,
		Stock:     3,
	}); err != nil {
		t.Fatalf("create product: %v", err)
	}

	remaining, err := s.DecrementStock(ctx, productID, 2)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected stock 1, got %d", remaining)
	}

	remaining, err = s.DecrementStock(ctx, productID, 5)
	if err != nil {
		t.Fatalf("oversell decrement: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected stock floored at 0, got %d", remaining)
	}
}

func TestRegisterPostingsAccumulate(t *testing.T) {
	databaseURL := os.Getenv("PASTELARIA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PASTELARIA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	before, err := s.GetRegister(ctx)
	if err != nil {
		t.Fatalf("get register: %v", err)
	}

	if err := s.PostSale(ctx, 3100); err != nil {
		t.Fatalf("post sale: %v", err)
	}
	if err := s.PostExpense(ctx, 500); err != nil {
		t.Fatalf("post expense: %v", err)
	}

	after, err := s.GetRegister(ctx)
	if err != nil {
		t.Fatalf("get register: %v", err)
	}
	if after.SalesCents != before.SalesCents+3100 {
		t.Fatalf("expected sales %d, got %d", before.SalesCents+3100, after.SalesCents)
	}
	if after.ExpensesCents != before.ExpensesCents+500 {
		t.Fatalf("expected expenses %d, got %d", before.ExpensesCents+500, after.ExpensesCents)
	}

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `
			UPDATE cash_register
			SET sales_cents = sales_cents - 3100, expenses_cents = expenses_cents - 500
			WHERE id = 1
		`)
	})
}
