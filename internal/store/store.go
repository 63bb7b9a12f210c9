package store

import (
	"context"
	"errors"
	"time"

	"pastelaria/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrEmptyCart           = errors.New("empty cart")
	ErrInvalidQuantity     = errors.New("invalid quantity")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPayment      = errors.New("invalid payment method")
	ErrDescriptionRequired = errors.New("description required")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrRegisterOpen        = errors.New("register already open")
)

// Repository is the persistence boundary. DecrementStock and the register
// posting methods are atomic increments so concurrent writers cannot lose
// updates. Every mutation bumps the store revision.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	SetStock(ctx context.Context, productID string, qty int64) error
	// DecrementStock subtracts qty from the product's stock, flooring at
	// zero, and returns the resulting stock level.
	DecrementStock(ctx context.Context, productID string, qty int64) (int64, error)

	ListCombos(ctx context.Context) ([]domain.Combo, error)
	GetCombo(ctx context.Context, id string) (*domain.Combo, error)
	CreateCombo(ctx context.Context, combo domain.Combo) (*domain.Combo, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	GetRegister(ctx context.Context) (domain.RegisterSummary, error)
	OpenRegister(ctx context.Context, amountCents int64) (domain.RegisterSummary, error)
	PostSale(ctx context.Context, amountCents int64) error
	PostExpense(ctx context.Context, amountCents int64) error
	AddCash(ctx context.Context, amountCents int64) error
	WithdrawCash(ctx context.Context, amountCents int64) error

	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error)

	CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error)
	ListNotes(ctx context.Context, limit int) ([]domain.Note, error)

	Revision(ctx context.Context) (int64, error)
}
