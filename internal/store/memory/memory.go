package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"pastelaria/backend/internal/domain"
	"pastelaria/backend/internal/store"
	"pastelaria/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	barcodes   map[string]string
	combos     map[string]domain.Combo
	sales      []domain.Sale
	expenses   []domain.Expense
	notes      []domain.Note
	register   domain.RegisterSummary
	registerOK bool
	revision   int64
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		barcodes: make(map[string]string),
		combos:   make(map[string]domain.Combo),
		sales:    make([]domain.Sale, 0, 128),
		expenses: make([]domain.Expense, 0, 32),
		notes:    make([]domain.Note, 0, 32),
	}
}

// NewSeeded builds an in-memory store preloaded with the classic stand
// catalog. Intended for dev/demo mode (no DATABASE_URL).
func NewSeeded() *Store {
	s := New()

	products := []domain.Product{
		{ID: "prod-pastel-carne", Name: "Pastel de Carne", Category: domain.CategoryPasteis, PriceCents: 850, CostCents: 350, Stock: 50, StockUnit: domain.StockUnitUnits, MinStock: 10, Barcode: "7890000000011"},
		{ID: "prod-pastel-queijo", Name: "Pastel de Queijo", Category: domain.CategoryPasteis, PriceCents: 800, CostCents: 300, Stock: 50, StockUnit: domain.StockUnitUnits, MinStock: 10, Barcode: "7890000000028"},
		{ID: "prod-coca-lata", Name: "Coca-Cola Lata", Category: domain.CategoryBebidas, PriceCents: 500, CostCents: 250, Stock: 48, StockUnit: domain.StockUnitUnits, MinStock: 12, Barcode: "7894900011517"},
		{ID: "prod-guarana-lata", Name: "Guaraná Lata", Category: domain.CategoryBebidas, PriceCents: 500, CostCents: 230, Stock: 36, StockUnit: domain.StockUnitUnits, MinStock: 12},
		{ID: "prod-caldo-cana", Name: "Caldo de Cana 300ml", Category: domain.CategoryBebidas, PriceCents: 600, CostCents: 200, Stock: 30, StockUnit: domain.StockUnitUnits, MinStock: 8},
		{ID: "prod-massa", Name: "Massa de Pastel", Category: domain.CategoryOutros, PriceCents: 0, CostCents: 1200, Stock: 5000, StockUnit: domain.StockUnitGrams, MinStock: 1500},
	}
	for _, p := range products {
		s.products[p.ID] = p
		if p.Barcode != "" {
			s.barcodes[p.Barcode] = p.ID
		}
	}

	s.combos["combo-pastel-refri"] = domain.Combo{
		ID:         "combo-pastel-refri",
		Name:       "Pastel + Refrigerante",
		ProductIDs: []string{"prod-pastel-carne", "prod-coca-lata"},
		PriceCents: 1200,
	}

	return s
}

func (s *Store) bump() {
	s.revision++
}

func (s *Store) Revision(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.barcodes[barcode]
	if !exists {
		return nil, store.ErrNotFound
	}
	product := s.products[id]
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrDuplicateID
	}
	if product.Barcode != "" {
		if _, taken := s.barcodes[product.Barcode]; taken {
			return nil, store.ErrDuplicateID
		}
	}

	s.products[product.ID] = product
	if product.Barcode != "" {
		s.barcodes[product.Barcode] = product.ID
	}
	s.bump()
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Barcode != prev.Barcode {
		if product.Barcode != "" {
			if owner, taken := s.barcodes[product.Barcode]; taken && owner != product.ID {
				return nil, store.ErrDuplicateID
			}
		}
		if prev.Barcode != "" {
			delete(s.barcodes, prev.Barcode)
		}
		if product.Barcode != "" {
			s.barcodes[product.Barcode] = product.ID
		}
	}

	s.products[product.ID] = product
	s.bump()
	updated := product
	return &updated, nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty int64) error {
	if qty < 0 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	product.Stock = qty
	s.products[productID] = product
	s.bump()
	return nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, qty int64) (int64, error) {
	if qty < 1 {
		return 0, store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return 0, store.ErrNotFound
	}
	product.Stock -= qty
	if product.Stock < 0 {
		product.Stock = 0
	}
	s.products[productID] = product
	s.bump()
	return product.Stock, nil
}

func (s *Store) ListCombos(_ context.Context) ([]domain.Combo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	combos := make([]domain.Combo, 0, len(s.combos))
	for _, c := range s.combos {
		combos = append(combos, cloneCombo(c))
	}
	slices.SortFunc(combos, func(a, b domain.Combo) int {
		return cmpString(a.Name, b.Name)
	})
	return combos, nil
}

func (s *Store) GetCombo(_ context.Context, id string) (*domain.Combo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	combo, exists := s.combos[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCombo := cloneCombo(combo)
	return &copyCombo, nil
}

func (s *Store) CreateCombo(_ context.Context, combo domain.Combo) (*domain.Combo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if combo.ID == "" {
		combo.ID = xid.New("combo")
	}
	if _, exists := s.combos[combo.ID]; exists {
		return nil, store.ErrDuplicateID
	}

	s.combos[combo.ID] = cloneCombo(combo)
	s.bump()
	created := cloneCombo(combo)
	return &created, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	s.sales = append(s.sales, cloneSale(sale))
	s.bump()
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetRegister(_ context.Context) (domain.RegisterSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.register, nil
}

func (s *Store) OpenRegister(_ context.Context, amountCents int64) (domain.RegisterSummary, error) {
	if amountCents < 0 {
		return domain.RegisterSummary{}, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registerOK && s.register != (domain.RegisterSummary{}) {
		return domain.RegisterSummary{}, store.ErrRegisterOpen
	}
	s.register = domain.RegisterSummary{OpeningCents: amountCents}
	s.registerOK = true
	s.bump()
	return s.register, nil
}

func (s *Store) PostSale(_ context.Context, amountCents int64) error {
	if amountCents < 0 {
		return store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.register.SalesCents += amountCents
	s.registerOK = true
	s.bump()
	return nil
}

func (s *Store) PostExpense(_ context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.register.ExpensesCents += amountCents
	s.registerOK = true
	s.bump()
	return nil
}

func (s *Store) AddCash(_ context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.register.AdditionsCents += amountCents
	s.registerOK = true
	s.bump()
	return nil
}

func (s *Store) WithdrawCash(_ context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.register.WithdrawalsCents += amountCents
	s.registerOK = true
	s.bump()
	return nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" {
		return nil, store.ErrDescriptionRequired
	}
	if expense.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expenses = append(s.expenses, expense)
	s.bump()
	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, limit int) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, len(s.expenses))
	copy(result, s.expenses)

	slices.SortFunc(result, func(a, b domain.Expense) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateNote(_ context.Context, note domain.Note) (*domain.Note, error) {
	if strings.TrimSpace(note.Message) == "" {
		return nil, store.ErrDescriptionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if note.ID == "" {
		note.ID = xid.New("note")
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	s.notes = append(s.notes, note)
	s.bump()
	created := note
	return &created, nil
}

func (s *Store) ListNotes(_ context.Context, limit int) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Note, len(s.notes))
	copy(result, s.notes)

	slices.SortFunc(result, func(a, b domain.Note) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneCombo(src domain.Combo) domain.Combo {
	dup := src
	ids := make([]string, len(src.ProductIDs))
	copy(ids, src.ProductIDs)
	dup.ProductIDs = ids
	return dup
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	lines := make([]domain.SaleLine, len(src.Lines))
	copy(lines, src.Lines)
	dup.Lines = lines
	return dup
}
