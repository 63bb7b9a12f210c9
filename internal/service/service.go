package service

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"pastelaria/backend/internal/domain"
	"pastelaria/backend/internal/forecast"
	"pastelaria/backend/internal/store"
)

type Service struct {
	repo         store.Repository
	advisor      forecast.Advisor
	strictCombos bool
}

func New(repo store.Repository, advisor forecast.Advisor, strictCombos bool) *Service {
	if advisor == nil {
		advisor = forecast.Heuristic{}
	}

	return &Service{
		repo:         repo,
		advisor:      advisor,
		strictCombos: strictCombos,
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, store.ErrNotFound
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.Barcode = strings.TrimSpace(req.Barcode)

	if req.Name == "" {
		return domain.Product{}, store.ErrDescriptionRequired
	}
	if !validCategory(req.Category) {
		return domain.Product{}, fmt.Errorf("category %q: %w", req.Category, store.ErrInvalidQuantity)
	}
	if !validStockUnit(req.StockUnit) {
		return domain.Product{}, fmt.Errorf("stock unit %q: %w", req.StockUnit, store.ErrInvalidQuantity)
	}
	if req.PriceCents < 0 || req.CostCents < 0 {
		return domain.Product{}, store.ErrInvalidAmount
	}
	if req.Stock < 0 || req.MinStock < 0 {
		return domain.Product{}, store.ErrInvalidQuantity
	}

	product := domain.Product{
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		Stock:      req.Stock,
		StockUnit:  req.StockUnit,
		MinStock:   req.MinStock,
		Barcode:    req.Barcode,
		ImageURL:   strings.TrimSpace(req.ImageURL),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[service] product created id=%s name=%s", created.ID, created.Name)
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrNotFound
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrDescriptionRequired
		}
		updated.Name = name
	}
	if req.Category != nil {
		if !validCategory(*req.Category) {
			return domain.Product{}, fmt.Errorf("category %q: %w", *req.Category, store.ErrInvalidQuantity)
		}
		updated.Category = *req.Category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return domain.Product{}, store.ErrInvalidAmount
		}
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		if *req.CostCents < 0 {
			return domain.Product{}, store.ErrInvalidAmount
		}
		updated.CostCents = *req.CostCents
	}
	if req.StockUnit != nil {
		if !validStockUnit(*req.StockUnit) {
			return domain.Product{}, fmt.Errorf("stock unit %q: %w", *req.StockUnit, store.ErrInvalidQuantity)
		}
		updated.StockUnit = *req.StockUnit
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Product{}, store.ErrInvalidQuantity
		}
		updated.MinStock = *req.MinStock
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.ImageURL != nil {
		updated.ImageURL = strings.TrimSpace(*req.ImageURL)
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}
	return *saved, nil
}

func (s *Service) ListCombos(ctx context.Context) ([]domain.Combo, error) {
	return s.repo.ListCombos(ctx)
}

func (s *Service) CreateCombo(ctx context.Context, req domain.ComboCreateRequest) (domain.Combo, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Combo{}, store.ErrDescriptionRequired
	}
	if len(req.ProductIDs) == 0 {
		return domain.Combo{}, store.ErrEmptyCart
	}
	if req.PriceCents < 0 {
		return domain.Combo{}, store.ErrInvalidAmount
	}

	products, err := s.repo.GetProductsByIDs(ctx, req.ProductIDs)
	if err != nil {
		return domain.Combo{}, err
	}
	for _, id := range req.ProductIDs {
		if _, ok := products[id]; !ok {
			return domain.Combo{}, fmt.Errorf("combo constituent %s: %w", id, store.ErrUnknownProduct)
		}
	}

	combo := domain.Combo{
		Name:       req.Name,
		ProductIDs: req.ProductIDs,
		PriceCents: req.PriceCents,
		ImageURL:   strings.TrimSpace(req.ImageURL),
	}

	created, err := s.repo.CreateCombo(ctx, combo)
	if err != nil {
		return domain.Combo{}, err
	}

	log.Printf("[service] combo created id=%s name=%s constituents=%d", created.ID, created.Name, len(created.ProductIDs))
	return *created, nil
}

// resolveConstituents maps a combo to the products that still exist. A
// missing constituent is dropped with a warning unless strict mode is on.
func (s *Service) resolveConstituents(ctx context.Context, combo domain.Combo) ([]domain.Product, error) {
	products, err := s.repo.GetProductsByIDs(ctx, combo.ProductIDs)
	if err != nil {
		return nil, err
	}

	resolved := make([]domain.Product, 0, len(combo.ProductIDs))
	for _, id := range combo.ProductIDs {
		product, ok := products[id]
		if !ok {
			if s.strictCombos {
				return nil, fmt.Errorf("combo %s constituent %s: %w", combo.ID, id, store.ErrUnknownProduct)
			}
			log.Printf("[service] WARN: combo %s references missing product %s, skipping", combo.ID, id)
			continue
		}
		resolved = append(resolved, product)
	}
	return resolved, nil
}

type decrement struct {
	productID string
	qty       int64
}

// RecordSale is the single write path for a sale. Order is fixed: stock
// decrements, then the sale record, then the cash posting. Validation and
// resolution happen up front so invalid carts mutate nothing.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	if len(req.Lines) == 0 {
		return domain.Sale{}, store.ErrEmptyCart
	}
	if !validPayment(req.PaymentMethod) {
		return domain.Sale{}, fmt.Errorf("payment %q: %w", req.PaymentMethod, store.ErrInvalidPayment)
	}

	total := int64(0)
	saleLines := make([]domain.SaleLine, 0, len(req.Lines))
	decrements := make([]decrement, 0, len(req.Lines))
	decrementIdx := make(map[string]int, len(req.Lines))

	addDecrement := func(productID string, qty int64) {
		if pos, ok := decrementIdx[productID]; ok {
			decrements[pos].qty += qty
			return
		}
		decrementIdx[productID] = len(decrements)
		decrements = append(decrements, decrement{productID: productID, qty: qty})
	}

	for _, line := range req.Lines {
		if line.Qty < 1 {
			return domain.Sale{}, fmt.Errorf("line %s qty %d: %w", line.ItemID, line.Qty, store.ErrInvalidQuantity)
		}

		switch line.Kind {
		case domain.LineKindProduct:
			product, err := s.repo.GetProduct(ctx, line.ItemID)
			if err != nil {
				return domain.Sale{}, fmt.Errorf("product %s: %w", line.ItemID, err)
			}
			total += product.PriceCents * line.Qty
			saleLines = append(saleLines, domain.SaleLine{
				Kind:           domain.LineKindProduct,
				ItemID:         product.ID,
				Name:           product.Name,
				Qty:            line.Qty,
				UnitPriceCents: product.PriceCents,
			})
			addDecrement(product.ID, line.Qty)

		case domain.LineKindCombo:
			combo, err := s.repo.GetCombo(ctx, line.ItemID)
			if err != nil {
				return domain.Sale{}, fmt.Errorf("combo %s: %w", line.ItemID, err)
			}
			constituents, err := s.resolveConstituents(ctx, *combo)
			if err != nil {
				return domain.Sale{}, err
			}
			// combo price is authoritative, never the sum of constituents
			total += combo.PriceCents * line.Qty
			saleLines = append(saleLines, domain.SaleLine{
				Kind:           domain.LineKindCombo,
				ItemID:         combo.ID,
				Name:           combo.Name,
				Qty:            line.Qty,
				UnitPriceCents: combo.PriceCents,
			})
			for _, product := range constituents {
				addDecrement(product.ID, line.Qty)
			}

		default:
			return domain.Sale{}, fmt.Errorf("line kind %q: %w", line.Kind, store.ErrInvalidQuantity)
		}
	}

	for _, dec := range decrements {
		if _, err := s.repo.DecrementStock(ctx, dec.productID, dec.qty); err != nil {
			return domain.Sale{}, fmt.Errorf("decrement stock %s: %w", dec.productID, err)
		}
	}

	sale := domain.Sale{
		Lines:         saleLines,
		TotalCents:    total,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("record sale: %w", err)
	}

	if err := s.repo.PostSale(ctx, created.TotalCents); err != nil {
		// stock and the sale record are already committed; surface the
		// sale ID so the operator can reconcile the register manually
		log.Printf("[service] ERROR: cash posting failed for sale %s: %v", created.ID, err)
		return *created, fmt.Errorf("sale %s recorded but cash posting failed: %w", created.ID, err)
	}

	log.Printf("[service] sale recorded id=%s total=%d payment=%s", created.ID, created.TotalCents, created.PaymentMethod)
	return *created, nil
}

// SalesInRange lists sales with from inclusive and to exclusive at day
// granularity, newest first.
func (s *Service) SalesInRange(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end before start: %w", store.ErrInvalidQuantity)
	}
	return s.repo.ListSales(ctx, from, to)
}

func (s *Service) TodaySales(ctx context.Context) ([]domain.Sale, error) {
	start := dayStartUTC(time.Now().UTC())
	return s.repo.ListSales(ctx, start, start.Add(24*time.Hour))
}

func (s *Service) AdjustStock(ctx context.Context, req domain.StockAdjustRequest) (domain.Product, error) {
	if req.Stock < 0 {
		return domain.Product{}, store.ErrInvalidQuantity
	}
	if err := s.repo.SetStock(ctx, req.ProductID, req.Stock); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// ListLowStock returns products strictly below their minimum level.
func (s *Service) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Stock < p.MinStock {
			low = append(low, p)
		}
	}
	return low, nil
}

func (s *Service) LowStockCount(ctx context.Context) (int, error) {
	low, err := s.ListLowStock(ctx)
	if err != nil {
		return 0, err
	}
	return len(low), nil
}

func (s *Service) GetRegister(ctx context.Context) (domain.RegisterResponse, error) {
	summary, err := s.repo.GetRegister(ctx)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	return domain.RegisterResponse{
		Summary:      summary,
		BalanceCents: summary.BalanceCents(),
		ProfitCents:  summary.ProfitCents(),
	}, nil
}

func (s *Service) CurrentBalance(ctx context.Context) (int64, error) {
	summary, err := s.repo.GetRegister(ctx)
	if err != nil {
		return 0, err
	}
	return summary.BalanceCents(), nil
}

func (s *Service) OpenRegister(ctx context.Context, amountCents int64) (domain.RegisterResponse, error) {
	if amountCents < 0 {
		return domain.RegisterResponse{}, store.ErrInvalidAmount
	}
	summary, err := s.repo.OpenRegister(ctx, amountCents)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	log.Printf("[service] register opened with %d cents", amountCents)
	return domain.RegisterResponse{
		Summary:      summary,
		BalanceCents: summary.BalanceCents(),
		ProfitCents:  summary.ProfitCents(),
	}, nil
}

// PostExpense records the expense entry and debits the register. The
// entry is written first so a register failure leaves an auditable trail.
func (s *Service) PostExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return domain.Expense{}, store.ErrDescriptionRequired
	}
	if req.AmountCents < 1 {
		return domain.Expense{}, store.ErrInvalidAmount
	}

	created, err := s.repo.CreateExpense(ctx, domain.Expense{
		Description: req.Description,
		AmountCents: req.AmountCents,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.Expense{}, err
	}

	if err := s.repo.PostExpense(ctx, created.AmountCents); err != nil {
		log.Printf("[service] ERROR: register debit failed for expense %s: %v", created.ID, err)
		return *created, fmt.Errorf("expense %s recorded but register debit failed: %w", created.ID, err)
	}
	return *created, nil
}

func (s *Service) ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, limit)
}

func (s *Service) AddCash(ctx context.Context, amountCents int64) (domain.RegisterResponse, error) {
	if amountCents < 1 {
		return domain.RegisterResponse{}, store.ErrInvalidAmount
	}
	if err := s.repo.AddCash(ctx, amountCents); err != nil {
		return domain.RegisterResponse{}, err
	}
	return s.GetRegister(ctx)
}

func (s *Service) WithdrawCash(ctx context.Context, amountCents int64) (domain.RegisterResponse, error) {
	if amountCents < 1 {
		return domain.RegisterResponse{}, store.ErrInvalidAmount
	}
	if err := s.repo.WithdrawCash(ctx, amountCents); err != nil {
		return domain.RegisterResponse{}, err
	}
	return s.GetRegister(ctx)
}

func (s *Service) CreateNote(ctx context.Context, req domain.NoteCreateRequest) (domain.Note, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return domain.Note{}, store.ErrDescriptionRequired
	}

	created, err := s.repo.CreateNote(ctx, domain.Note{
		Author:    strings.TrimSpace(req.Author),
		Message:   req.Message,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Note{}, err
	}
	return *created, nil
}

func (s *Service) ListNotes(ctx context.Context, limit int) ([]domain.Note, error) {
	return s.repo.ListNotes(ctx, limit)
}

func (s *Service) Revision(ctx context.Context) (int64, error) {
	return s.repo.Revision(ctx)
}

// Forecast builds the advisory request from the product's last seven days
// of sales, counting combo constituents toward their products.
func (s *Service) Forecast(ctx context.Context, productID string) (domain.ForecastResponse, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ForecastResponse{}, err
	}

	history, err := s.dailyConsumption(ctx, product.ID, 7)
	if err != nil {
		return domain.ForecastResponse{}, err
	}

	result, err := s.advisor.Forecast(ctx, forecast.Request{
		ItemName:     product.Name,
		CurrentStock: product.Stock,
		StockUnit:    product.StockUnit,
		MinStock:     product.MinStock,
		SalesHistory: history,
	})
	if err != nil {
		return domain.ForecastResponse{}, fmt.Errorf("forecast %s: %w", product.ID, err)
	}

	return domain.ForecastResponse{
		ProductID:         product.ID,
		ReorderNeeded:     result.ReorderNeeded,
		EstimatedDaysLeft: result.EstimatedDaysLeft,
		RecommendedQty:    result.RecommendedQty,
		Reasoning:         result.Reasoning,
	}, nil
}

func (s *Service) dailyConsumption(ctx context.Context, productID string, days int) ([]int64, error) {
	end := dayStartUTC(time.Now().UTC()).Add(24 * time.Hour)
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	sales, err := s.repo.ListSales(ctx, start, end)
	if err != nil {
		return nil, err
	}

	comboCache := make(map[string]*domain.Combo)
	perDay := make([]int64, days)
	for _, sale := range sales {
		bucket := int(sale.CreatedAt.Sub(start).Hours() / 24)
		if bucket < 0 || bucket >= days {
			continue
		}
		for _, line := range sale.Lines {
			switch line.Kind {
			case domain.LineKindProduct:
				if line.ItemID == productID {
					perDay[bucket] += line.Qty
				}
			case domain.LineKindCombo:
				combo, ok := comboCache[line.ItemID]
				if !ok {
					combo, err = s.repo.GetCombo(ctx, line.ItemID)
					if err != nil {
						// combo may have been removed since the sale
						comboCache[line.ItemID] = nil
						continue
					}
					comboCache[line.ItemID] = combo
				}
				if combo == nil {
					continue
				}
				if slices.Contains(combo.ProductIDs, productID) {
					perDay[bucket] += line.Qty
				}
			}
		}
	}
	return perDay, nil
}

func validCategory(category string) bool {
	switch category {
	case domain.CategoryPasteis, domain.CategoryBebidas, domain.CategoryOutros:
		return true
	}
	return false
}

func validStockUnit(unit string) bool {
	switch unit {
	case domain.StockUnitUnits, domain.StockUnitGrams:
		return true
	}
	return false
}

func validPayment(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentPix, domain.PaymentCard:
		return true
	}
	return false
}

func dayStartUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
