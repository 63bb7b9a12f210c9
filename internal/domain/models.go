package domain

import "time"

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int64  `json:"stock"`
	StockUnit  string `json:"stock_unit"`
	MinStock   int64  `json:"min_stock"`
	Barcode    string `json:"barcode,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

type ProductCreateRequest struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	CostCents  int64  `json:"cost_cents"`
	Stock      int64  `json:"stock"`
	StockUnit  string `json:"stock_unit"`
	MinStock   int64  `json:"min_stock"`
	Barcode    string `json:"barcode,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

type ProductUpdateRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	CostCents  *int64  `json:"cost_cents,omitempty"`
	StockUnit  *string `json:"stock_unit,omitempty"`
	MinStock   *int64  `json:"min_stock,omitempty"`
	Barcode    *string `json:"barcode,omitempty"`
	ImageURL   *string `json:"image_url,omitempty"`
}

type Combo struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
	PriceCents int64    `json:"price_cents"`
	ImageURL   string   `json:"image_url,omitempty"`
}

type ComboCreateRequest struct {
	Name       string   `json:"name"`
	ProductIDs []string `json:"product_ids"`
	PriceCents int64    `json:"price_cents"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// CartLine is one entry of an incoming sale cart. Kind selects whether
// ItemID refers to a product or a combo.
type CartLine struct {
	Kind   string `json:"kind"`
	ItemID string `json:"item_id"`
	Qty    int64  `json:"qty"`
}

const (
	LineKindProduct = "product"
	LineKindCombo   = "combo"
)

// SaleLine is a cart line enriched with a snapshot of the item name and
// unit price at the moment of sale. The cart is stored unexpanded.
type SaleLine struct {
	Kind           string `json:"kind"`
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	Qty            int64  `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type Sale struct {
	ID            string     `json:"id"`
	Lines         []SaleLine `json:"lines"`
	TotalCents    int64      `json:"total_cents"`
	PaymentMethod string     `json:"payment_method"`
	CreatedAt     time.Time  `json:"created_at"`
}

type SaleRequest struct {
	Lines         []CartLine `json:"lines"`
	PaymentMethod string     `json:"payment_method"`
}

const (
	PaymentCash = "dinheiro"
	PaymentPix  = "pix"
	PaymentCard = "cartao"
)

const (
	CategoryPasteis = "pasteis"
	CategoryBebidas = "bebidas"
	CategoryOutros  = "outros"
)

const (
	StockUnitUnits = "un"
	StockUnitGrams = "g"
)

type Expense struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// RegisterSummary is the singleton cash position. Balance and Profit are
// derived, never stored.
type RegisterSummary struct {
	OpeningCents     int64 `json:"opening_cents"`
	SalesCents       int64 `json:"sales_cents"`
	ExpensesCents    int64 `json:"expenses_cents"`
	WithdrawalsCents int64 `json:"withdrawals_cents"`
	AdditionsCents   int64 `json:"additions_cents"`
}

func (s RegisterSummary) BalanceCents() int64 {
	return s.OpeningCents + s.SalesCents - s.ExpensesCents - s.WithdrawalsCents + s.AdditionsCents
}

func (s RegisterSummary) ProfitCents() int64 {
	return s.SalesCents - s.ExpensesCents
}

type RegisterResponse struct {
	Summary      RegisterSummary `json:"summary"`
	BalanceCents int64           `json:"balance_cents"`
	ProfitCents  int64           `json:"profit_cents"`
}

type CashMovementRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

type StockAdjustRequest struct {
	ProductID string `json:"product_id"`
	Stock     int64  `json:"stock"`
}

type Note struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type NoteCreateRequest struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

type LoginRequest struct {
	AccessKey string `json:"access_key"`
}

type LoginResponse struct {
	ExpiresAt string `json:"expires_at"`
}

type ForecastRequest struct {
	ProductID string `json:"product_id"`
}

type ForecastResponse struct {
	ProductID         string `json:"product_id"`
	ReorderNeeded     bool   `json:"reorder_needed"`
	EstimatedDaysLeft *int   `json:"estimated_days_until_out_of_stock,omitempty"`
	RecommendedQty    *int64 `json:"recommended_reorder_quantity,omitempty"`
	Reasoning         string `json:"reasoning"`
}
