package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pastelaria/backend/internal/domain"
	"pastelaria/backend/internal/store"
	"pastelaria/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func bumpRevision(ctx context.Context, ex execer) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO store_revision (id, rev, updated_at)
		VALUES (1, 1, now())
		ON CONFLICT (id)
		DO UPDATE SET rev = store_revision.rev + 1, updated_at = now()
	`)
	return err
}

func (s *Store) Revision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT rev FROM store_revision WHERE id = 1`).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, stock_unit, min_stock, barcode, image_url
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var barcode, imageURL sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostCents, &p.Stock, &p.StockUnit, &p.MinStock, &barcode, &imageURL)
	if err != nil {
		return domain.Product{}, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	if imageURL.Valid {
		p.ImageURL = imageURL.String
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, stock_unit, min_stock, barcode, image_url
		FROM products
		WHERE id = $1
	`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, stock_unit, min_stock, barcode, image_url
		FROM products
		WHERE barcode = $1
	`, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, stock_unit, min_stock, barcode, image_url
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, cost_cents, stock, stock_unit, min_stock, barcode, image_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
	`, product.ID, product.Name, product.Category, product.PriceCents, product.CostCents,
		product.Stock, product.StockUnit, product.MinStock, nullIfEmpty(product.Barcode), nullIfEmpty(product.ImageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, cost_cents = $5, stock_unit = $6,
			min_stock = $7, barcode = $8, image_url = $9, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.Category, product.PriceCents, product.CostCents,
		product.StockUnit, product.MinStock, nullIfEmpty(product.Barcode), nullIfEmpty(product.ImageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	updated := product
	return &updated, nil
}

func (s *Store) SetStock(ctx context.Context, productID string, qty int64) error {
	if qty < 0 {
		return store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DecrementStock floors at zero inside a single UPDATE so concurrent sale
// terminals never race the read-modify-write.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty int64) (int64, error) {
	if qty < 1 {
		return 0, store.ErrInvalidQuantity
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var remaining int64
	err = tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, productID, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) ListCombos(ctx context.Context) ([]domain.Combo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, product_ids, price_cents, image_url
		FROM combos
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	combos := make([]domain.Combo, 0, 16)
	for rows.Next() {
		combo, err := scanCombo(rows)
		if err != nil {
			return nil, err
		}
		combos = append(combos, combo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return combos, nil
}

func scanCombo(row rowScanner) (domain.Combo, error) {
	var combo domain.Combo
	var productIDsJSON []byte
	var imageURL sql.NullString
	if err := row.Scan(&combo.ID, &combo.Name, &productIDsJSON, &combo.PriceCents, &imageURL); err != nil {
		return domain.Combo{}, err
	}
	if err := json.Unmarshal(productIDsJSON, &combo.ProductIDs); err != nil {
		return domain.Combo{}, err
	}
	if imageURL.Valid {
		combo.ImageURL = imageURL.String
	}
	return combo, nil
}

func (s *Store) GetCombo(ctx context.Context, id string) (*domain.Combo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, product_ids, price_cents, image_url
		FROM combos
		WHERE id = $1
	`, id)
	combo, err := scanCombo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &combo, nil
}

func (s *Store) CreateCombo(ctx context.Context, combo domain.Combo) (*domain.Combo, error) {
	if combo.ID == "" {
		combo.ID = xid.New("combo")
	}
	productIDsJSON, err := json.Marshal(combo.ProductIDs)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO combos (id, name, product_ids, price_cents, image_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now(),now())
	`, combo.ID, combo.Name, productIDsJSON, combo.PriceCents, nullIfEmpty(combo.ImageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := combo
	return &created, nil
}

// CreateSale writes the sale header and its line snapshots in one
// transaction: the sale is either fully recorded or absent.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (id, total_cents, payment_method, created_at)
		VALUES ($1,$2,$3,$4)
	`, sale.ID, sale.TotalCents, sale.PaymentMethod, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}

	for _, line := range sale.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, kind, item_id, name, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.Kind, line.ItemID, line.Name, line.Qty, line.UnitPriceCents)
		if err != nil {
			return nil, err
		}
	}

	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_cents, payment_method, created_at
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	index := make(map[string]int, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TotalCents, &sale.PaymentMethod, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.Lines = make([]domain.SaleLine, 0, 4)
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}

	lineRows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, kind, item_id, name, qty, unit_price_cents
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := lineRows.Scan(&saleID, &line.Kind, &line.ItemID, &line.Name, &line.Qty, &line.UnitPriceCents); err != nil {
			return nil, err
		}
		if pos, ok := index[saleID]; ok {
			sales[pos].Lines = append(sales[pos].Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	return sales, nil
}

func (s *Store) GetRegister(ctx context.Context) (domain.RegisterSummary, error) {
	var summary domain.RegisterSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT opening_cents, sales_cents, expenses_cents, withdrawals_cents, additions_cents
		FROM cash_register
		WHERE id = 1
	`).Scan(&summary.OpeningCents, &summary.SalesCents, &summary.ExpensesCents, &summary.WithdrawalsCents, &summary.AdditionsCents)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RegisterSummary{}, nil
	}
	if err != nil {
		return domain.RegisterSummary{}, err
	}
	return summary, nil
}

func (s *Store) OpenRegister(ctx context.Context, amountCents int64) (domain.RegisterSummary, error) {
	if amountCents < 0 {
		return domain.RegisterSummary{}, store.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.RegisterSummary{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var summary domain.RegisterSummary
	err = tx.QueryRowContext(ctx, `
		SELECT opening_cents, sales_cents, expenses_cents, withdrawals_cents, additions_cents
		FROM cash_register
		WHERE id = 1
		FOR UPDATE
	`).Scan(&summary.OpeningCents, &summary.SalesCents, &summary.ExpensesCents, &summary.WithdrawalsCents, &summary.AdditionsCents)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.RegisterSummary{}, err
	}
	if summary != (domain.RegisterSummary{}) {
		return domain.RegisterSummary{}, store.ErrRegisterOpen
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_register (id, opening_cents, sales_cents, expenses_cents, withdrawals_cents, additions_cents, updated_at)
		VALUES (1, $1, 0, 0, 0, 0, now())
		ON CONFLICT (id)
		DO UPDATE SET opening_cents = EXCLUDED.opening_cents, updated_at = now()
	`, amountCents)
	if err != nil {
		return domain.RegisterSummary{}, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return domain.RegisterSummary{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.RegisterSummary{}, err
	}

	return domain.RegisterSummary{OpeningCents: amountCents}, nil
}

func (s *Store) postRegister(ctx context.Context, column string, amountCents int64) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// column comes from a fixed caller-side set, never from input
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_register (id, opening_cents, sales_cents, expenses_cents, withdrawals_cents, additions_cents, updated_at)
		VALUES (1, 0, 0, 0, 0, 0, now())
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE cash_register SET `+column+` = `+column+` + $1, updated_at = now() WHERE id = 1
	`, amountCents)
	if err != nil {
		return err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) PostSale(ctx context.Context, amountCents int64) error {
	if amountCents < 0 {
		return store.ErrInvalidAmount
	}
	return s.postRegister(ctx, "sales_cents", amountCents)
}

func (s *Store) PostExpense(ctx context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}
	return s.postRegister(ctx, "expenses_cents", amountCents)
}

func (s *Store) AddCash(ctx context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}
	return s.postRegister(ctx, "additions_cents", amountCents)
}

func (s *Store) WithdrawCash(ctx context.Context, amountCents int64) error {
	if amountCents < 1 {
		return store.ErrInvalidAmount
	}
	return s.postRegister(ctx, "withdrawals_cents", amountCents)
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if strings.TrimSpace(expense.Description) == "" {
		return nil, store.ErrDescriptionRequired
	}
	if expense.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, description, amount_cents, created_at)
		VALUES ($1,$2,$3,$4)
	`, expense.ID, expense.Description, expense.AmountCents, expense.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := expense
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, limit int) ([]domain.Expense, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, created_at
		FROM expenses
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, limit)
	for rows.Next() {
		var expense domain.Expense
		if err := rows.Scan(&expense.ID, &expense.Description, &expense.AmountCents, &expense.CreatedAt); err != nil {
			return nil, err
		}
		expense.CreatedAt = expense.CreatedAt.UTC()
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) CreateNote(ctx context.Context, note domain.Note) (*domain.Note, error) {
	if strings.TrimSpace(note.Message) == "" {
		return nil, store.ErrDescriptionRequired
	}
	if note.ID == "" {
		note.ID = xid.New("note")
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, author, message, created_at)
		VALUES ($1,$2,$3,$4)
	`, note.ID, nullIfEmpty(note.Author), note.Message, note.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateID
		}
		return nil, err
	}
	if err := bumpRevision(ctx, tx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := note
	return &created, nil
}

func (s *Store) ListNotes(ctx context.Context, limit int) ([]domain.Note, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, message, created_at
		FROM notes
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]domain.Note, 0, limit)
	for rows.Next() {
		var note domain.Note
		var author sql.NullString
		if err := rows.Scan(&note.ID, &author, &note.Message, &note.CreatedAt); err != nil {
			return nil, err
		}
		if author.Valid {
			note.Author = author.String
		}
		note.CreatedAt = note.CreatedAt.UTC()
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
