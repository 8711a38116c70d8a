// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/rebate/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// GetRebate retrieves a rebate by ID. A missing row is an absent Option.
func (r *SQLRepository) GetRebate(ctx context.Context, rebateID string) (domain.Option[domain.Rebate], error) {
	query := `
		SELECT id, incentive, amount, percentage, condition_expr
		FROM rebates
		WHERE id = ?
	`

	rebate, err := scanRebate(r.db.QueryRowContext(ctx, r.rebind(query), rebateID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.None[domain.Rebate](), nil
	}
	if err != nil {
		return domain.None[domain.Rebate](), err
	}
	return domain.Some(*rebate), nil
}

// StoreCalculationResult upserts the latest amount for the rebate and
// returns a copy of rebate carrying it. The configured rebate row is not
// modified.
func (r *SQLRepository) StoreCalculationResult(ctx context.Context, rebate domain.Rebate, amount decimal.Decimal) (domain.Rebate, error) {
	if rebate.Identifier == "" {
		return domain.Rebate{}, fmt.Errorf("%w: rebate identifier is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO rebate_calculations (rebate_id, amount, calculated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(rebate_id) DO UPDATE SET
			amount = excluded.amount,
			calculated_at = excluded.calculated_at
	`

	if _, err := r.db.ExecContext(ctx, r.rebind(query), rebate.Identifier, amount.String(), r.now()); err != nil {
		return domain.Rebate{}, err
	}

	return rebate.WithAmount(amount), nil
}

// GetCalculation retrieves the latest stored amount for a rebate.
func (r *SQLRepository) GetCalculation(ctx context.Context, rebateID string) (*domain.Calculation, error) {
	query := `
		SELECT rebate_id, amount, calculated_at
		FROM rebate_calculations
		WHERE rebate_id = ?
	`

	var calc domain.Calculation
	var amount string

	err := r.db.QueryRowContext(ctx, r.rebind(query), rebateID).Scan(
		&calc.RebateIdentifier, &amount, &calc.CalculatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if calc.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("calculation %s: bad amount %q: %w", rebateID, amount, err)
	}
	return &calc, nil
}

// SaveRebate creates or replaces a rebate configuration.
func (r *SQLRepository) SaveRebate(ctx context.Context, rebate *domain.Rebate) error {
	if rebate == nil || strings.TrimSpace(rebate.Identifier) == "" {
		return fmt.Errorf("%w: rebate identifier is required", ErrInvalidInput)
	}
	if !rebate.Incentive.Valid() {
		return fmt.Errorf("%w: unknown incentive %s", ErrInvalidInput, rebate.Incentive)
	}

	now := r.now()

	query := `
		INSERT INTO rebates (id, incentive, amount, percentage, condition_expr, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			incentive = excluded.incentive,
			amount = excluded.amount,
			percentage = excluded.percentage,
			condition_expr = excluded.condition_expr,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rebate.Identifier, rebate.Incentive.String(),
		rebate.Amount.String(), rebate.Percentage.String(),
		rebate.Condition, now, now,
	)
	return err
}

// ListRebates returns all rebates ordered by ID.
func (r *SQLRepository) ListRebates(ctx context.Context) ([]*domain.Rebate, error) {
	query := `
		SELECT id, incentive, amount, percentage, condition_expr
		FROM rebates
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rebates []*domain.Rebate
	for rows.Next() {
		rebate, err := scanRebate(rows)
		if err != nil {
			return nil, err
		}
		rebates = append(rebates, rebate)
	}

	return rebates, rows.Err()
}

// DeleteRebate removes a rebate and its stored calculation.
func (r *SQLRepository) DeleteRebate(ctx context.Context, rebateID string) error {
	return r.deleteByID(ctx, "rebates", rebateID)
}

// GetProduct retrieves a product by ID. A missing row is an absent Option.
func (r *SQLRepository) GetProduct(ctx context.Context, productID string) (domain.Option[domain.Product], error) {
	query := `
		SELECT id, price, supported_incentives
		FROM products
		WHERE id = ?
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, r.rebind(query), productID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.None[domain.Product](), nil
	}
	if err != nil {
		return domain.None[domain.Product](), err
	}
	return domain.Some(*product), nil
}

// SaveProduct creates or replaces a product.
func (r *SQLRepository) SaveProduct(ctx context.Context, product *domain.Product) error {
	if product == nil || strings.TrimSpace(product.Identifier) == "" {
		return fmt.Errorf("%w: product identifier is required", ErrInvalidInput)
	}

	now := r.now()

	query := `
		INSERT INTO products (id, price, supported_incentives, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			price = excluded.price,
			supported_incentives = excluded.supported_incentives,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		product.Identifier, product.Price.String(),
		int64(product.SupportedIncentives), now, now,
	)
	return err
}

// ListProducts returns all products ordered by ID.
func (r *SQLRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT id, price, supported_incentives
		FROM products
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	return products, rows.Err()
}

// DeleteProduct removes a product.
func (r *SQLRepository) DeleteProduct(ctx context.Context, productID string) error {
	return r.deleteByID(ctx, "products", productID)
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// deleteByID deletes a row from one of the fixed tables above.
func (r *SQLRepository) deleteByID(ctx context.Context, table, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRebate(s scanner) (*domain.Rebate, error) {
	var rebate domain.Rebate
	var incentive, amount, percentage string

	if err := s.Scan(&rebate.Identifier, &incentive, &amount, &percentage, &rebate.Condition); err != nil {
		return nil, err
	}

	var err error
	if rebate.Incentive, err = domain.ParseIncentiveType(incentive); err != nil {
		return nil, fmt.Errorf("rebate %s: %w", rebate.Identifier, err)
	}
	if rebate.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("rebate %s: bad amount %q: %w", rebate.Identifier, amount, err)
	}
	if rebate.Percentage, err = decimal.NewFromString(percentage); err != nil {
		return nil, fmt.Errorf("rebate %s: bad percentage %q: %w", rebate.Identifier, percentage, err)
	}

	return &rebate, nil
}

func scanProduct(s scanner) (*domain.Product, error) {
	var product domain.Product
	var price string
	var supported int64

	if err := s.Scan(&product.Identifier, &price, &supported); err != nil {
		return nil, err
	}

	var err error
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("product %s: bad price %q: %w", product.Identifier, price, err)
	}
	product.SupportedIncentives = domain.IncentiveSet(supported)

	return &product, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
