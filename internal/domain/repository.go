package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// RebateStore looks up rebates and records calculation results.
type RebateStore interface {
	// GetRebate returns the rebate, or an absent Option if none exists.
	GetRebate(ctx context.Context, rebateID string) (Option[Rebate], error)

	// StoreCalculationResult persists amount against the rebate and returns
	// a new Rebate carrying it. The argument is never modified.
	StoreCalculationResult(ctx context.Context, rebate Rebate, amount decimal.Decimal) (Rebate, error)
}

// ProductStore looks up products.
type ProductStore interface {
	// GetProduct returns the product, or an absent Option if none exists.
	GetProduct(ctx context.Context, productID string) (Option[Product], error)
}

// Repository is the full persistence surface used by the service.
type Repository interface {
	RebateStore
	ProductStore

	// Rebate administration
	SaveRebate(ctx context.Context, rebate *Rebate) error
	ListRebates(ctx context.Context) ([]*Rebate, error)
	DeleteRebate(ctx context.Context, rebateID string) error

	// Product administration
	SaveProduct(ctx context.Context, product *Product) error
	ListProducts(ctx context.Context) ([]*Product, error)
	DeleteProduct(ctx context.Context, productID string) error

	// GetCalculation returns the latest stored amount for a rebate.
	GetCalculation(ctx context.Context, rebateID string) (*Calculation, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
