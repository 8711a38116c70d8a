package repository

// Schema definitions for the rebate database.
// Compatible with both SQLite and PostgreSQL. Decimal values are stored as
// TEXT so they round-trip exactly.

const schemaRebates = `
CREATE TABLE IF NOT EXISTS rebates (
    id TEXT PRIMARY KEY,
    incentive TEXT NOT NULL,
    amount TEXT NOT NULL DEFAULT '0',
    percentage TEXT NOT NULL DEFAULT '0',
    condition_expr TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaProducts = `
CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    price TEXT NOT NULL DEFAULT '0',
    supported_incentives INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// schemaCalculations keeps the latest computed amount per rebate.
const schemaCalculations = `
CREATE TABLE IF NOT EXISTS rebate_calculations (
    rebate_id TEXT PRIMARY KEY REFERENCES rebates(id) ON DELETE CASCADE,
    amount TEXT NOT NULL,
    calculated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rebate_calculations_at ON rebate_calculations(calculated_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRebates,
		schemaProducts,
		schemaCalculations,
	}
}
