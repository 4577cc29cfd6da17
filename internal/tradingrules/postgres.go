package tradingrules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const defaultRulesTable = "trading_rules"

// PostgresProvider reads rules from a single-row table on every call.
type PostgresProvider struct {
	db    *sql.DB
	table string
}

// NewPostgresProvider constructs a provider.
func NewPostgresProvider(db *sql.DB, opts ...PostgresOption) *PostgresProvider {
	p := &PostgresProvider{db: db, table: defaultRulesTable}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PostgresOption configures the provider.
type PostgresOption func(*PostgresProvider)

// WithTable overrides the default table.
func WithTable(table string) PostgresOption {
	return func(p *PostgresProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// Rules loads the current rules; defaults when no row exists.
func (p *PostgresProvider) Rules(ctx context.Context) (Rules, error) {
	if p == nil || p.db == nil {
		return Defaults(), errors.New("trading rules: nil db")
	}

	query := fmt.Sprintf(`
SELECT buyer_safety_factor, seller_safety_factor, enable_buyer_limits, enable_seller_limits
FROM %s
ORDER BY updated_at DESC
LIMIT 1`, p.table)

	var rules Rules
	row := p.db.QueryRowContext(ctx, query)
	err := row.Scan(&rules.BuyerSafetyFactor, &rules.SellerSafetyFactor, &rules.EnableBuyerLimits, &rules.EnableSellerLimits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Defaults(), nil
		}
		return Defaults(), err
	}
	return rules.Normalize(), nil
}
