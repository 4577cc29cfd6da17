package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	limits "energytrade-cloud/internal/limits/domain"
)

const (
	defaultProfileTable = "party_profiles"
	defaultOfferTable   = "offers"
	defaultOrderTable   = "orders"

	offerStatusActive    = "ACTIVE"
	orderStatusConfirmed = "CONFIRMED"
)

// ProfileRepository reads capacity profiles from Postgres.
type ProfileRepository struct {
	db    *sql.DB
	table string
}

// NewProfileRepository constructs a repository.
func NewProfileRepository(db *sql.DB, opts ...ProfileOption) *ProfileRepository {
	repo := &ProfileRepository{db: db, table: defaultProfileTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ProfileOption configures the repository.
type ProfileOption func(*ProfileRepository)

// WithProfileTable overrides the default table.
func WithProfileTable(table string) ProfileOption {
	return func(repo *ProfileRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a capacity profile. Nullable capacity columns map to nil fields;
// the domain accessors decide whether that is acceptable.
func (r *ProfileRepository) Get(ctx context.Context, partyID string) (*limits.CapacityProfile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("profile repo: nil db")
	}
	if partyID == "" {
		return nil, limits.ErrProfileNotFound
	}

	query := fmt.Sprintf(`
SELECT party_id, generation_capacity_kw, sanctioned_load_kw
FROM %s
WHERE party_id = $1`, r.table)

	var profile limits.CapacityProfile
	var generation, sanctioned sql.NullFloat64
	row := r.db.QueryRowContext(ctx, query, partyID)
	if err := row.Scan(&profile.PartyID, &generation, &sanctioned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, limits.ErrProfileNotFound
		}
		return nil, err
	}
	if generation.Valid {
		profile.GenerationCapacityKW = &generation.Float64
	}
	if sanctioned.Valid {
		profile.SanctionedLoadKW = &sanctioned.Float64
	}
	return &profile, nil
}

// CommitmentRepository reads offers and orders from Postgres. Overlap is the
// half-open check pushed into the WHERE clause so only relevant rows travel.
type CommitmentRepository struct {
	db         *sql.DB
	offerTable string
	orderTable string
}

// NewCommitmentRepository constructs a repository.
func NewCommitmentRepository(db *sql.DB, opts ...CommitmentOption) *CommitmentRepository {
	repo := &CommitmentRepository{
		db:         db,
		offerTable: defaultOfferTable,
		orderTable: defaultOrderTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CommitmentOption configures the repository.
type CommitmentOption func(*CommitmentRepository)

// WithOfferTable overrides the offers table.
func WithOfferTable(table string) CommitmentOption {
	return func(repo *CommitmentRepository) {
		if table != "" {
			repo.offerTable = table
		}
	}
}

// WithOrderTable overrides the orders table.
func WithOrderTable(table string) CommitmentOption {
	return func(repo *CommitmentRepository) {
		if table != "" {
			repo.orderTable = table
		}
	}
}

// SellerCommitments returns active offers plus confirmed sell orders
// overlapping the window.
func (r *CommitmentRepository) SellerCommitments(ctx context.Context, partyID string, window limits.Window) ([]limits.Commitment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("commitment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT delivery_start, delivery_end, quantity_kwh
FROM %s
WHERE seller_id = $1 AND status = $2 AND delivery_start < $4 AND delivery_end > $3
UNION ALL
SELECT delivery_start, delivery_end, quantity_kwh
FROM %s
WHERE seller_id = $1 AND status = $5 AND delivery_start < $4 AND delivery_end > $3`,
		r.offerTable, r.orderTable)

	return r.query(ctx, query, partyID, offerStatusActive, window.Start.UTC(), window.End.UTC(), orderStatusConfirmed)
}

// BuyerCommitments returns confirmed buy orders overlapping the window.
func (r *CommitmentRepository) BuyerCommitments(ctx context.Context, partyID string, window limits.Window) ([]limits.Commitment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("commitment repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT delivery_start, delivery_end, quantity_kwh
FROM %s
WHERE buyer_id = $1 AND status = $2 AND delivery_start < $4 AND delivery_end > $3`,
		r.orderTable)

	return r.query(ctx, query, partyID, orderStatusConfirmed, window.Start.UTC(), window.End.UTC())
}

func (r *CommitmentRepository) query(ctx context.Context, query string, args ...any) ([]limits.Commitment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commitments []limits.Commitment
	for rows.Next() {
		var c limits.Commitment
		if err := rows.Scan(&c.Window.Start, &c.Window.End, &c.QuantityKWh); err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	return commitments, rows.Err()
}
