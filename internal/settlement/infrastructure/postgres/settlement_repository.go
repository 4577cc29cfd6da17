package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	settlement "energytrade-cloud/internal/settlement/domain"
)

const defaultSettlementTable = "settlements"

const settlementColumns = `
transaction_id, order_item_id, role,
counterparty_platform_id, counterparty_discom_id,
ledger_synced_at, ledger_data,
settlement_status, buyer_discom_status, seller_discom_status,
contracted_quantity, actual_delivered, deviation_kwh,
settlement_cycle_id, settled_at, on_settle_notified,
created_at, updated_at`

// SettlementRepository is a Postgres implementation for settlements.
type SettlementRepository struct {
	db    *sql.DB
	table string
}

// NewSettlementRepository constructs a repository with defaults.
func NewSettlementRepository(db *sql.DB, opts ...RepositoryOption) *SettlementRepository {
	repo := &SettlementRepository{db: db, table: defaultSettlementTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SettlementRepository)

// WithTable overrides the default table.
func WithTable(table string) RepositoryOption {
	return func(repo *SettlementRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a settlement. ON CONFLICT DO NOTHING keeps creation
// idempotent: the original row, including its contracted quantity, wins.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) (*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	if s == nil {
		return nil, settlement.ErrNilSettlement
	}
	if s.TransactionID == "" {
		return nil, settlement.ErrEmptyTransactionID
	}
	if !s.Role.Valid() {
		return nil, settlement.ErrInvalidRole
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	transaction_id, order_item_id, role,
	counterparty_platform_id, counterparty_discom_id,
	settlement_status, buyer_discom_status, seller_discom_status,
	contracted_quantity, on_settle_notified,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $10
)
ON CONFLICT (transaction_id, role) DO NOTHING`, r.table)

	now := s.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		s.TransactionID, s.OrderItemID, string(s.Role),
		s.CounterpartyPlatformID, s.CounterpartyDiscomID,
		string(s.Status), string(s.BuyerDiscomStatus), string(s.SellerDiscomStatus),
		s.ContractedQuantity, now,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, s.TransactionID, s.Role)
}

// Get loads one settlement leg.
func (r *SettlementRepository) Get(ctx context.Context, transactionID string, role settlement.Role) (*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE transaction_id = $1 AND role = $2`, settlementColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, transactionID, string(role))
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// GetByTransaction loads all legs of a transaction.
func (r *SettlementRepository) GetByTransaction(ctx context.Context, transactionID string) ([]*settlement.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE transaction_id = $1 ORDER BY created_at ASC, role ASC`, settlementColumns, r.table)
	return r.queryMany(ctx, query, transactionID)
}

// List returns settlements matching the filter, oldest-created-first.
func (r *SettlementRepository) List(ctx context.Context, filter settlement.Filter) ([]*settlement.Settlement, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE 1=1`, settlementColumns, r.table)
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += fmt.Sprintf(" AND settlement_status = $%d", len(args))
	}
	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, role ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryMany(ctx, query, args...)
}

// ListUnsettled returns settlements needing reconciliation work: non-terminal
// legs plus settled legs whose callback has not succeeded yet.
func (r *SettlementRepository) ListUnsettled(ctx context.Context) ([]*settlement.Settlement, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE settlement_status <> $1 OR on_settle_notified = FALSE
ORDER BY created_at ASC, role ASC`, settlementColumns, r.table)
	return r.queryMany(ctx, query, string(settlement.StatusSettled))
}

// ApplyLedger persists one ledger snapshot to one leg as a single UPDATE.
// The CASE guards keep settled_at and the cycle id one-shot: they are only
// written while the stored settled_at is still null.
func (r *SettlementRepository) ApplyLedger(ctx context.Context, transactionID string, role settlement.Role, update settlement.LedgerUpdate, now time.Time) (settlement.UpdateResult, error) {
	if r == nil || r.db == nil {
		return settlement.UpdateResult{}, errors.New("settlement repo: nil db")
	}

	status := settlement.DeriveStatus(update.BuyerDiscomStatus, update.SellerDiscomStatus)
	// Postgres stores microseconds; align so the newly-settled comparison
	// below sees the same instant that was written.
	now = now.UTC().Truncate(time.Microsecond)
	cycleID := settlement.CycleID(now)

	query := fmt.Sprintf(`
UPDATE %s SET
	buyer_discom_status = $3,
	seller_discom_status = $4,
	settlement_status = $5,
	ledger_data = $6,
	ledger_synced_at = $7,
	actual_delivered = $8,
	deviation_kwh = CASE WHEN $8::double precision IS NULL THEN NULL ELSE $8 - contracted_quantity END,
	settlement_cycle_id = CASE WHEN $5 = $9 AND settled_at IS NULL THEN $10 ELSE settlement_cycle_id END,
	settled_at = CASE WHEN $5 = $9 AND settled_at IS NULL THEN $11 ELSE settled_at END,
	updated_at = $11
WHERE transaction_id = $1 AND role = $2
RETURNING %s`, r.table, settlementColumns)

	row := r.db.QueryRowContext(ctx, query,
		transactionID, string(role),
		string(update.BuyerDiscomStatus), string(update.SellerDiscomStatus), string(status),
		[]byte(update.Data), update.SyncedAt.UTC(),
		update.ActualDelivered,
		string(settlement.StatusSettled), cycleID, now,
	)
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settlement.UpdateResult{}, settlement.ErrNotFound
		}
		return settlement.UpdateResult{}, err
	}

	newlySettled := s.Status == settlement.StatusSettled && s.SettledAt != nil && s.SettledAt.Equal(now)
	return settlement.UpdateResult{Settlement: s, NewlySettled: newlySettled}, nil
}

// MarkNotified flips the one-shot notification flag. Safe to repeat.
func (r *SettlementRepository) MarkNotified(ctx context.Context, transactionID string, role settlement.Role) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s SET on_settle_notified = TRUE, updated_at = NOW()
WHERE transaction_id = $1 AND role = $2`, r.table)

	result, err := r.db.ExecContext(ctx, query, transactionID, string(role))
	if err != nil {
		return err
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

func (r *SettlementRepository) queryMany(ctx context.Context, query string, args ...any) ([]*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []*settlement.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*settlement.Settlement, error) {
	var s settlement.Settlement
	var role, status, buyerStatus, sellerStatus string
	var counterpartyPlatform, counterpartyDiscom, cycleID sql.NullString
	var syncedAt, settledAt sql.NullTime
	var ledgerData []byte
	var actualDelivered, deviation sql.NullFloat64

	err := row.Scan(
		&s.TransactionID, &s.OrderItemID, &role,
		&counterpartyPlatform, &counterpartyDiscom,
		&syncedAt, &ledgerData,
		&status, &buyerStatus, &sellerStatus,
		&s.ContractedQuantity, &actualDelivered, &deviation,
		&cycleID, &settledAt, &s.OnSettleNotified,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Role = settlement.Role(role)
	s.Status = settlement.Status(status)
	s.BuyerDiscomStatus = settlement.DiscomStatus(buyerStatus)
	s.SellerDiscomStatus = settlement.DiscomStatus(sellerStatus)
	if counterpartyPlatform.Valid {
		s.CounterpartyPlatformID = &counterpartyPlatform.String
	}
	if counterpartyDiscom.Valid {
		s.CounterpartyDiscomID = &counterpartyDiscom.String
	}
	if syncedAt.Valid {
		t := syncedAt.Time.UTC()
		s.LedgerSyncedAt = &t
	}
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		s.SettledAt = &t
	}
	if cycleID.Valid {
		s.SettlementCycleID = cycleID.String
	}
	if actualDelivered.Valid {
		s.ActualDelivered = &actualDelivered.Float64
	}
	if deviation.Valid {
		s.DeviationKWh = &deviation.Float64
	}
	if len(ledgerData) > 0 {
		s.LedgerData = ledgerData
	}
	return &s, nil
}
