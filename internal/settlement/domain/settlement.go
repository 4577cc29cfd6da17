package settlement

import (
	"encoding/json"
	"time"
)

// Role is the trade leg a settlement tracks. The platform may act as both BAP
// and BPP for one transaction, so buyer and seller legs are independent rows.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Status is the settlement lifecycle state. SETTLED is terminal.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusBuyerCompleted  Status = "BUYER_COMPLETED"
	StatusSellerCompleted Status = "SELLER_COMPLETED"
	StatusSettled         Status = "SETTLED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s == StatusSettled }

// DiscomStatus mirrors a utility's delivery-completion flag from the ledger.
type DiscomStatus string

const (
	DiscomPending   DiscomStatus = "PENDING"
	DiscomCompleted DiscomStatus = "COMPLETED"
)

// DeriveStatus recomputes the settlement status from the discom flags of a
// ledger snapshot. The derivation is fresh every time, never incremented, so
// transitions need not pass through the partial states in order.
func DeriveStatus(buyer, seller DiscomStatus) Status {
	switch {
	case buyer == DiscomCompleted && seller == DiscomCompleted:
		return StatusSettled
	case buyer == DiscomCompleted:
		return StatusBuyerCompleted
	case seller == DiscomCompleted:
		return StatusSellerCompleted
	default:
		return StatusPending
	}
}

// Settlement is the reconciliation record for one trade leg.
type Settlement struct {
	TransactionID          string
	OrderItemID            string
	Role                   Role
	CounterpartyPlatformID *string
	CounterpartyDiscomID   *string

	LedgerSyncedAt *time.Time
	LedgerData     json.RawMessage

	Status             Status
	BuyerDiscomStatus  DiscomStatus
	SellerDiscomStatus DiscomStatus

	// ContractedQuantity is fixed at order time and never rewritten.
	ContractedQuantity float64
	ActualDelivered    *float64
	DeviationKWh       *float64

	SettlementCycleID string
	SettledAt         *time.Time
	OnSettleNotified  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a detached copy.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	copied := *s
	copied.CounterpartyPlatformID = clonePtr(s.CounterpartyPlatformID)
	copied.CounterpartyDiscomID = clonePtr(s.CounterpartyDiscomID)
	copied.LedgerSyncedAt = clonePtr(s.LedgerSyncedAt)
	copied.ActualDelivered = clonePtr(s.ActualDelivered)
	copied.DeviationKWh = clonePtr(s.DeviationKWh)
	copied.SettledAt = clonePtr(s.SettledAt)
	if s.LedgerData != nil {
		copied.LedgerData = append(json.RawMessage(nil), s.LedgerData...)
	}
	return &copied
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LedgerUpdate is one ledger snapshot normalized for persistence.
type LedgerUpdate struct {
	BuyerDiscomStatus  DiscomStatus
	SellerDiscomStatus DiscomStatus
	ActualDelivered    *float64
	Data               json.RawMessage
	SyncedAt           time.Time
}

// ApplyLedger mutates the settlement from a ledger snapshot and reports
// whether the settlement newly reached SETTLED. SettledAt and the cycle id
// are assigned exactly once, on the first settling snapshot.
func (s *Settlement) ApplyLedger(update LedgerUpdate, now time.Time) bool {
	s.BuyerDiscomStatus = update.BuyerDiscomStatus
	s.SellerDiscomStatus = update.SellerDiscomStatus
	s.Status = DeriveStatus(update.BuyerDiscomStatus, update.SellerDiscomStatus)
	s.LedgerData = update.Data
	syncedAt := update.SyncedAt
	s.LedgerSyncedAt = &syncedAt

	s.ActualDelivered = clonePtr(update.ActualDelivered)
	if s.ActualDelivered != nil {
		deviation := *s.ActualDelivered - s.ContractedQuantity
		s.DeviationKWh = &deviation
	} else {
		s.DeviationKWh = nil
	}

	newlySettled := false
	if s.Status == StatusSettled && s.SettledAt == nil {
		settledAt := now
		s.SettledAt = &settledAt
		s.SettlementCycleID = CycleID(now)
		newlySettled = true
	}
	s.UpdatedAt = now
	return newlySettled
}
