package notify

import (
	"context"
	"time"
)

// Event is the payload delivered when a settlement first reaches SETTLED.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Transaction string    `json:"transaction_id"`

	Settlement SettlementPayload `json:"settlement"`
}

// SettlementPayload mirrors the ledger-derived settlement fields.
type SettlementPayload struct {
	OrderItemID            string     `json:"order_item_id"`
	Role                   string     `json:"role"`
	SettlementStatus       string     `json:"settlement_status"`
	BuyerDiscomStatus      string     `json:"buyer_discom_status"`
	SellerDiscomStatus     string     `json:"seller_discom_status"`
	ContractedQuantity     float64    `json:"contracted_quantity_kwh"`
	ActualDelivered        *float64   `json:"actual_delivered_kwh,omitempty"`
	DeviationKWh           *float64   `json:"deviation_kwh,omitempty"`
	SettlementCycleID      string     `json:"settlement_cycle_id"`
	SettledAt              *time.Time `json:"settled_at,omitempty"`
	CounterpartyPlatformID *string    `json:"counterparty_platform_id,omitempty"`
}

// Notifier delivers on-settle events. Best-effort: a failed delivery is the
// caller's signal to try again on a later cycle.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
