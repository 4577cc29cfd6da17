package limits

import (
	"context"
	"time"
)

// Window is a half-open delivery interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports half-open interval overlap with another window.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && w.End.After(other.Start)
}

// Commitment is an already-admitted claim on a party's capacity: an active
// offer or a confirmed order. Read-only to this layer.
type Commitment struct {
	Window      Window
	QuantityKWh float64
}

// HourlyRateKWh pro-rates the committed quantity over the commitment's own
// window, so a 2-hour 10 kWh commitment contributes 5 kWh to any hour it
// overlaps.
func (c Commitment) HourlyRateKWh() float64 {
	hours := c.Window.End.Sub(c.Window.Start).Hours()
	if hours <= 0 {
		return 0
	}
	return c.QuantityKWh / hours
}

// UsageInSlot returns the commitment's contribution to an hour slot.
func (c Commitment) UsageInSlot(slot Window) float64 {
	if !c.Window.Overlaps(slot) {
		return 0
	}
	return c.HourlyRateKWh()
}

// CommitmentRepository reads a party's admitted commitments overlapping a
// window. Seller commitments are active offers plus confirmed sell orders;
// buyer commitments are confirmed buy orders.
type CommitmentRepository interface {
	SellerCommitments(ctx context.Context, partyID string, window Window) ([]Commitment, error)
	BuyerCommitments(ctx context.Context, partyID string, window Window) ([]Commitment, error)
}
