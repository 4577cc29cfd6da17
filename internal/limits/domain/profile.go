package limits

import (
	"context"
	"fmt"
)

// CapacityProfile is a party's registered grid capacity. Fields are pointers
// because registration data arrives incomplete; the typed accessors below are
// the single place that incompleteness is checked.
type CapacityProfile struct {
	PartyID              string
	GenerationCapacityKW *float64
	SanctionedLoadKW     *float64
}

// SellerCapacityKW returns the seller-side capacity ceiling:
// min(generation capacity, sanctioned load).
func (p *CapacityProfile) SellerCapacityKW() (float64, error) {
	if p == nil {
		return 0, ErrProfileNotFound
	}
	if p.GenerationCapacityKW == nil {
		return 0, fmt.Errorf("%w: missing generation capacity for party %s", ErrInvalidProfile, p.PartyID)
	}
	if p.SanctionedLoadKW == nil {
		return 0, fmt.Errorf("%w: missing sanctioned load for party %s", ErrInvalidProfile, p.PartyID)
	}
	capacity := *p.GenerationCapacityKW
	if *p.SanctionedLoadKW < capacity {
		capacity = *p.SanctionedLoadKW
	}
	return capacity, nil
}

// BuyerCapacityKW returns the buyer-side capacity ceiling: sanctioned load.
func (p *CapacityProfile) BuyerCapacityKW() (float64, error) {
	if p == nil {
		return 0, ErrProfileNotFound
	}
	if p.SanctionedLoadKW == nil {
		return 0, fmt.Errorf("%w: missing sanctioned load for party %s", ErrInvalidProfile, p.PartyID)
	}
	return *p.SanctionedLoadKW, nil
}

// ProfileRepository reads capacity profiles.
type ProfileRepository interface {
	Get(ctx context.Context, partyID string) (*CapacityProfile, error)
}
