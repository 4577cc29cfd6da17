package memory

import (
	"context"
	"sync"

	limits "energytrade-cloud/internal/limits/domain"
)

// ProfileRepository is an in-memory capacity profile store.
type ProfileRepository struct {
	mu   sync.RWMutex
	data map[string]*limits.CapacityProfile
}

// NewProfileRepository constructs a repository.
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{data: make(map[string]*limits.CapacityProfile)}
}

// Put seeds a profile.
func (r *ProfileRepository) Put(profile limits.CapacityProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := profile
	r.data[profile.PartyID] = &stored
}

// Get loads a profile.
func (r *ProfileRepository) Get(ctx context.Context, partyID string) (*limits.CapacityProfile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.data[partyID]
	if !ok {
		return nil, limits.ErrProfileNotFound
	}
	found := *profile
	return &found, nil
}

// CommitmentRepository is an in-memory commitment store keyed by party and side.
type CommitmentRepository struct {
	mu     sync.RWMutex
	seller map[string][]limits.Commitment
	buyer  map[string][]limits.Commitment
}

// NewCommitmentRepository constructs a repository.
func NewCommitmentRepository() *CommitmentRepository {
	return &CommitmentRepository{
		seller: make(map[string][]limits.Commitment),
		buyer:  make(map[string][]limits.Commitment),
	}
}

// AddSeller records a seller-side commitment (active offer or confirmed sell order).
func (r *CommitmentRepository) AddSeller(partyID string, c limits.Commitment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seller[partyID] = append(r.seller[partyID], c)
}

// AddBuyer records a buyer-side commitment (confirmed buy order).
func (r *CommitmentRepository) AddBuyer(partyID string, c limits.Commitment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buyer[partyID] = append(r.buyer[partyID], c)
}

// SellerCommitments returns seller commitments overlapping the window.
func (r *CommitmentRepository) SellerCommitments(ctx context.Context, partyID string, window limits.Window) ([]limits.Commitment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return overlapping(r.seller[partyID], window), nil
}

// BuyerCommitments returns buyer commitments overlapping the window.
func (r *CommitmentRepository) BuyerCommitments(ctx context.Context, partyID string, window limits.Window) ([]limits.Commitment, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return overlapping(r.buyer[partyID], window), nil
}

func overlapping(commitments []limits.Commitment, window limits.Window) []limits.Commitment {
	var result []limits.Commitment
	for _, c := range commitments {
		if c.Window.Overlaps(window) {
			result = append(result, c)
		}
	}
	return result
}
