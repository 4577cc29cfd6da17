package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	limits "energytrade-cloud/internal/limits/domain"
	"energytrade-cloud/internal/observability/metrics"
	"energytrade-cloud/internal/tradingrules"
)

const (
	sideSeller = "seller"
	sideBuyer  = "buyer"
)

// Result is the structured outcome of a limit validation. A rejection is a
// business answer, not an error: Reason explains it in operator terms.
type Result struct {
	Allowed      bool
	Limit        float64
	CurrentUsage float64
	Remaining    float64
	Reason       string
}

// Validator is the admission check applied before publishing an offer or
// confirming an order. It reads, decides, and reserves nothing: two
// concurrent publishes for the same hour can both pass. That window is an
// accepted business approximation, not a consistency guarantee.
type Validator struct {
	rules       tradingrules.Provider
	profiles    limits.ProfileRepository
	commitments limits.CommitmentRepository
	logger      *log.Logger
}

// NewValidator constructs a validator.
func NewValidator(rules tradingrules.Provider, profiles limits.ProfileRepository, commitments limits.CommitmentRepository, logger *log.Logger) (*Validator, error) {
	if rules == nil {
		return nil, errors.New("limit validator: nil rules provider")
	}
	if profiles == nil {
		return nil, errors.New("limit validator: nil profile repo")
	}
	if commitments == nil {
		return nil, errors.New("limit validator: nil commitment repo")
	}
	return &Validator{rules: rules, profiles: profiles, commitments: commitments, logger: logger}, nil
}

// ValidateSellerLimit checks a seller's requested quantity against the
// capacity-derived safe limit for every hour of the delivery window.
func (v *Validator) ValidateSellerLimit(ctx context.Context, partyID string, quantityKWh float64, date time.Time, startHour, durationHours int) (Result, error) {
	return v.validate(ctx, sideSeller, partyID, quantityKWh, date, startHour, durationHours)
}

// ValidateBuyerLimit is the buyer-side counterpart of ValidateSellerLimit.
func (v *Validator) ValidateBuyerLimit(ctx context.Context, partyID string, quantityKWh float64, date time.Time, startHour, durationHours int) (Result, error) {
	return v.validate(ctx, sideBuyer, partyID, quantityKWh, date, startHour, durationHours)
}

func (v *Validator) validate(ctx context.Context, side, partyID string, quantityKWh float64, date time.Time, startHour, durationHours int) (Result, error) {
	if partyID == "" {
		return v.reject(side, 0, 0, "party id required"), nil
	}
	if quantityKWh <= 0 {
		return v.reject(side, 0, 0, "requested quantity must be positive"), nil
	}
	if startHour < 0 || startHour > 23 || durationHours < 1 {
		return v.reject(side, 0, 0, fmt.Sprintf("invalid delivery window: start hour %d, duration %dh", startHour, durationHours)), nil
	}

	rules, err := v.rules.Rules(ctx)
	if err != nil {
		return v.fail(side, 0, 0, "trading rules unavailable"), err
	}
	if (side == sideSeller && !rules.EnableSellerLimits) || (side == sideBuyer && !rules.EnableBuyerLimits) {
		metrics.ObserveLimitCheck(side, metrics.ResultSuccess)
		return Result{Allowed: true, Limit: math.Inf(1), Remaining: math.Inf(1)}, nil
	}

	limit, err := v.resolveLimit(ctx, side, partyID, rules)
	if err != nil {
		if errors.Is(err, limits.ErrProfileNotFound) || errors.Is(err, limits.ErrInvalidProfile) {
			return v.reject(side, 0, 0, err.Error()), nil
		}
		return v.fail(side, 0, 0, "capacity profile lookup failed"), err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	window := limits.Window{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(startHour+durationHours) * time.Hour),
	}
	commitments, err := v.loadCommitments(ctx, side, partyID, window)
	if err != nil {
		return v.fail(side, limit, 0, "commitment lookup failed"), err
	}

	hourlyQty := quantityKWh / float64(durationHours)
	peakUsage := 0.0
	for i := 0; i < durationHours; i++ {
		slot := limits.Window{
			Start: window.Start.Add(time.Duration(i) * time.Hour),
			End:   window.Start.Add(time.Duration(i+1) * time.Hour),
		}
		usage := 0.0
		for _, c := range commitments {
			usage += c.UsageInSlot(slot)
		}
		if usage+hourlyQty > limit {
			hour := (startHour + i) % 24
			reason := fmt.Sprintf(
				"%s limit exceeded for %02d:00-%02d:00: limit %.3f kWh/h, in use %.3f kWh/h, requested %.3f kWh/h",
				side, hour, (hour+1)%24, limit, usage, hourlyQty,
			)
			return v.reject(side, limit, usage, reason), nil
		}
		if usage > peakUsage {
			peakUsage = usage
		}
	}

	metrics.ObserveLimitCheck(side, metrics.ResultSuccess)
	return Result{
		Allowed:      true,
		Limit:        limit,
		CurrentUsage: peakUsage,
		Remaining:    limit - peakUsage,
	}, nil
}

func (v *Validator) resolveLimit(ctx context.Context, side, partyID string, rules tradingrules.Rules) (float64, error) {
	profile, err := v.profiles.Get(ctx, partyID)
	if err != nil {
		return 0, err
	}
	if side == sideSeller {
		capacity, err := profile.SellerCapacityKW()
		if err != nil {
			return 0, err
		}
		return capacity * rules.SellerSafetyFactor, nil
	}
	capacity, err := profile.BuyerCapacityKW()
	if err != nil {
		return 0, err
	}
	return capacity * rules.BuyerSafetyFactor, nil
}

func (v *Validator) loadCommitments(ctx context.Context, side, partyID string, window limits.Window) ([]limits.Commitment, error) {
	if side == sideSeller {
		return v.commitments.SellerCommitments(ctx, partyID, window)
	}
	return v.commitments.BuyerCommitments(ctx, partyID, window)
}

// reject records a business rejection: the check ran and answered no.
func (v *Validator) reject(side string, limit, usage float64, reason string) Result {
	metrics.ObserveLimitCheck(side, metrics.ResultRejected)
	metrics.IncLimitRejection(side)
	if v.logger != nil {
		v.logger.Printf("limit reject: side=%s reason=%q", side, reason)
	}
	return denied(limit, usage, reason)
}

// fail records an operational failure that forced a fail-closed answer.
func (v *Validator) fail(side string, limit, usage float64, reason string) Result {
	metrics.ObserveLimitCheck(side, metrics.ResultError)
	if v.logger != nil {
		v.logger.Printf("limit check failed: side=%s reason=%q", side, reason)
	}
	return denied(limit, usage, reason)
}

func denied(limit, usage float64, reason string) Result {
	remaining := limit - usage
	if limit == 0 {
		remaining = 0
	}
	return Result{
		Allowed:      false,
		Limit:        limit,
		CurrentUsage: usage,
		Remaining:    remaining,
		Reason:       reason,
	}
}
