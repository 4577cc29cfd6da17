package limits

import "errors"

var (
	// ErrProfileNotFound is returned when a party has no capacity profile.
	ErrProfileNotFound = errors.New("limits: profile not found")
	// ErrInvalidProfile is returned when a required profile field is missing.
	ErrInvalidProfile = errors.New("limits: invalid profile")
	// ErrInvalidWindow is returned for a malformed validation window.
	ErrInvalidWindow = errors.New("limits: invalid window")
)
