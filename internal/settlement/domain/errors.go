package settlement

import "errors"

var (
	// ErrEmptyTransactionID is returned when the transaction id is missing.
	ErrEmptyTransactionID = errors.New("settlement: empty transaction id")
	// ErrInvalidRole is returned for an unknown settlement role.
	ErrInvalidRole = errors.New("settlement: invalid role")
	// ErrInvalidQuantity is returned for a non-positive contracted quantity.
	ErrInvalidQuantity = errors.New("settlement: invalid contracted quantity")
	// ErrNotFound is returned when a settlement does not exist.
	ErrNotFound = errors.New("settlement: not found")
	// ErrNilSettlement is returned when persisting a nil settlement.
	ErrNilSettlement = errors.New("settlement: nil settlement")
)
