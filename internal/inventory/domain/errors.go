package inventory

import "errors"

var (
	// ErrItemNotFound is returned when the item does not exist.
	ErrItemNotFound = errors.New("inventory: item not found")
	// ErrInsufficientInventory is returned when a decrement would oversell.
	ErrInsufficientInventory = errors.New("inventory: insufficient quantity")
	// ErrInvalidQuantity is returned for a zero or negative quantity.
	ErrInvalidQuantity = errors.New("inventory: invalid quantity")
)
