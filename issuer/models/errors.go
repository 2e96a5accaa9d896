package models

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidPIN        = errors.New("pin must be 4 to 12 digits without leading zeros")
	// ErrInvalidCard covers unknown and expired cards.
	ErrInvalidCard = errors.New("invalid card")
)
