package models

type Account struct {
	ID               string `json:"id"`
	Currency         string `json:"currency"`
	AvailableBalance int64  `json:"available_balance"`
	HoldBalance      int64  `json:"hold_balance"`
}

type CreateAccount struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Credit adds amount to the available balance.
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.AvailableBalance += amount
	return nil
}

// Debit removes amount from the available balance, never below zero.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.AvailableBalance < amount {
		return ErrInsufficientFunds
	}
	a.AvailableBalance -= amount
	return nil
}
