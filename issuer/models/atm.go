package models

// Requests and responses of the ATM endpoints.

type VerifyPINRequest struct {
	CardNumber string `json:"card_number"`
	PIN        string `json:"pin"`
}

type VerifyPINResponse struct {
	Valid bool `json:"valid"`
}

type AccountsLookupRequest struct {
	CardNumber string `json:"card_number"`
}

type AccountsLookupResponse struct {
	Accounts []string `json:"accounts"`
}

type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
}

type AmountRequest struct {
	Amount int64 `json:"amount"`
}

type LinkAccountRequest struct {
	AccountID string `json:"account_id"`
}

type SetPINRequest struct {
	CardNumber string `json:"card_number"`
	PIN        string `json:"pin"`
}

// IssuedCard is returned once by card issuance; PIN is never readable later.
type IssuedCard struct {
	*Card
	CardFace string `json:"card_face"`
	PIN      string `json:"pin,omitempty"`
}
