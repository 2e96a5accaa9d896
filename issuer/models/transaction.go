package models

import "time"

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TransactionStatusPosted TransactionStatus = "POSTED"
)

type Transaction struct {
	ID                string            `json:"id"`
	AccountID         string            `json:"account_id"`
	CardID            string            `json:"card_id,omitempty"`
	Type              TransactionType   `json:"type"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	AuthorizationCode string            `json:"authorization_code"`
	CreatedAt         time.Time         `json:"created_at"`
}
