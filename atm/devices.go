package atm

import "context"

// Card is the identifier read from a physical card.
type Card struct {
	Number string
}

// CardReader reports the card currently presented in the slot.
// A nil card with a nil error means no card is present.
type CardReader interface {
	ReadCard(ctx context.Context) (*Card, error)
}

// Authenticator is the bank system. It owns PIN verification, the card's
// account list and every ledger mutation.
type Authenticator interface {
	IsCorrectPIN(ctx context.Context, card Card, pin int) (bool, error)
	// Accounts returns the account ids available to the card; the position
	// in the slice is the menu key shown to the customer.
	Accounts(ctx context.Context, card Card) ([]string, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	Deposit(ctx context.Context, accountID string, amount int64) error
	// Withdraw debits the account. A refusal by the bank is reported as ErrDeclined.
	Withdraw(ctx context.Context, accountID string, amount int64) error
}

// InputDevice is the keypad. ok is false when nothing usable was entered.
type InputDevice interface {
	Read(ctx context.Context) (value int, ok bool, err error)
}

// OutputDevice is the customer display.
type OutputDevice interface {
	Display(text string)
}

// CashHandler drives the cash bin used by deposits and withdrawals.
type CashHandler interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	CloseIfEmpty(ctx context.Context) error
	// CountMoney returns the amount currently inside the bin.
	CountMoney(ctx context.Context) (int64, error)
	WithdrawMoney(ctx context.Context, amount int64) error
}

// Devices groups the collaborators of a Controller. Missing devices are
// replaced by Unsupported.
type Devices struct {
	CardReader CardReader
	Bank       Authenticator
	Keypad     InputDevice
	Display    OutputDevice
	CashBin    CashHandler
}
