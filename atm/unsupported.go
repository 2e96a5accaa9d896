package atm

import "context"

// Unsupported implements every collaborator interface and fails each call
// with ErrNotSupported. Display has no failure channel and does nothing.
type Unsupported struct{}

var (
	_ CardReader    = Unsupported{}
	_ Authenticator = Unsupported{}
	_ InputDevice   = Unsupported{}
	_ OutputDevice  = Unsupported{}
	_ CashHandler   = Unsupported{}
)

func (Unsupported) ReadCard(context.Context) (*Card, error) { return nil, ErrNotSupported }

func (Unsupported) IsCorrectPIN(context.Context, Card, int) (bool, error) {
	return false, ErrNotSupported
}

func (Unsupported) Accounts(context.Context, Card) ([]string, error) { return nil, ErrNotSupported }

func (Unsupported) Balance(context.Context, string) (int64, error) { return 0, ErrNotSupported }

func (Unsupported) Deposit(context.Context, string, int64) error { return ErrNotSupported }

func (Unsupported) Withdraw(context.Context, string, int64) error { return ErrNotSupported }

func (Unsupported) Read(context.Context) (int, bool, error) { return 0, false, ErrNotSupported }

func (Unsupported) Display(string) {}

func (Unsupported) Open(context.Context) error { return ErrNotSupported }

func (Unsupported) Close(context.Context) error { return ErrNotSupported }

func (Unsupported) CloseIfEmpty(context.Context) error { return ErrNotSupported }

func (Unsupported) CountMoney(context.Context) (int64, error) { return 0, ErrNotSupported }

func (Unsupported) WithdrawMoney(context.Context, int64) error { return ErrNotSupported }
