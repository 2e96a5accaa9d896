package atm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"golang.org/x/exp/slog"
)

// Retry ceilings of the interactive steps.
const (
	MaxRetryPIN  = 5
	MaxRetryMenu = 5
)

// Texts shown on the display.
const (
	MsgInsertCard     = "Insert your card"
	MsgEnterPIN       = "Put your pin number"
	MsgOperationMenu  = "1. Balance 2. Deposit 3. Withdraw"
	MsgInsertMoney    = "Put money in to the bin and press any key."
	MsgWithdrawAmount = "Amount to Withdraw: "
)

// Controller runs the kiosk session cycle against its devices.
type Controller struct {
	dev       Devices
	logger    *slog.Logger
	hooks     Hooks
	idleDelay time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks Hooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithIdleDelay makes Run wait between cycles that found no card, for card
// readers that return immediately when the slot is empty.
func WithIdleDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.idleDelay = d
	}
}

func NewController(dev Devices, opts ...Option) *Controller {
	if dev.CardReader == nil {
		dev.CardReader = Unsupported{}
	}
	if dev.Bank == nil {
		dev.Bank = Unsupported{}
	}
	if dev.Keypad == nil {
		dev.Keypad = Unsupported{}
	}
	if dev.Display == nil {
		dev.Display = Unsupported{}
	}
	if dev.CashBin == nil {
		dev.CashBin = Unsupported{}
	}

	c := &Controller{dev: dev}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard))
	}
	c.logger = c.logger.With(slog.String("app", "atm"))

	return c
}

// Run serves one customer after another until ctx is done or a device
// reports ErrNotSupported.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("kiosk started")
	defer c.logger.Info("kiosk stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := c.RunCycle(ctx)
		if err != nil {
			return err
		}

		if outcome == OutcomeNoCard && c.idleDelay > 0 {
			t := time.NewTimer(c.idleDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
}

// RunCycle serves at most one customer on a fresh session. Device and bank
// failures abort the cycle and are logged; only ErrNotSupported and context
// errors are returned.
func (c *Controller) RunCycle(ctx context.Context) (Outcome, error) {
	s := NewSession()
	c.hooks.cycleStart(ctx, s)

	outcome, err := c.cycle(ctx, s)
	if err != nil {
		outcome = OutcomeAborted
		switch {
		case errors.Is(err, ErrNotSupported):
		case ctx.Err() != nil:
			err = ctx.Err()
		default:
			c.logger.Error("session aborted", slog.String("state", s.State.String()), slog.Any("err", err))
			err = nil
		}
	}

	c.logger.Debug("cycle ended", slog.String("outcome", string(outcome)))
	c.hooks.cycleEnd(ctx, s, outcome)
	s.clear()

	return outcome, err
}

func (c *Controller) cycle(ctx context.Context, s *Session) (Outcome, error) {
	c.dev.Display.Display(MsgInsertCard)

	ok, err := c.ReadCard(ctx, s)
	if err != nil {
		return OutcomeAborted, err
	}
	if !ok {
		return OutcomeNoCard, nil
	}

	ok, err = c.ReadAndValidatePIN(ctx, s)
	if err != nil {
		return OutcomeAborted, err
	}
	if !ok {
		return OutcomePINRejected, nil
	}

	ok, err = c.SelectAccount(ctx, s)
	if err != nil {
		return OutcomeAborted, err
	}
	if !ok {
		return OutcomeNoAccount, nil
	}

	op, ok, err := c.OperationMenu(ctx)
	if err != nil {
		return OutcomeAborted, err
	}
	if !ok {
		return OutcomeNoOperation, nil
	}
	s.State = StateOperationSelected

	if err := c.Execute(ctx, s, op); err != nil {
		return OutcomeAborted, err
	}

	return OutcomeCompleted, nil
}

// ReadCard asks the reader for a card and keeps it in the session.
func (c *Controller) ReadCard(ctx context.Context, s *Session) (bool, error) {
	card, err := c.dev.CardReader.ReadCard(ctx)
	if err != nil {
		return false, fmt.Errorf("reading card: %w", err)
	}
	if card == nil {
		return false, nil
	}

	s.Card = card
	s.State = StateCardPresented
	c.logger.Info("card presented", slog.String("card", cardgen.MaskPAN(card.Number)))

	return true, nil
}

// ReadAndValidatePIN prompts for the PIN up to MaxRetryPIN times and stops
// at the first one the bank accepts.
func (c *Controller) ReadAndValidatePIN(ctx context.Context, s *Session) (bool, error) {
	if s.Card == nil {
		return false, errNoCard
	}

	for attempt := 1; attempt <= MaxRetryPIN; attempt++ {
		c.dev.Display.Display(MsgEnterPIN)

		pin, ok, err := c.dev.Keypad.Read(ctx)
		if err != nil {
			return false, fmt.Errorf("reading pin: %w", err)
		}
		if !ok {
			continue
		}

		correct, err := c.dev.Bank.IsCorrectPIN(ctx, *s.Card, pin)
		if err != nil {
			return false, fmt.Errorf("verifying pin: %w", err)
		}
		if correct {
			s.State = StateAuthenticated
			return true, nil
		}
		c.logger.Debug("pin rejected", slog.Int("attempt", attempt))
	}

	c.logger.Info("pin retries exhausted", slog.String("card", cardgen.MaskPAN(s.Card.Number)))

	return false, nil
}

// SelectAccount shows the card's accounts and commits the one picked by
// its menu position. Out of range picks silently consume an attempt.
func (c *Controller) SelectAccount(ctx context.Context, s *Session) (bool, error) {
	if s.Card == nil {
		return false, errNoCard
	}

	accounts, err := c.dev.Bank.Accounts(ctx, *s.Card)
	if err != nil {
		return false, fmt.Errorf("listing accounts: %w", err)
	}
	menu := AccountMenu(accounts)

	for attempt := 0; attempt < MaxRetryMenu; attempt++ {
		c.dev.Display.Display(menu)

		idx, ok, err := c.dev.Keypad.Read(ctx)
		if err != nil {
			return false, fmt.Errorf("reading account selection: %w", err)
		}
		if ok && idx >= 0 && idx < len(accounts) {
			s.AccountID = accounts[idx]
			s.State = StateAccountSelected
			return true, nil
		}
	}

	return false, nil
}

// OperationMenu returns the operation picked by the customer, or false
// once MaxRetryMenu invalid keys were pressed.
func (c *Controller) OperationMenu(ctx context.Context) (Operation, bool, error) {
	for attempt := 0; attempt < MaxRetryMenu; attempt++ {
		c.dev.Display.Display(MsgOperationMenu)

		n, ok, err := c.dev.Keypad.Read(ctx)
		if err != nil {
			return 0, false, fmt.Errorf("reading operation: %w", err)
		}
		if !ok {
			continue
		}
		if op, ok := ParseOperation(n); ok {
			return op, true, nil
		}
	}

	return 0, false, nil
}

// Execute runs op for the session's account.
func (c *Controller) Execute(ctx context.Context, s *Session, op Operation) error {
	if s.Card == nil {
		return errNoCard
	}
	if s.AccountID == "" {
		return errNoAccount
	}

	var err error
	switch op {
	case OperationBalance:
	case OperationDeposit:
		err = c.deposit(ctx, s)
	case OperationWithdraw:
		err = c.withdraw(ctx, s)
	default:
		return fmt.Errorf("unknown %s", op)
	}
	if err != nil {
		return err
	}
	if err := c.showBalance(ctx, s); err != nil {
		return err
	}

	s.State = StateExecuted
	c.hooks.operation(ctx, op)

	return nil
}

func (c *Controller) showBalance(ctx context.Context, s *Session) error {
	balance, err := c.dev.Bank.Balance(ctx, s.AccountID)
	if err != nil {
		return fmt.Errorf("getting balance: %w", err)
	}
	c.dev.Display.Display(fmt.Sprintf("%s balance: %d", s.AccountID, balance))

	return nil
}

// deposit credits the account with what the cash bin counted, never with
// an amount typed by the customer.
func (c *Controller) deposit(ctx context.Context, s *Session) error {
	if err := c.dev.CashBin.Open(ctx); err != nil {
		return fmt.Errorf("opening cash bin: %w", err)
	}
	c.dev.Display.Display(MsgInsertMoney)
	if _, _, err := c.dev.Keypad.Read(ctx); err != nil {
		return fmt.Errorf("waiting for deposit: %w", err)
	}
	if err := c.dev.CashBin.Close(ctx); err != nil {
		return fmt.Errorf("closing cash bin: %w", err)
	}

	amount, err := c.dev.CashBin.CountMoney(ctx)
	if err != nil {
		return fmt.Errorf("counting money: %w", err)
	}
	if amount <= 0 {
		c.logger.Info("nothing deposited", slog.String("account", s.AccountID))
		return nil
	}

	if err := c.dev.Bank.Deposit(ctx, s.AccountID, amount); err != nil {
		return fmt.Errorf("depositing: %w", err)
	}
	c.logger.Info("deposited", slog.String("account", s.AccountID), slog.Int64("amount", amount))
	c.hooks.deposit(ctx, amount)

	return nil
}

// withdraw gives the customer MaxRetryMenu attempts against the balance
// read once on entry. A successful withdrawal does not end the loop.
func (c *Controller) withdraw(ctx context.Context, s *Session) error {
	balance, err := c.dev.Bank.Balance(ctx, s.AccountID)
	if err != nil {
		return fmt.Errorf("getting balance: %w", err)
	}

	for attempt := 0; attempt < MaxRetryMenu; attempt++ {
		c.dev.Display.Display(MsgWithdrawAmount)

		n, ok, err := c.dev.Keypad.Read(ctx)
		if err != nil {
			return fmt.Errorf("reading amount: %w", err)
		}
		amount := int64(n)
		if !ok || amount <= 0 || amount > balance {
			continue
		}

		if err := c.dev.Bank.Withdraw(ctx, s.AccountID, amount); err != nil {
			if errors.Is(err, ErrDeclined) {
				c.logger.Info("withdrawal declined", slog.String("account", s.AccountID), slog.Int64("amount", amount))
				continue
			}
			return fmt.Errorf("withdrawing: %w", err)
		}
		if err := c.dev.CashBin.WithdrawMoney(ctx, amount); err != nil {
			return fmt.Errorf("dispensing cash: %w", err)
		}
		if err := c.dev.CashBin.Open(ctx); err != nil {
			return fmt.Errorf("opening cash bin: %w", err)
		}
		if err := c.dev.CashBin.CloseIfEmpty(ctx); err != nil {
			return fmt.Errorf("closing cash bin: %w", err)
		}
		c.logger.Info("dispensed", slog.String("account", s.AccountID), slog.Int64("amount", amount))
		c.hooks.dispense(ctx, amount)
	}

	return nil
}

// AccountMenu renders accounts with their selection keys.
func AccountMenu(accounts []string) string {
	var b strings.Builder
	for i, acc := range accounts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i, acc)
	}
	return b.String()
}
