package atm_test

import (
	"context"
	"fmt"

	"github.com/alovak/cardflow-atm/atm"
)

type fakeReader struct {
	cards []*atm.Card
	calls int
	err   error
	// onRead runs before every read with the 1-based call number.
	onRead func(call int)
}

func (r *fakeReader) ReadCard(context.Context) (*atm.Card, error) {
	r.calls++
	if r.onRead != nil {
		r.onRead(r.calls)
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.cards) == 0 {
		return nil, nil
	}
	i := r.calls - 1
	if i >= len(r.cards) {
		i = len(r.cards) - 1
	}
	return r.cards[i], nil
}

type reading struct {
	value int
	ok    bool
}

func key(v int) reading { return reading{value: v, ok: true} }

var noKey = reading{}

// fakeKeypad replays its readings and repeats the last one when exhausted.
type fakeKeypad struct {
	readings []reading
	calls    int
	err      error
}

func keys(values ...int) *fakeKeypad {
	k := &fakeKeypad{}
	for _, v := range values {
		k.readings = append(k.readings, key(v))
	}
	return k
}

func (k *fakeKeypad) Read(context.Context) (int, bool, error) {
	k.calls++
	if k.err != nil {
		return 0, false, k.err
	}
	if len(k.readings) == 0 {
		return 0, false, nil
	}
	i := k.calls - 1
	if i >= len(k.readings) {
		i = len(k.readings) - 1
	}
	return k.readings[i].value, k.readings[i].ok, nil
}

type fakeDisplay struct {
	lines []string
}

func (d *fakeDisplay) Display(text string) { d.lines = append(d.lines, text) }

// callLog records bank and cash bin calls in the order they happen.
type callLog []string

func (l *callLog) add(format string, args ...any) {
	if l != nil {
		*l = append(*l, fmt.Sprintf(format, args...))
	}
}

type fakeBank struct {
	pin         int
	accounts    []string
	balance     int64
	pinCalls    int
	listCalls   int
	deposits    []int64
	withdrawals []int64
	declineAll  bool
	err         error
	log         *callLog
}

func (b *fakeBank) IsCorrectPIN(_ context.Context, _ atm.Card, pin int) (bool, error) {
	b.pinCalls++
	if b.err != nil {
		return false, b.err
	}
	return pin == b.pin, nil
}

func (b *fakeBank) Accounts(context.Context, atm.Card) ([]string, error) {
	b.listCalls++
	return b.accounts, b.err
}

func (b *fakeBank) Balance(context.Context, string) (int64, error) {
	return b.balance, b.err
}

func (b *fakeBank) Deposit(_ context.Context, _ string, amount int64) error {
	if b.err != nil {
		return b.err
	}
	b.log.add("deposit %d", amount)
	b.deposits = append(b.deposits, amount)
	b.balance += amount
	return nil
}

func (b *fakeBank) Withdraw(_ context.Context, _ string, amount int64) error {
	if b.err != nil {
		return b.err
	}
	if b.declineAll {
		return fmt.Errorf("insufficient funds: %w", atm.ErrDeclined)
	}
	b.log.add("withdraw %d", amount)
	b.withdrawals = append(b.withdrawals, amount)
	b.balance -= amount
	return nil
}

type fakeCashBin struct {
	counted      int64
	dispensed    []int64
	opens        int
	closes       int
	closeIfEmpty int
	log          *callLog
}

func (c *fakeCashBin) Open(context.Context) error {
	c.log.add("open")
	c.opens++
	return nil
}

func (c *fakeCashBin) Close(context.Context) error {
	c.log.add("close")
	c.closes++
	return nil
}

func (c *fakeCashBin) CloseIfEmpty(context.Context) error {
	c.log.add("close if empty")
	c.closeIfEmpty++
	return nil
}

func (c *fakeCashBin) CountMoney(context.Context) (int64, error) { return c.counted, nil }

func (c *fakeCashBin) WithdrawMoney(_ context.Context, amount int64) error {
	c.log.add("dispense %d", amount)
	c.dispensed = append(c.dispensed, amount)
	return nil
}

type kiosk struct {
	reader  *fakeReader
	bank    *fakeBank
	keypad  *fakeKeypad
	display *fakeDisplay
	cash    *fakeCashBin
	calls   callLog
}

func newKiosk() *kiosk {
	k := &kiosk{
		reader:  &fakeReader{cards: []*atm.Card{{Number: "4212345678901237"}}},
		bank:    &fakeBank{pin: 1234, accounts: []string{"123456789", "234567890"}, balance: 100},
		keypad:  &fakeKeypad{},
		display: &fakeDisplay{},
		cash:    &fakeCashBin{},
	}
	k.bank.log = &k.calls
	k.cash.log = &k.calls
	return k
}

func (k *kiosk) controller(opts ...atm.Option) *atm.Controller {
	return atm.NewController(atm.Devices{
		CardReader: k.reader,
		Bank:       k.bank,
		Keypad:     k.keypad,
		Display:    k.display,
		CashBin:    k.cash,
	}, opts...)
}

// cardSession returns a session that already holds a card.
func cardSession() *atm.Session {
	s := atm.NewSession()
	s.Card = &atm.Card{Number: "4212345678901237"}
	s.State = atm.StateCardPresented
	return s
}

func accountSession(accountID string) *atm.Session {
	s := cardSession()
	s.AccountID = accountID
	s.State = atm.StateOperationSelected
	return s
}
