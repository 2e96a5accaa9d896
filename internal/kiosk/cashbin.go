package kiosk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/alovak/cardflow-atm/atm"
)

var ErrOutOfCash = errors.New("not enough cash in the bin")

// Counter reports the money a customer put in the bin.
type Counter interface {
	Read(ctx context.Context) (int, bool, error)
}

// CashBin simulates the bin: a float of notes for withdrawals and a tray
// the customer puts deposits in or takes cash from.
type CashBin struct {
	mu      sync.Mutex
	float   int64
	tray    int64
	open    bool
	counter Counter
	out     io.Writer
}

var _ atm.CashHandler = (*CashBin)(nil)

// NewCashBin loads the bin with float. Deposited amounts are asked from counter.
func NewCashBin(float int64, counter Counter, out io.Writer) *CashBin {
	return &CashBin{float: float, counter: counter, out: out}
}

func (b *CashBin) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = true
	fmt.Fprintln(b.out, "[cash bin] open")
	return nil
}

func (b *CashBin) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = false
	fmt.Fprintln(b.out, "[cash bin] closed")
	return nil
}

// CloseIfEmpty closes the bin once the customer took the tray. The
// simulated customer always takes it.
func (b *CashBin) CloseIfEmpty(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tray > 0 {
		fmt.Fprintf(b.out, "[cash bin] %d taken\n", b.tray)
		b.tray = 0
	}
	b.open = false
	fmt.Fprintln(b.out, "[cash bin] closed")
	return nil
}

// CountMoney counts the tray of a closed bin and moves it to the float.
func (b *CashBin) CountMoney(ctx context.Context) (int64, error) {
	fmt.Fprintln(b.out, "[cash bin] amount inserted:")
	n, ok, err := b.counter.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		return 0, fmt.Errorf("bin is open")
	}
	if ok && n > 0 {
		b.tray = int64(n)
	}
	counted := b.tray
	b.float += counted
	b.tray = 0

	return counted, nil
}

// WithdrawMoney moves amount from the float to the tray.
func (b *CashBin) WithdrawMoney(ctx context.Context, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount > b.float {
		return fmt.Errorf("dispensing %d: %w", amount, ErrOutOfCash)
	}
	b.float -= amount
	b.tray += amount
	fmt.Fprintf(b.out, "[cash bin] dispensed %d\n", amount)
	return nil
}

// Float returns the cash left for withdrawals.
func (b *CashBin) Float() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.float
}
