// Package kiosk renders the kiosk hardware on a terminal for local runs.
package kiosk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/alovak/cardflow-atm/internal/cardgen"
	"golang.org/x/term"
)

// Console is the card slot, keypad and screen of a kiosk in one terminal.
// Every line typed is one card swipe or one keypad entry.
type Console struct {
	in  *bufio.Reader
	fd  int
	out io.Writer

	mu      sync.Mutex
	secret  bool
	pending chan lineResult

	// OnEOF runs once the input is exhausted, typically to stop the kiosk.
	OnEOF func()
}

type lineResult struct {
	line string
	err  error
}

var (
	_ atm.CardReader   = (*Console)(nil)
	_ atm.InputDevice  = (*Console)(nil)
	_ atm.OutputDevice = (*Console)(nil)
)

// NewConsole reads from in and writes to out. PIN entry is masked when in
// is a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Console{in: bufio.NewReader(in), fd: fd, out: out}
}

func (c *Console) Display(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.secret = msg == atm.MsgEnterPIN
	fmt.Fprintln(c.out, msg)
}

// ReadCard takes a typed card number. An empty line means no card and an
// invalid number is rejected like an unreadable card.
func (c *Console) ReadCard(ctx context.Context) (*atm.Card, error) {
	line, err := c.readLine(ctx)
	if err != nil {
		return nil, err
	}

	pan := cardgen.NormalizePAN(line)
	if pan == "" {
		return nil, nil
	}
	if err := cardgen.ValidatePAN(pan); err != nil {
		c.Display("Card not accepted")
		return nil, nil
	}

	return &atm.Card{Number: pan}, nil
}

// Read returns the number typed on the keypad. Anything else reads as no
// number.
func (c *Console) Read(ctx context.Context) (int, bool, error) {
	line, err := c.readLine(ctx)
	if err != nil {
		return 0, false, err
	}

	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, false, nil
	}

	return n, true, nil
}

// readLine blocks until a line arrives or ctx is done. A line still being
// typed when ctx ends is handed to the next read.
func (c *Console) readLine(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.pending == nil {
		ch := make(chan lineResult, 1)
		secret := c.secret
		go func() {
			line, err := c.read(secret)
			ch <- lineResult{line: line, err: err}
		}()
		c.pending = ch
	}
	pending := c.pending
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-pending:
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
		if errors.Is(r.err, io.EOF) && c.OnEOF != nil {
			c.OnEOF()
		}
		return r.line, r.err
	}
}

func (c *Console) read(secret bool) (string, error) {
	if secret && c.fd >= 0 {
		b, err := term.ReadPassword(c.fd)
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading pin: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
