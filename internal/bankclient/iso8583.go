package bankclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/alovak/cardflow-atm/internal/iso8583link"
	connection "github.com/moov-io/iso8583-connection"
)

// ISO8583 talks to the issuer's ISO 8583 server over one connection.
type ISO8583 struct {
	conn  *connection.Connection
	stans iso8583link.STANs
}

var _ atm.Authenticator = (*ISO8583)(nil)

// DialISO8583 connects to addr. timeout bounds every request.
func DialISO8583(addr string, timeout time.Duration) (*ISO8583, error) {
	conn, err := connection.New(addr, iso8583link.Spec, iso8583link.ReadMessageLength, iso8583link.WriteMessageLength,
		connection.SendTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("creating connection: %w", err)
	}
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	return &ISO8583{conn: conn}, nil
}

func (c *ISO8583) Close() error {
	return c.conn.Close()
}

func (c *ISO8583) send(ctx context.Context, req iso8583link.Request) (iso8583link.Response, error) {
	if err := ctx.Err(); err != nil {
		return iso8583link.Response{}, err
	}
	req.MTI = iso8583link.RequestMTI(req.ProcessingCode)
	req.STAN = c.stans.Next()

	msg, err := iso8583link.NewRequest(req)
	if err != nil {
		return iso8583link.Response{}, err
	}
	reply, err := c.conn.Send(msg)
	if err != nil {
		return iso8583link.Response{}, fmt.Errorf("sending %s: %w", req.ProcessingCode, err)
	}

	return iso8583link.ParseResponse(reply)
}

// IsCorrectPIN reports false for cards the issuer does not know or that expired.
func (c *ISO8583) IsCorrectPIN(ctx context.Context, card atm.Card, pin int) (bool, error) {
	resp, err := c.send(ctx, iso8583link.Request{
		ProcessingCode: iso8583link.ProcVerifyPIN,
		PAN:            card.Number,
		Data:           strconv.Itoa(pin),
	})
	if err != nil {
		return false, err
	}

	switch resp.Code {
	case iso8583link.ResponseApproved:
		return true, nil
	case iso8583link.ResponseIncorrectPIN, iso8583link.ResponseInvalidCard:
		return false, nil
	}
	return false, codeError(resp.Code)
}

func (c *ISO8583) Accounts(ctx context.Context, card atm.Card) ([]string, error) {
	resp, err := c.send(ctx, iso8583link.Request{
		ProcessingCode: iso8583link.ProcAccountList,
		PAN:            card.Number,
	})
	if err != nil {
		return nil, err
	}
	if err := codeError(resp.Code); err != nil {
		return nil, err
	}
	return resp.Accounts(), nil
}

func (c *ISO8583) Balance(ctx context.Context, accountID string) (int64, error) {
	resp, err := c.send(ctx, iso8583link.Request{
		ProcessingCode: iso8583link.ProcBalance,
		Data:           accountID,
	})
	if err != nil {
		return 0, err
	}
	if err := codeError(resp.Code); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *ISO8583) Deposit(ctx context.Context, accountID string, amount int64) error {
	return c.post(ctx, iso8583link.ProcDeposit, accountID, amount)
}

func (c *ISO8583) Withdraw(ctx context.Context, accountID string, amount int64) error {
	return c.post(ctx, iso8583link.ProcWithdrawal, accountID, amount)
}

func (c *ISO8583) post(ctx context.Context, proc, accountID string, amount int64) error {
	resp, err := c.send(ctx, iso8583link.Request{
		ProcessingCode: proc,
		Amount:         amount,
		Data:           accountID,
	})
	if err != nil {
		return err
	}
	return codeError(resp.Code)
}
