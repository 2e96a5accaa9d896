package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/alovak/cardflow-atm/internal/iso8583link"
	"github.com/alovak/cardflow-atm/issuer/models"
)

// HTTP talks to the issuer's /atm endpoints.
type HTTP struct {
	Base string
	HTTP *http.Client
}

var _ atm.Authenticator = (*HTTP)(nil)

func NewHTTP(base string, hc *http.Client) *HTTP {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

// statusError is a non 2xx answer.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status=%d body=%s", e.status, e.body)
}

func hasStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (c *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %w", method, path, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// IsCorrectPIN reports false for cards the issuer does not know or that
// expired. Any non 2xx answer is an error.
func (c *HTTP) IsCorrectPIN(ctx context.Context, card atm.Card, pin int) (bool, error) {
	var resp models.VerifyPINResponse
	err := c.do(ctx, http.MethodPost, "/atm/pin/verify", models.VerifyPINRequest{
		CardNumber: card.Number,
		PIN:        strconv.Itoa(pin),
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Valid, nil
}

func (c *HTTP) Accounts(ctx context.Context, card atm.Card) ([]string, error) {
	var resp models.AccountsLookupResponse
	err := c.do(ctx, http.MethodPost, "/atm/accounts/lookup", models.AccountsLookupRequest{CardNumber: card.Number}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (c *HTTP) Balance(ctx context.Context, accountID string) (int64, error) {
	var resp models.BalanceResponse
	if err := c.do(ctx, http.MethodGet, "/atm/accounts/"+url.PathEscape(accountID)+"/balance", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

func (c *HTTP) Deposit(ctx context.Context, accountID string, amount int64) error {
	return c.post(ctx, accountID, "deposit", amount)
}

func (c *HTTP) Withdraw(ctx context.Context, accountID string, amount int64) error {
	return c.post(ctx, accountID, "withdraw", amount)
}

func (c *HTTP) post(ctx context.Context, accountID, op string, amount int64) error {
	err := c.do(ctx, http.MethodPost, "/atm/accounts/"+url.PathEscape(accountID)+"/"+op, models.AmountRequest{Amount: amount}, nil)
	switch {
	case hasStatus(err, http.StatusUnprocessableEntity):
		return codeError(iso8583link.ResponseInsufficientFunds)
	case hasStatus(err, http.StatusBadRequest), hasStatus(err, http.StatusNotFound):
		return codeError(iso8583link.ResponseInvalidTransaction)
	}
	return err
}
