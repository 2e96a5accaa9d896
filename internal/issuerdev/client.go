// Package issuerdev is a client for the issuer's account and card admin routes.
package issuerdev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alovak/cardflow-atm/issuer/models"
)

type Client struct {
	Base string
	HTTP *http.Client
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
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
		return fmt.Errorf("%s %s status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) CreateAccount(ctx context.Context, balance int64, currency string) (*models.Account, error) {
	var account models.Account
	err := c.do(ctx, http.MethodPost, "/accounts", models.CreateAccount{Balance: balance, Currency: currency}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// IssueCard returns the new card with its PIN, which the issuer reveals only here.
func (c *Client) IssueCard(ctx context.Context, accountID string) (*models.IssuedCard, error) {
	var card models.IssuedCard
	if err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(accountID)+"/cards", nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) SetCardholderName(ctx context.Context, accountID, cardID, name string) (*models.IssuedCard, error) {
	var card models.IssuedCard
	body := map[string]string{"cardholder_name": name}
	path := fmt.Sprintf("/accounts/%s/cards/%s/holder", url.PathEscape(accountID), url.PathEscape(cardID))
	if err := c.do(ctx, http.MethodPost, path, body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (c *Client) LinkAccount(ctx context.Context, accountID, cardID, linkedAccountID string) error {
	path := fmt.Sprintf("/accounts/%s/cards/%s/accounts", url.PathEscape(accountID), url.PathEscape(cardID))
	return c.do(ctx, http.MethodPost, path, models.LinkAccountRequest{AccountID: linkedAccountID}, nil)
}

func (c *Client) SetPIN(ctx context.Context, pan, pin string) error {
	return c.do(ctx, http.MethodPost, "/cards/pin", models.SetPINRequest{CardNumber: pan, PIN: pin}, nil)
}
