package issuer

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"github.com/alovak/cardflow-atm/issuer/models"
	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

var ErrNotFound = models.ErrNotFound

var ErrConflict = fmt.Errorf("conflict")

//go:embed schema.sql
var schema string

type Repository struct {
	Cards        []*models.Card
	Accounts     []*models.Account
	Transactions []*models.Transaction

	mu       sync.RWMutex
	panIndex map[string]*models.Card
	db       *sql.DB
	hashKey  []byte
}

func NewRepository() *Repository {
	return &Repository{
		Cards:        make([]*models.Card, 0),
		Accounts:     make([]*models.Account, 0),
		Transactions: make([]*models.Transaction, 0),
		panIndex:     make(map[string]*models.Card),
	}
}

// NewPGRepository constructs a db-backed repository.
func NewPGRepository(db *sql.DB, hashKey []byte) *Repository {
	return &Repository{db: db, hashKey: hashKey}
}

// EnsureSchema creates the issuer schema when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) CreateAccount(account *models.Account) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		acc := *account
		r.Accounts = append(r.Accounts, &acc)
		return nil
	}
	_, err := r.db.ExecContext(context.Background(), `
		INSERT INTO issuer.accounts(account_id, core_account_id, currency, available_balance, hold_balance)
		VALUES ($1,$2,$3,$4,$5)
	`, account.ID, account.ID, strings.ToUpper(account.Currency), account.AvailableBalance, account.HoldBalance)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *Repository) GetAccount(accountID string) (*models.Account, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		account := r.findAccount(accountID)
		if account == nil {
			return nil, ErrNotFound
		}
		acc := *account
		return &acc, nil
	}
	row := r.db.QueryRowContext(context.Background(), `SELECT account_id, currency, available_balance, hold_balance FROM issuer.accounts WHERE account_id=$1`, accountID)
	var id, cur string
	var avail, hold int64
	if err := row.Scan(&id, &cur, &avail, &hold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &models.Account{ID: id, Currency: cur, AvailableBalance: avail, HoldBalance: hold}, nil
}

// findAccount expects r.mu to be held.
func (r *Repository) findAccount(accountID string) *models.Account {
	for _, account := range r.Accounts {
		if account.ID == accountID {
			return account
		}
	}
	return nil
}

func (r *Repository) CreateCard(card *models.Card) error {
	panNorm := cardgen.NormalizePAN(card.Number)
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.panIndex[panNorm]; ok {
			return fmt.Errorf("card number exists: %w", ErrConflict)
		}
		c := *card
		c.Number = panNorm
		c.LinkedAccountIDs = append([]string(nil), card.LinkedAccountIDs...)
		r.Cards = append(r.Cards, &c)
		r.panIndex[panNorm] = &c
		return nil
	}
	bin := panNorm
	if len(bin) > 9 {
		bin = bin[:9]
	}
	last4 := cardgen.LastN(panNorm, 4)
	hash := cardgen.HashPANHMAC(panNorm, r.hashKey)
	_, err := r.db.ExecContext(context.Background(), `
		INSERT INTO issuer.cards(card_id, account_id, bin, last4, expiry_yymm, status, pan_hash, pin_hash, cardholder_name)
		VALUES ($1,$2,$3,$4,$5,'ISSUED',$6,$7,$8)
	`, card.ID, card.AccountID, bin, last4, card.ExpirationDate, hash, card.PINHash, card.CardholderName)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetCard returns the card cardID issued for accountID.
func (r *Repository) GetCard(accountID, cardID string) (*models.Card, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		c := r.findCard(cardID)
		if c == nil || c.AccountID != accountID {
			return nil, ErrNotFound
		}
		card := *c
		card.LinkedAccountIDs = append([]string(nil), c.LinkedAccountIDs...)
		return &card, nil
	}
	row := r.db.QueryRowContext(context.Background(), `
		SELECT card_id, account_id, last4, expiry_yymm, cardholder_name
		  FROM issuer.cards WHERE card_id=$1 AND account_id=$2
	`, cardID, accountID)
	var c models.Card
	var last4 string
	if err := row.Scan(&c.ID, &c.AccountID, &last4, &c.ExpirationDate, &c.CardholderName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Number = "****" + last4
	return &c, nil
}

// UpdateCardholderName updates the cardholder name for a card and returns the updated card.
func (r *Repository) UpdateCardholderName(accountID, cardID, name string) (*models.Card, error) {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, c := range r.Cards {
			if c.ID == cardID && c.AccountID == accountID {
				c.CardholderName = name
				updated := *c
				return &updated, nil
			}
		}
		return nil, ErrNotFound
	}
	row := r.db.QueryRowContext(context.Background(), `
		UPDATE issuer.cards SET cardholder_name=$3
		 WHERE card_id=$1 AND account_id=$2
		RETURNING card_id, account_id, last4, expiry_yymm, cardholder_name
	`, cardID, accountID, name)
	var c models.Card
	var last4 string
	if err := row.Scan(&c.ID, &c.AccountID, &last4, &c.ExpirationDate, &c.CardholderName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Number = "****" + last4
	return &c, nil
}

// UpdatePINHash replaces the PIN verification value of a card.
func (r *Repository) UpdatePINHash(cardID string, hash []byte) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.findCard(cardID)
		if c == nil {
			return ErrNotFound
		}
		c.PINHash = hash
		return nil
	}
	res, err := r.db.ExecContext(context.Background(), `UPDATE issuer.cards SET pin_hash=$2 WHERE card_id=$1`, cardID, hash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkAccount makes accountID reachable with the card after the accounts linked before it.
func (r *Repository) LinkAccount(cardID, accountID string) error {
	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.findCard(cardID)
		if c == nil || r.findAccount(accountID) == nil {
			return ErrNotFound
		}
		if c.AccountID == accountID {
			return fmt.Errorf("primary account: %w", ErrConflict)
		}
		for _, id := range c.LinkedAccountIDs {
			if id == accountID {
				return fmt.Errorf("already linked: %w", ErrConflict)
			}
		}
		c.LinkedAccountIDs = append(c.LinkedAccountIDs, accountID)
		return nil
	}
	res, err := r.db.ExecContext(context.Background(), `
		INSERT INTO issuer.card_accounts(card_id, account_id)
		SELECT $1, $2
		 WHERE NOT EXISTS (SELECT 1 FROM issuer.cards WHERE card_id=$1 AND account_id=$2)
	`, cardID, accountID)
	if isUniqueViolation(err) {
		return fmt.Errorf("already linked: %w", ErrConflict)
	}
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("primary account: %w", ErrConflict)
	}
	return nil
}

// findCard expects r.mu to be held.
func (r *Repository) findCard(cardID string) *models.Card {
	for _, c := range r.Cards {
		if c.ID == cardID {
			return c
		}
	}
	return nil
}

// ExistsCardNumber reports whether a PAN already exists.
func (r *Repository) ExistsCardNumber(pan string) (bool, error) {
	_, err := r.FindCardByNumber(context.Background(), pan)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// FindCardByNumber looks a card up by PAN. The DB backend stores only the PAN
// hash, so the returned Number is masked there.
func (r *Repository) FindCardByNumber(ctx context.Context, pan string) (*models.Card, error) {
	panNorm := cardgen.NormalizePAN(pan)
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		c, ok := r.panIndex[panNorm]
		if !ok {
			return nil, ErrNotFound
		}
		card := *c
		card.LinkedAccountIDs = append([]string(nil), c.LinkedAccountIDs...)
		return &card, nil
	}
	hash := cardgen.HashPANHMAC(panNorm, r.hashKey)
	row := r.db.QueryRowContext(ctx, `
		SELECT card_id, account_id, last4, expiry_yymm, cardholder_name, pin_hash
		  FROM issuer.cards WHERE pan_hash=$1 AND status='ISSUED'
	`, hash)
	var c models.Card
	var last4 string
	if err := row.Scan(&c.ID, &c.AccountID, &last4, &c.ExpirationDate, &c.CardholderName, &c.PINHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Number = "****" + last4

	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM issuer.card_accounts WHERE card_id=$1 ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		c.LinkedAccountIDs = append(c.LinkedAccountIDs, id)
	}
	return &c, rows.Err()
}

// PostTransaction applies a deposit or withdrawal to the account balance and
// records it in one step. Withdrawals never take the balance below zero.
func (r *Repository) PostTransaction(ctx context.Context, t *models.Transaction) (*models.Account, error) {
	if t.Amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	delta := t.Amount
	switch t.Type {
	case models.TransactionTypeDeposit:
	case models.TransactionTypeWithdrawal:
		delta = -t.Amount
	default:
		return nil, fmt.Errorf("unknown transaction type %q", t.Type)
	}

	if r.db == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		account := r.findAccount(t.AccountID)
		if account == nil {
			return nil, ErrNotFound
		}
		var err error
		if delta > 0 {
			err = account.Credit(t.Amount)
		} else {
			err = account.Debit(t.Amount)
		}
		if err != nil {
			return nil, err
		}
		t.Currency = account.Currency
		tx := *t
		r.Transactions = append(r.Transactions, &tx)
		acc := *account
		return &acc, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	// set per-transaction statement timeout to avoid long hangs
	if _, err := tx.ExecContext(ctx, `set local statement_timeout = '3s'`); err != nil {
		return nil, err
	}

	var acc models.Account
	err = tx.QueryRowContext(ctx, `
		UPDATE issuer.accounts
		   SET available_balance = available_balance + $2,
			   updated_at        = now()
		 WHERE account_id=$1 AND available_balance + $2 >= 0
		RETURNING account_id, currency, available_balance, hold_balance
	`, t.AccountID, delta).Scan(&acc.ID, &acc.Currency, &acc.AvailableBalance, &acc.HoldBalance)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := r.GetAccount(t.AccountID); errors.Is(gerr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, models.ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}
	t.Currency = acc.Currency

	_, err = tx.ExecContext(ctx, `
		INSERT INTO issuer.transactions(tx_id, account_id, card_id, type, amount, currency, status, authorization_code, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, t.ID, t.AccountID, t.CardID, string(t.Type), t.Amount, t.Currency, string(t.Status), t.AuthorizationCode, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &acc, nil
}

// ListTransactions returns all transactions for a given account ID, newest first.
func (r *Repository) ListTransactions(accountID string) ([]*models.Transaction, error) {
	if r.db == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		var transactions []*models.Transaction
		for i := len(r.Transactions) - 1; i >= 0; i-- {
			if t := r.Transactions[i]; t.AccountID == accountID {
				tx := *t
				transactions = append(transactions, &tx)
			}
		}
		return transactions, nil
	}
	rows, err := r.db.QueryContext(context.Background(), `
		SELECT tx_id, account_id, card_id, type, amount, currency, status, authorization_code, created_at
		  FROM issuer.transactions WHERE account_id=$1 ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var typ, status string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.CardID, &typ, &t.Amount, &t.Currency, &status, &t.AuthorizationCode, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(typ)
		t.Status = models.TransactionStatus(status)
		out = append(out, &t)
	}
	return out, rows.Err()
}

// Ping returns DB readiness
func (r *Repository) Ping(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return hasPGCode(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasPGCode(err, "23503")
}

func hasPGCode(err error, code string) bool {
	var pe *pq.Error
	if errors.As(err, &pe) && string(pe.Code) == code {
		return true
	}
	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) && pgerr.Code == code {
		return true
	}
	return false
}
