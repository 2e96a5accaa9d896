package issuer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"github.com/alovak/cardflow-atm/internal/expiry"
	"github.com/alovak/cardflow-atm/internal/security"
	"github.com/alovak/cardflow-atm/issuer/models"
	"github.com/google/uuid"
)

const (
	defaultBIN    = "421234"
	pinLength     = 4
	issueAttempts = 5
)

type Service struct {
	repo     *Repository
	cfg      *Config
	verifier security.PINVerifier
	now      func() time.Time
}

type ServiceOption func(*Service)

// WithPINVerifier replaces the HMAC verifier built from Config.PINKey,
// e.g. with an HSM-backed one.
func WithPINVerifier(v security.PINVerifier) ServiceOption {
	return func(s *Service) {
		s.verifier = v
	}
}

// WithClock is used by tests to issue and check cards at a fixed time.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo *Repository, cfg *Config, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.verifier == nil {
		s.verifier = security.NewHMACVerifier([]byte(cfg.PINKey))
	}

	return s
}

func (i *Service) CreateAccount(req models.CreateAccount) (*models.Account, error) {
	if req.Balance < 0 {
		return nil, models.ErrInvalidAmount
	}
	account := &models.Account{
		ID:               uuid.New().String(),
		AvailableBalance: req.Balance,
		Currency:         req.Currency,
	}

	err := i.repo.CreateAccount(account)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return account, nil
}

func (i *Service) GetAccount(accountID string) (*models.Account, error) {
	account, err := i.repo.GetAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}

	return account, nil
}

// IssueCard creates a card for the account with a random PIN. The clear PIN
// is returned to the caller once and only its verification value is kept.
func (i *Service) IssueCard(accountID string) (*models.Card, string, error) {
	if _, err := i.repo.GetAccount(accountID); err != nil {
		return nil, "", fmt.Errorf("finding account: %w", err)
	}

	years := expiry.YearsForProduct(i.cfg.CardProduct, 0)
	expYYMM := expiry.YYMM(i.now(), years)

	bin := i.cfg.BINPrefix
	if err := cardgen.ValidateBIN(bin); err != nil {
		bin = defaultBIN
	}

	pin, err := security.GeneratePIN(pinLength)
	if err != nil {
		return nil, "", fmt.Errorf("generating pin: %w", err)
	}

	exists := func(pan string) (bool, error) { return i.repo.ExistsCardNumber(pan) }
	// the insert can still race with another issuer, so retry on conflict
	for attempt := 0; attempt < issueAttempts; attempt++ {
		pan, err := cardgen.GenerateUniquePAN(bin, 16, "", 10, exists)
		if err != nil {
			return nil, "", fmt.Errorf("generate unique pan: %w", err)
		}
		hash, err := i.verifier.HashPIN(pan, pin)
		if err != nil {
			return nil, "", fmt.Errorf("hashing pin: %w", err)
		}

		card := &models.Card{
			ID:             uuid.New().String(),
			AccountID:      accountID,
			Number:         pan,
			ExpirationDate: expYYMM,
			PINHash:        hash,
		}
		err = i.repo.CreateCard(card)
		if err == nil {
			return card, pin, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, "", fmt.Errorf("creating card: %w", err)
		}
	}

	return nil, "", fmt.Errorf("could not create unique card after retries")
}

// SetPIN replaces the PIN of the card identified by pan.
func (i *Service) SetPIN(pan, pin string) error {
	if _, err := security.NormalizePIN(pin); err != nil {
		return models.ErrInvalidPIN
	}
	card, err := i.repo.FindCardByNumber(context.Background(), pan)
	if err != nil {
		return fmt.Errorf("finding card: %w", err)
	}
	hash, err := i.verifier.HashPIN(pan, pin)
	if err != nil {
		return fmt.Errorf("hashing pin: %w", err)
	}

	return i.repo.UpdatePINHash(card.ID, hash)
}

// LinkAccount adds an extra account to the card of accountID.
func (i *Service) LinkAccount(accountID, cardID, linkedAccountID string) error {
	card, err := i.findAccountCard(accountID, cardID)
	if err != nil {
		return err
	}
	if err := i.repo.LinkAccount(card.ID, linkedAccountID); err != nil {
		return fmt.Errorf("linking account: %w", err)
	}

	return nil
}

func (i *Service) findAccountCard(accountID, cardID string) (*models.Card, error) {
	card, err := i.repo.GetCard(accountID, cardID)
	if err != nil {
		return nil, fmt.Errorf("finding card: %w", err)
	}
	return card, nil
}

// SetCardholderName sets user-provided cardholder name on a card.
func (i *Service) SetCardholderName(accountID, cardID, name string) (*models.Card, error) {
	updated, err := i.repo.UpdateCardholderName(accountID, cardID, name)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListTransactions returns a list of transactions for the given account ID.
func (i *Service) ListTransactions(accountID string) ([]*models.Transaction, error) {
	transactions, err := i.repo.ListTransactions(accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return transactions, nil
}

// VerifyPIN reports whether pin opens the card. Unknown and expired cards
// fail with models.ErrInvalidCard.
func (i *Service) VerifyPIN(ctx context.Context, pan, pin string) (bool, error) {
	card, err := i.usableCard(ctx, pan)
	if err != nil {
		return false, err
	}

	ok, err := i.verifier.VerifyPIN(pan, pin, card.PINHash)
	if err != nil {
		return false, fmt.Errorf("verifying pin: %w", err)
	}

	return ok, nil
}

// AccountsForCard lists the accounts reachable with the card, primary first.
func (i *Service) AccountsForCard(ctx context.Context, pan string) ([]string, error) {
	card, err := i.usableCard(ctx, pan)
	if err != nil {
		return nil, err
	}

	return card.AccountIDs(), nil
}

func (i *Service) usableCard(ctx context.Context, pan string) (*models.Card, error) {
	card, err := i.repo.FindCardByNumber(ctx, pan)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.ErrInvalidCard
		}
		return nil, fmt.Errorf("finding card: %w", err)
	}

	expired, err := expiry.IsExpired(card.ExpirationDate, i.now(), nil)
	if err != nil {
		return nil, fmt.Errorf("checking expiry: %w", err)
	}
	if expired {
		return nil, models.ErrInvalidCard
	}

	return card, nil
}

func (i *Service) Balance(ctx context.Context, accountID string) (*models.Account, error) {
	return i.GetAccount(accountID)
}

func (i *Service) Deposit(ctx context.Context, accountID string, amount int64) (*models.Transaction, error) {
	return i.post(ctx, accountID, models.TransactionTypeDeposit, amount)
}

// Withdraw debits the account. It fails with models.ErrInsufficientFunds
// and leaves the balance untouched when amount exceeds it.
func (i *Service) Withdraw(ctx context.Context, accountID string, amount int64) (*models.Transaction, error) {
	return i.post(ctx, accountID, models.TransactionTypeWithdrawal, amount)
}

func (i *Service) post(ctx context.Context, accountID string, typ models.TransactionType, amount int64) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	authCode, err := generateAuthorizationCode()
	if err != nil {
		return nil, err
	}
	transaction := &models.Transaction{
		ID:                uuid.New().String(),
		AccountID:         accountID,
		Type:              typ,
		Amount:            amount,
		Status:            models.TransactionStatusPosted,
		AuthorizationCode: authCode,
		CreatedAt:         i.now().UTC(),
	}

	if _, err := i.repo.PostTransaction(ctx, transaction); err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) || errors.Is(err, models.ErrInvalidAmount) {
			return nil, err
		}
		return nil, fmt.Errorf("posting %s: %w", typ, err)
	}

	return transaction, nil
}

func generateAuthorizationCode() (string, error) {
	return cardgen.RandomDigits(6)
}
