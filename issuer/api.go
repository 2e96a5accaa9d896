package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alovak/cardflow-atm/internal/expiry"
	"github.com/alovak/cardflow-atm/issuer/models"
	"github.com/go-chi/chi/v5"
)

// API is a HTTP API for the issuer service
type API struct {
	issuer *Service
}

func NewAPI(issuer *Service) *API {
	return &API{
		issuer: issuer,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", a.createAccount)
		r.Route("/{accountID}", func(r chi.Router) {
			r.Get("/", a.getAccount)
			r.Post("/cards", a.issueCard)
			r.Post("/cards/{cardID}/holder", a.setCardholderName)
			r.Post("/cards/{cardID}/accounts", a.linkAccount)
			r.Get("/transactions", a.getTransactions)
		})
	})
	r.Post("/cards/pin", a.setPIN)

	// endpoints used by the kiosks
	r.Route("/atm", func(r chi.Router) {
		r.Post("/pin/verify", a.verifyPIN)
		r.Post("/accounts/lookup", a.lookupAccounts)
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.Get("/balance", a.balance)
			r.Post("/deposit", a.deposit)
			r.Post("/withdraw", a.withdraw)
		})
	})
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	create := models.CreateAccount{}
	err := json.NewDecoder(r.Body).Decode(&create)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := a.issuer.CreateAccount(create)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

func (a *API) getAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	account, err := a.issuer.GetAccount(accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

func (a *API) issueCard(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	card, pin, err := a.issuer.IssueCard(accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.IssuedCard{
		Card:     card,
		CardFace: formatCardFace(card.ExpirationDate, card.CardholderName),
		PIN:      pin,
	})
}

// setCardholderName sets the name printed on the card face.
// Request body: {"cardholder_name": "JOHN DOE"}
func (a *API) setCardholderName(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	cardID := chi.URLParam(r, "cardID")
	var body struct {
		CardholderName string `json:"cardholder_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.CardholderName == "" {
		http.Error(w, "cardholder_name is required", http.StatusBadRequest)
		return
	}
	updated, err := a.issuer.SetCardholderName(accountID, cardID, body.CardholderName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.IssuedCard{
		Card:     updated,
		CardFace: formatCardFace(updated.ExpirationDate, updated.CardholderName),
	})
}

func (a *API) linkAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	cardID := chi.URLParam(r, "cardID")
	var req models.LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	if err := a.issuer.LinkAccount(accountID, cardID, req.AccountID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setPIN(w http.ResponseWriter, r *http.Request) {
	var req models.SetPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := a.issuer.SetPIN(req.CardNumber, req.PIN); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// formatCardFace returns "MM/YY [NAME]" for a stored YYMM expiry.
func formatCardFace(yymm, name string) string {
	face, err := expiry.FaceFromYYMM(yymm)
	if err != nil {
		face = ""
	}
	if name != "" {
		if face != "" {
			face += " "
		}
		face += name
	}
	return face
}

func (a *API) getTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	transactions, err := a.issuer.ListTransactions(accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (a *API) verifyPIN(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// unknown and expired cards are a failed check, so a 404 always means
	// the route itself is missing
	valid, err := a.issuer.VerifyPIN(r.Context(), req.CardNumber, req.PIN)
	if err != nil && !errors.Is(err, models.ErrInvalidCard) {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.VerifyPINResponse{Valid: valid})
}

func (a *API) lookupAccounts(w http.ResponseWriter, r *http.Request) {
	var req models.AccountsLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accounts, err := a.issuer.AccountsForCard(r.Context(), req.CardNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AccountsLookupResponse{Accounts: accounts})
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	account, err := a.issuer.Balance(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.BalanceResponse{
		AccountID: account.ID,
		Balance:   account.AvailableBalance,
		Currency:  account.Currency,
	})
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	a.post(w, r, a.issuer.Deposit)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	a.post(w, r, a.issuer.Withdraw)
}

func (a *API) post(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID string, amount int64) (*models.Transaction, error)) {
	var req models.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	transaction, err := fn(r.Context(), chi.URLParam(r, "accountID"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transaction)
}

// writeError maps service errors to status codes. Declines use 422 so the
// kiosk can tell them apart from failures.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, models.ErrInvalidCard):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidPIN):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
