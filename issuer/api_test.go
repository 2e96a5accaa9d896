package issuer_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alovak/cardflow-atm/issuer"
	"github.com/alovak/cardflow-atm/issuer/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()

	router := chi.NewRouter()
	api := issuer.NewAPI(issuer.NewService(issuer.NewRepository(), issuer.DefaultConfig()))
	api.AppendRoutes(router)

	return router
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	router.ServeHTTP(w, req)

	return w
}

func createAccount(t *testing.T, router http.Handler, balance int64) models.Account {
	t.Helper()

	w := do(t, router, http.MethodPost, "/accounts", models.CreateAccount{Balance: balance, Currency: "USD"})
	require.Equal(t, http.StatusCreated, w.Code)

	account := models.Account{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))

	return account
}

func issueCard(t *testing.T, router http.Handler, accountID string) models.IssuedCard {
	t.Helper()

	w := do(t, router, http.MethodPost, "/accounts/"+accountID+"/cards", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	card := models.IssuedCard{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))

	return card
}

func TestAPI(t *testing.T) {
	router := newRouter(t)

	t.Run("create account", func(t *testing.T) {
		create := models.CreateAccount{
			Balance:  10_00,
			Currency: "USD",
		}

		w := do(t, router, http.MethodPost, "/accounts", create)
		require.Equal(t, http.StatusCreated, w.Code)

		account := models.Account{}
		err := json.Unmarshal(w.Body.Bytes(), &account)
		require.NoError(t, err)

		require.Equal(t, create.Balance, account.AvailableBalance)
		require.Equal(t, create.Currency, account.Currency)
		require.NotEmpty(t, account.ID)
	})

	t.Run("unknown account", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/accounts/nope/", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIssueCard(t *testing.T) {
	router := newRouter(t)
	acc := createAccount(t, router, 100_00)

	card := issueCard(t, router, acc.ID)

	require.Len(t, card.Number, 16)
	require.Len(t, card.PIN, 4)
	require.Contains(t, card.CardFace, "/")
	require.Equal(t, acc.ID, card.AccountID)

	t.Run("pin hash is never serialized", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/accounts/"+acc.ID+"/cards/"+card.ID+"/holder",
			map[string]string{"cardholder_name": "JOHN DOE"})
		require.Equal(t, http.StatusOK, w.Code)
		require.NotContains(t, w.Body.String(), "pin")
		require.Contains(t, w.Body.String(), "JOHN DOE")
	})

	t.Run("card of another account", func(t *testing.T) {
		other := createAccount(t, router, 0)
		w := do(t, router, http.MethodPost, "/accounts/"+other.ID+"/cards/"+card.ID+"/holder",
			map[string]string{"cardholder_name": "X"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestATMEndpoints(t *testing.T) {
	router := newRouter(t)
	acc := createAccount(t, router, 100_00)
	savings := createAccount(t, router, 5_00)
	card := issueCard(t, router, acc.ID)

	w := do(t, router, http.MethodPost, "/accounts/"+acc.ID+"/cards/"+card.ID+"/accounts",
		models.LinkAccountRequest{AccountID: savings.ID})
	require.Equal(t, http.StatusNoContent, w.Code)

	t.Run("verify pin", func(t *testing.T) {
		var resp models.VerifyPINResponse

		w := do(t, router, http.MethodPost, "/atm/pin/verify", models.VerifyPINRequest{CardNumber: card.Number, PIN: card.PIN})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.True(t, resp.Valid)

		w = do(t, router, http.MethodPost, "/atm/pin/verify", models.VerifyPINRequest{CardNumber: card.Number, PIN: "0000"})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.False(t, resp.Valid)
	})

	t.Run("unknown card", func(t *testing.T) {
		var resp models.VerifyPINResponse

		w := do(t, router, http.MethodPost, "/atm/pin/verify", models.VerifyPINRequest{CardNumber: "4000000000000002", PIN: "1234"})
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.False(t, resp.Valid)

		w = do(t, router, http.MethodPost, "/atm/accounts/lookup", models.AccountsLookupRequest{CardNumber: "4000000000000002"})
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("change pin", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/cards/pin", models.SetPINRequest{CardNumber: card.Number, PIN: "12"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, router, http.MethodPost, "/cards/pin", models.SetPINRequest{CardNumber: card.Number, PIN: "0123"})
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, router, http.MethodPost, "/cards/pin", models.SetPINRequest{CardNumber: card.Number, PIN: "9876"})
		require.Equal(t, http.StatusNoContent, w.Code)

		var resp models.VerifyPINResponse
		w = do(t, router, http.MethodPost, "/atm/pin/verify", models.VerifyPINRequest{CardNumber: card.Number, PIN: "9876"})
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.True(t, resp.Valid)
	})

	t.Run("lookup accounts", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/atm/accounts/lookup", models.AccountsLookupRequest{CardNumber: card.Number})
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.AccountsLookupResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, []string{acc.ID, savings.ID}, resp.Accounts)
	})

	t.Run("deposit and withdraw", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/atm/accounts/"+acc.ID+"/deposit", models.AmountRequest{Amount: 50_00})
		require.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, http.MethodPost, "/atm/accounts/"+acc.ID+"/withdraw", models.AmountRequest{Amount: 30_00})
		require.Equal(t, http.StatusOK, w.Code)

		var tx models.Transaction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tx))
		require.Equal(t, models.TransactionTypeWithdrawal, tx.Type)
		require.Len(t, tx.AuthorizationCode, 6)

		w = do(t, router, http.MethodGet, "/atm/accounts/"+acc.ID+"/balance", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var balance models.BalanceResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
		require.Equal(t, int64(120_00), balance.Balance)
		require.Equal(t, "USD", balance.Currency)
	})

	t.Run("withdraw more than the balance is declined", func(t *testing.T) {
		w := do(t, router, http.MethodPost, "/atm/accounts/"+savings.ID+"/withdraw", models.AmountRequest{Amount: 5_01})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = do(t, router, http.MethodPost, "/atm/accounts/"+savings.ID+"/withdraw", models.AmountRequest{Amount: 0})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("transactions newest first", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/accounts/"+acc.ID+"/transactions", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var txs []models.Transaction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
		require.Len(t, txs, 2)
		require.Equal(t, models.TransactionTypeWithdrawal, txs[0].Type)
		require.Equal(t, models.TransactionTypeDeposit, txs[1].Type)
	})
}
