package issuerdev

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/alovak/cardflow-atm/issuer"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	router := chi.NewRouter()
	issuer.NewAPI(issuer.NewService(issuer.NewRepository(), issuer.DefaultConfig())).AppendRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	cli := New(srv.URL+"/", nil)

	acc, err := cli.CreateAccount(ctx, 100, "USD")
	require.NoError(t, err)
	savings, err := cli.CreateAccount(ctx, 0, "USD")
	require.NoError(t, err)

	card, err := cli.IssueCard(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, card.PIN, 4)

	named, err := cli.SetCardholderName(ctx, acc.ID, card.ID, "JANE ROE")
	require.NoError(t, err)
	require.Contains(t, named.CardFace, "JANE ROE")

	require.NoError(t, cli.LinkAccount(ctx, acc.ID, card.ID, savings.ID))
	require.NoError(t, cli.SetPIN(ctx, card.Number, "4321"))

	err = cli.LinkAccount(ctx, acc.ID, card.ID, savings.ID)
	require.ErrorContains(t, err, "status=409")
}
