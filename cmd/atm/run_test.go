package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alovak/cardflow-atm/internal/issuerdev"
	"github.com/alovak/cardflow-atm/issuer"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestRunKiosk(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard))

	config := issuer.DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.ISO8583Addr = "127.0.0.1:0"
	app := issuer.NewApp(logger, config)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)

	ctx := context.Background()
	admin := issuerdev.New("http://"+app.Addr, nil)
	acc, err := admin.CreateAccount(ctx, 500, "USD")
	require.NoError(t, err)
	card, err := admin.IssueCard(ctx, acc.ID)
	require.NoError(t, err)

	for _, link := range []string{"http", "iso8583"} {
		t.Run(link, func(t *testing.T) {
			input := strings.Join([]string{card.Number, card.PIN, "0", "1"}, "\n") + "\n"
			var out bytes.Buffer

			err := runKiosk(ctx, runOptions{
				bank:      link,
				issuerURL: "http://" + app.Addr,
				issuerISO: app.ISO8583ServerAddr,
				timeout:   5 * time.Second,
				cashFloat: 1000,
			}, strings.NewReader(input), &out, logger)
			require.NoError(t, err)

			require.Contains(t, out.String(), acc.ID+" balance: 500")
		})
	}

	t.Run("unknown link", func(t *testing.T) {
		err := runKiosk(ctx, runOptions{bank: "pigeon"}, strings.NewReader(""), io.Discard, logger)
		require.ErrorContains(t, err, "unknown bank link")
	})
}
