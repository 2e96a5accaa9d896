package issuer_test

import (
	"io"
	"net/http"
	"testing"

	"github.com/alovak/cardflow-atm/issuer"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestAppHealth(t *testing.T) {
	config := issuer.DefaultConfig()
	config.HTTPAddr = "127.0.0.1:0"
	config.ISO8583Addr = "127.0.0.1:0"

	app := issuer.NewApp(slog.New(slog.NewTextHandler(io.Discard)), config)
	require.NoError(t, app.Start())
	t.Cleanup(app.Shutdown)

	require.NotEmpty(t, app.ISO8583ServerAddr)

	for _, path := range []string{"/-/live", "/-/ready"} {
		resp, err := http.Get("http://" + app.Addr + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAppRejectsUnknownBackend(t *testing.T) {
	config := issuer.DefaultConfig()
	config.RepoBackend = "redis"

	app := issuer.NewApp(slog.New(slog.NewTextHandler(io.Discard)), config)
	require.ErrorContains(t, app.Start(), "unsupported REPO_BACKEND")
}
