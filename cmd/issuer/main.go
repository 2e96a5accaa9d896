package main

import (
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/cardflow-atm/issuer"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("loading .env", slog.Any("err", err))
		os.Exit(1)
	}

	opts, closeHSM, err := pinVerifierOptions()
	if err != nil {
		logger.Error("setting up pin verifier", slog.Any("err", err))
		os.Exit(1)
	}
	defer closeHSM()

	app := issuer.NewApp(logger, issuer.ConfigFromEnv(), opts...)
	if err := app.Start(); err != nil {
		logger.Error("starting issuer", slog.Any("err", err))
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
