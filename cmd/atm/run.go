package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/alovak/cardflow-atm/internal/bankclient"
	"github.com/alovak/cardflow-atm/internal/kiosk"
	"github.com/alovak/cardflow-atm/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

type runOptions struct {
	bank        string
	issuerURL   string
	issuerISO   string
	metricsAddr string
	idleDelay   time.Duration
	timeout     time.Duration
	cashFloat   int64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve customers on this terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			bank:        stringFlag(cmd, "bank", "ATM_BANK"),
			issuerURL:   stringFlag(cmd, "issuer-url", "ATM_ISSUER_URL"),
			issuerISO:   stringFlag(cmd, "issuer-iso8583", "ATM_ISSUER_ISO8583"),
			metricsAddr: stringFlag(cmd, "metrics-addr", "ATM_METRICS_ADDR"),
		}
		opts.idleDelay, _ = cmd.Flags().GetDuration("idle-delay")
		opts.timeout, _ = cmd.Flags().GetDuration("timeout")
		opts.cashFloat, _ = cmd.Flags().GetInt64("cash-float")

		level := slog.LevelInfo
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runKiosk(ctx, opts, os.Stdin, os.Stdout, logger)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("bank", "http", "issuer link: http or iso8583 (env ATM_BANK)")
	runCmd.Flags().String("issuer-url", "http://localhost:9090", "issuer HTTP base URL (env ATM_ISSUER_URL)")
	runCmd.Flags().String("issuer-iso8583", "localhost:8583", "issuer ISO 8583 address (env ATM_ISSUER_ISO8583)")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (env ATM_METRICS_ADDR)")
	runCmd.Flags().Duration("idle-delay", 0, "pause between cycles that found no card")
	runCmd.Flags().Duration("timeout", 10*time.Second, "issuer request timeout")
	runCmd.Flags().Int64("cash-float", 100_000, "cash loaded in the simulated bin")
	runCmd.Flags().Bool("debug", false, "log at debug level")
}

// stringFlag prefers an explicit flag, then the environment, then the flag default.
func stringFlag(cmd *cobra.Command, name, env string) string {
	v, _ := cmd.Flags().GetString(name)
	if cmd.Flags().Changed(name) {
		return v
	}
	if e := os.Getenv(env); e != "" {
		return e
	}
	return v
}

// runKiosk serves customers until ctx is done or in is exhausted.
func runKiosk(ctx context.Context, opts runOptions, in io.Reader, out io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bank, closeBank, err := dialBank(opts)
	if err != nil {
		return err
	}
	defer closeBank()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if opts.metricsAddr != "" {
		stopMetrics, err := serveMetrics(opts.metricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	console := kiosk.NewConsole(in, out)
	console.OnEOF = cancel

	controller := atm.NewController(atm.Devices{
		CardReader: console,
		Bank:       bank,
		Keypad:     console,
		Display:    console,
		CashBin:    kiosk.NewCashBin(opts.cashFloat, console, out),
	},
		atm.WithLogger(logger),
		atm.WithHooks(m.Hooks(atm.Hooks{})),
		atm.WithIdleDelay(opts.idleDelay),
	)

	err = controller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func dialBank(opts runOptions) (atm.Authenticator, func(), error) {
	switch opts.bank {
	case "http":
		return bankclient.NewHTTP(opts.issuerURL, &http.Client{Timeout: opts.timeout}), func() {}, nil
	case "iso8583":
		bank, err := bankclient.DialISO8583(opts.issuerISO, opts.timeout)
		if err != nil {
			return nil, nil, err
		}
		return bank, func() { bank.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown bank link %q", opts.bank)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening metrics port: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics server started", slog.String("addr", l.Addr().String()))
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Error("serving metrics", slog.Any("err", err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}, nil
}
