package iso8583

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"github.com/alovak/cardflow-atm/internal/iso8583link"
	"github.com/alovak/cardflow-atm/issuer/models"
	"github.com/moov-io/iso8583"
	connection "github.com/moov-io/iso8583-connection"
	"github.com/moov-io/iso8583-connection/server"
	"golang.org/x/exp/slog"
)

const requestTimeout = 10 * time.Second

// Bank is the part of the issuer service the kiosks reach over ISO 8583.
type Bank interface {
	VerifyPIN(ctx context.Context, pan, pin string) (bool, error)
	AccountsForCard(ctx context.Context, pan string) ([]string, error)
	Balance(ctx context.Context, accountID string) (*models.Account, error)
	Deposit(ctx context.Context, accountID string, amount int64) (*models.Transaction, error)
	Withdraw(ctx context.Context, accountID string, amount int64) (*models.Transaction, error)
}

type Server struct {
	Addr   string
	logger *slog.Logger
	bank   Bank
	server *server.Server
}

func NewServer(logger *slog.Logger, addr string, bank Bank) *Server {
	return &Server{
		Addr:   addr,
		logger: logger.With(slog.String("component", "iso8583")),
		bank:   bank,
	}
}

func (s *Server) Start() error {
	srv := server.New(iso8583link.Spec, iso8583link.ReadMessageLength, iso8583link.WriteMessageLength,
		connection.InboundMessageHandler(s.handleMessage),
	)

	if err := srv.Start(s.Addr); err != nil {
		return fmt.Errorf("starting iso8583 server: %w", err)
	}
	s.Addr = srv.Addr
	s.server = srv
	s.logger.Info("iso8583 server started", slog.String("addr", s.Addr))

	return nil
}

func (s *Server) Close() error {
	if s.server != nil {
		s.server.Close()
	}
	return nil
}

func (s *Server) handleMessage(c *connection.Connection, message *iso8583.Message) {
	req, err := iso8583link.ParseRequest(message)
	if err != nil {
		s.logger.Error("parsing request", slog.Any("err", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp := s.process(ctx, req)
	s.logger.Debug("request processed",
		slog.String("mti", req.MTI),
		slog.String("proc", req.ProcessingCode),
		slog.String("stan", req.STAN),
		slog.String("code", resp.Code),
	)

	reply, err := iso8583link.NewResponse(req, resp)
	if err != nil {
		s.logger.Error("building response", slog.Any("err", err))
		return
	}
	if err := c.Reply(reply); err != nil {
		s.logger.Error("replying", slog.String("stan", req.STAN), slog.Any("err", err))
	}
}

func (s *Server) process(ctx context.Context, req iso8583link.Request) iso8583link.Response {
	if iso8583link.RequestMTI(req.ProcessingCode) != req.MTI {
		return iso8583link.Response{Code: iso8583link.ResponseInvalidTransaction}
	}

	switch req.ProcessingCode {
	case iso8583link.ProcVerifyPIN:
		ok, err := s.bank.VerifyPIN(ctx, req.PAN, req.Data)
		if err != nil {
			return s.failure(req, err)
		}
		if !ok {
			return iso8583link.Response{Code: iso8583link.ResponseIncorrectPIN}
		}
		return iso8583link.Response{Code: iso8583link.ResponseApproved}

	case iso8583link.ProcAccountList:
		accounts, err := s.bank.AccountsForCard(ctx, req.PAN)
		if err != nil {
			return s.failure(req, err)
		}
		return iso8583link.Response{Code: iso8583link.ResponseApproved, Data: strings.Join(accounts, ",")}

	case iso8583link.ProcBalance:
		return s.balance(ctx, req)

	case iso8583link.ProcDeposit:
		if _, err := s.bank.Deposit(ctx, req.Data, req.Amount); err != nil {
			return s.failure(req, err)
		}
		return s.balance(ctx, req)

	case iso8583link.ProcWithdrawal:
		if _, err := s.bank.Withdraw(ctx, req.Data, req.Amount); err != nil {
			return s.failure(req, err)
		}
		return s.balance(ctx, req)
	}

	return iso8583link.Response{Code: iso8583link.ResponseInvalidTransaction}
}

func (s *Server) balance(ctx context.Context, req iso8583link.Request) iso8583link.Response {
	account, err := s.bank.Balance(ctx, req.Data)
	if err != nil {
		return s.failure(req, err)
	}
	return iso8583link.Response{Code: iso8583link.ResponseApproved, Balance: account.AvailableBalance}
}

func (s *Server) failure(req iso8583link.Request, err error) iso8583link.Response {
	switch {
	case errors.Is(err, models.ErrInvalidCard):
		return iso8583link.Response{Code: iso8583link.ResponseInvalidCard}
	case errors.Is(err, models.ErrInsufficientFunds):
		return iso8583link.Response{Code: iso8583link.ResponseInsufficientFunds}
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrNotFound):
		return iso8583link.Response{Code: iso8583link.ResponseInvalidTransaction}
	}

	s.logger.Error("processing request",
		slog.String("proc", req.ProcessingCode),
		slog.String("card", cardgen.MaskPAN(req.PAN)),
		slog.Any("err", err),
	)
	return iso8583link.Response{Code: iso8583link.ResponseSystemError}
}
