// Package iso8583link holds the message conventions shared by the issuer's
// ISO 8583 server and the kiosk client.
package iso8583link

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/moov-io/iso8583"
	"github.com/moov-io/iso8583/network"
	"github.com/moov-io/iso8583/specs"
)

// Spec is the message spec of the link.
var Spec = specs.Spec87ASCII

const (
	MTIAuthorizationRequest  = "0100"
	MTIAuthorizationResponse = "0110"
	MTIFinancialRequest      = "0200"
	MTIFinancialResponse     = "0210"
)

// Processing codes (field 3).
const (
	ProcWithdrawal  = "010000"
	ProcDeposit     = "210000"
	ProcBalance     = "310000"
	ProcVerifyPIN   = "900000"
	ProcAccountList = "920000"
)

// Response codes (field 39).
const (
	ResponseApproved           = "00"
	ResponseInvalidTransaction = "12"
	ResponseInvalidCard        = "14"
	ResponseInsufficientFunds  = "51"
	ResponseIncorrectPIN       = "55"
	ResponseSystemError        = "96"
)

const (
	fieldPAN            = 2
	fieldProcessingCode = 3
	fieldAmount         = 4
	fieldSTAN           = 11
	fieldResponseCode   = 39
	fieldData           = 48
	fieldBalance        = 54
)

// ReadMessageLength reads the 2 byte binary length header.
func ReadMessageLength(r io.Reader) (int, error) {
	header := network.NewBinary2BytesHeader()
	if _, err := header.ReadFrom(r); err != nil {
		return 0, err
	}
	return header.Length(), nil
}

// WriteMessageLength writes the 2 byte binary length header.
func WriteMessageLength(w io.Writer, length int) (int, error) {
	header := network.NewBinary2BytesHeader()
	if err := header.SetLength(length); err != nil {
		return 0, err
	}
	return header.WriteTo(w)
}

// Request is the decoded form of a kiosk request. Data carries the PIN for
// PIN verification and the account id for account operations.
type Request struct {
	MTI            string
	ProcessingCode string
	PAN            string
	Amount         int64
	STAN           string
	Data           string
}

// Response is the decoded form of an issuer reply.
type Response struct {
	Code    string
	Data    string
	Balance int64
}

// Accounts splits the account list of a 920000 reply.
func (r Response) Accounts() []string {
	if r.Data == "" {
		return nil
	}
	return strings.Split(r.Data, ",")
}

// STANs hands out trace numbers in 000001..999999.
type STANs struct {
	n atomic.Uint32
}

func (s *STANs) Next() string {
	n := s.n.Add(1) % 1_000_000
	if n == 0 {
		n = s.n.Add(1) % 1_000_000
	}
	return fmt.Sprintf("%06d", n)
}

// RequestMTI returns the MTI used for a processing code.
func RequestMTI(proc string) string {
	switch proc {
	case ProcWithdrawal, ProcDeposit:
		return MTIFinancialRequest
	default:
		return MTIAuthorizationRequest
	}
}

// ResponseMTI returns the reply MTI for a request MTI.
func ResponseMTI(mti string) (string, error) {
	switch mti {
	case MTIAuthorizationRequest:
		return MTIAuthorizationResponse, nil
	case MTIFinancialRequest:
		return MTIFinancialResponse, nil
	}
	return "", fmt.Errorf("unsupported mti %q", mti)
}

// NewRequest packs req into a message.
func NewRequest(req Request) (*iso8583.Message, error) {
	msg := iso8583.NewMessage(Spec)
	msg.MTI(req.MTI)

	fields := map[int]string{
		fieldProcessingCode: req.ProcessingCode,
		fieldSTAN:           req.STAN,
	}
	if req.PAN != "" {
		fields[fieldPAN] = req.PAN
	}
	if req.Amount > 0 {
		fields[fieldAmount] = fmt.Sprintf("%012d", req.Amount)
	}
	if req.Data != "" {
		fields[fieldData] = req.Data
	}
	for id, v := range fields {
		if err := msg.Field(id, v); err != nil {
			return nil, fmt.Errorf("setting field %d: %w", id, err)
		}
	}

	return msg, nil
}

// ParseRequest decodes an inbound request.
func ParseRequest(msg *iso8583.Message) (Request, error) {
	var req Request
	var err error

	if req.MTI, err = msg.GetMTI(); err != nil {
		return req, fmt.Errorf("getting mti: %w", err)
	}
	if req.ProcessingCode, err = msg.GetString(fieldProcessingCode); err != nil {
		return req, fmt.Errorf("getting processing code: %w", err)
	}
	if req.STAN, err = msg.GetString(fieldSTAN); err != nil {
		return req, fmt.Errorf("getting stan: %w", err)
	}
	if req.PAN, err = msg.GetString(fieldPAN); err != nil {
		return req, fmt.Errorf("getting pan: %w", err)
	}
	if req.Data, err = msg.GetString(fieldData); err != nil {
		return req, fmt.Errorf("getting additional data: %w", err)
	}
	amount, err := msg.GetString(fieldAmount)
	if err != nil {
		return req, fmt.Errorf("getting amount: %w", err)
	}
	if req.Amount, err = parseAmount(amount); err != nil {
		return req, err
	}

	return req, nil
}

// NewResponse builds the reply to req.
func NewResponse(req Request, resp Response) (*iso8583.Message, error) {
	mti, err := ResponseMTI(req.MTI)
	if err != nil {
		return nil, err
	}
	msg := iso8583.NewMessage(Spec)
	msg.MTI(mti)

	fields := map[int]string{
		fieldProcessingCode: req.ProcessingCode,
		fieldSTAN:           req.STAN,
		fieldResponseCode:   resp.Code,
	}
	if req.PAN != "" {
		fields[fieldPAN] = req.PAN
	}
	if req.Amount > 0 {
		fields[fieldAmount] = fmt.Sprintf("%012d", req.Amount)
	}
	if resp.Data != "" {
		fields[fieldData] = resp.Data
	}
	if resp.Code == ResponseApproved && req.ProcessingCode != ProcVerifyPIN && req.ProcessingCode != ProcAccountList {
		fields[fieldBalance] = strconv.FormatInt(resp.Balance, 10)
	}
	for id, v := range fields {
		if err := msg.Field(id, v); err != nil {
			return nil, fmt.Errorf("setting field %d: %w", id, err)
		}
	}

	return msg, nil
}

// ParseResponse decodes an issuer reply.
func ParseResponse(msg *iso8583.Message) (Response, error) {
	var resp Response
	var err error

	if resp.Code, err = msg.GetString(fieldResponseCode); err != nil {
		return resp, fmt.Errorf("getting response code: %w", err)
	}
	if resp.Data, err = msg.GetString(fieldData); err != nil {
		return resp, fmt.Errorf("getting additional data: %w", err)
	}
	balance, err := msg.GetString(fieldBalance)
	if err != nil {
		return resp, fmt.Errorf("getting balance: %w", err)
	}
	if resp.Balance, err = parseAmount(balance); err != nil {
		return resp, err
	}

	return resp, nil
}

func parseAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return n, nil
}
