// Package bankclient connects kiosks to the issuer.
package bankclient

import (
	"fmt"

	"github.com/alovak/cardflow-atm/atm"
	"github.com/alovak/cardflow-atm/internal/iso8583link"
)

// codeError maps an issuer response code of a cash operation to an error.
func codeError(code string) error {
	switch code {
	case iso8583link.ResponseApproved:
		return nil
	case iso8583link.ResponseInsufficientFunds, iso8583link.ResponseInvalidTransaction, iso8583link.ResponseInvalidCard:
		return fmt.Errorf("issuer response %s: %w", code, atm.ErrDeclined)
	}
	return fmt.Errorf("issuer response %s", code)
}
