package security

import (
	"fmt"
	"strings"

	"github.com/alovak/cardflow-atm/internal/cardgen"
)

// PINVerifier stores and checks PINs as card-bound verification values.
// Implementations never keep the clear PIN.
type PINVerifier interface {
	// HashPIN returns the verification value stored for pan and pin.
	HashPIN(pan, pin string) ([]byte, error)
	// VerifyPIN reports whether pin matches the stored verification value.
	VerifyPIN(pan, pin string, stored []byte) (bool, error)
}

const (
	minPINLen = 4
	maxPINLen = 12
)

// NormalizePIN validates a PIN and returns its canonical form. Keypads
// report numeric entries, so leading zeros are dropped before the length
// check: "01234" is the PIN 1234 and "0123" is too short.
func NormalizePIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if !cardgen.IsDigits(pin) {
		return "", fmt.Errorf("pin must contain digits only")
	}
	pin = strings.TrimLeft(pin, "0")
	if len(pin) < minPINLen || len(pin) > maxPINLen {
		return "", fmt.Errorf("pin must be %d to %d digits without leading zeros", minPINLen, maxPINLen)
	}
	return pin, nil
}

// GeneratePIN returns a random PIN of length digits without a leading zero.
func GeneratePIN(length int) (string, error) {
	if length < minPINLen || length > maxPINLen {
		return "", fmt.Errorf("pin length must be %d..%d", minPINLen, maxPINLen)
	}
	for {
		pin, err := cardgen.RandomDigits(length)
		if err != nil {
			return "", err
		}
		if pin[0] != '0' {
			return pin, nil
		}
	}
}

// pinBlock is the message MACed by verifiers: normalized PAN and PIN.
func pinBlock(pan, pin string) ([]byte, error) {
	p := cardgen.NormalizePAN(pan)
	if p == "" || !cardgen.IsDigits(p) {
		return nil, fmt.Errorf("pan must contain digits only")
	}
	norm, err := NormalizePIN(pin)
	if err != nil {
		return nil, err
	}
	return []byte(p + "|" + norm), nil
}
