//go:build softhsm

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/alovak/cardflow-atm/internal/security/hsm"
	"github.com/alovak/cardflow-atm/issuer"
)

// pinVerifierOptions moves PIN verification into the PKCS#11 token named by
// PKCS11_MODULE, PKCS11_SLOT, PKCS11_PIN and PKCS11_KEY_LABEL.
func pinVerifierOptions() ([]issuer.ServiceOption, func(), error) {
	slot, err := strconv.ParseUint(os.Getenv("PKCS11_SLOT"), 10, 32)
	if err != nil {
		return nil, nil, fmt.Errorf("PKCS11_SLOT: %w", err)
	}

	provider := hsm.NewSoftHSMProvider(
		os.Getenv("PKCS11_MODULE"),
		uint(slot),
		os.Getenv("PKCS11_PIN"),
		os.Getenv("PKCS11_KEY_LABEL"),
	)
	if err := provider.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening hsm: %w", err)
	}

	return []issuer.ServiceOption{issuer.WithPINVerifier(provider)}, provider.Close, nil
}
