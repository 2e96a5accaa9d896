//go:build !softhsm

package main

import "github.com/alovak/cardflow-atm/issuer"

// pinVerifierOptions keeps the HMAC verifier keyed by PIN_KEY.
func pinVerifierOptions() ([]issuer.ServiceOption, func(), error) {
	return nil, func() {}, nil
}
