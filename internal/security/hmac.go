package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// HMACVerifier derives verification values with HMAC-SHA256 under a
// secret key held by the issuer process.
type HMACVerifier struct {
	key []byte
}

var _ PINVerifier = (*HMACVerifier)(nil)

func NewHMACVerifier(key []byte) *HMACVerifier {
	return &HMACVerifier{key: key}
}

func (v *HMACVerifier) HashPIN(pan, pin string) ([]byte, error) {
	if len(v.key) == 0 {
		return nil, fmt.Errorf("pin key is required")
	}
	block, err := pinBlock(pan, pin)
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, v.key)
	h.Write(block)
	return h.Sum(nil), nil
}

func (v *HMACVerifier) VerifyPIN(pan, pin string, stored []byte) (bool, error) {
	if len(stored) == 0 {
		return false, nil
	}
	got, err := v.HashPIN(pan, pin)
	if err != nil {
		// a malformed entry is a wrong PIN, not a failure
		if _, perr := NormalizePIN(pin); perr != nil {
			return false, nil
		}
		return false, err
	}
	return hmac.Equal(got, stored), nil
}
