//go:build softhsm

package hsm

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"

	"github.com/alovak/cardflow-atm/internal/cardgen"
	"github.com/alovak/cardflow-atm/internal/security"
)

// SoftHSMProvider computes PIN verification values as an HMAC-SHA256 inside
// a PKCS#11 token, so the PIN verification key never leaves the HSM.
// Enabled with the softhsm build tag to keep pkcs11 out of default builds.
type SoftHSMProvider struct {
	libPath  string
	slotID   uint
	pin      string
	keyLabel string

	mu   sync.Mutex
	p11  *pkcs11.Ctx
	sess pkcs11.SessionHandle
	key  pkcs11.ObjectHandle
}

var _ security.PINVerifier = (*SoftHSMProvider)(nil)

func NewSoftHSMProvider(libPath string, slotID uint, pin, keyLabel string) *SoftHSMProvider {
	return &SoftHSMProvider{libPath: libPath, slotID: slotID, pin: pin, keyLabel: keyLabel}
}

func (p *SoftHSMProvider) Open() error {
	p.p11 = pkcs11.New(p.libPath)
	if p.p11 == nil {
		return fmt.Errorf("load pkcs11 lib failed")
	}
	if err := p.p11.Initialize(); err != nil {
		return err
	}
	sess, err := p.p11.OpenSession(p.slotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		_ = p.p11.Finalize()
		return err
	}
	p.sess = sess
	if err := p.p11.Login(p.sess, pkcs11.CKU_USER, p.pin); err != nil {
		_ = p.p11.CloseSession(p.sess)
		_ = p.p11.Finalize()
		return err
	}

	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, p.keyLabel),
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_GENERIC_SECRET),
	}
	if err := p.p11.FindObjectsInit(p.sess, template); err != nil {
		return err
	}
	objs, _, err := p.p11.FindObjects(p.sess, 1)
	_ = p.p11.FindObjectsFinal(p.sess)
	if err != nil {
		return err
	}
	if len(objs) == 0 {
		return fmt.Errorf("pin key not found by label=%s", p.keyLabel)
	}
	p.key = objs[0]
	return nil
}

func (p *SoftHSMProvider) Close() {
	if p.p11 != nil {
		if p.sess != 0 {
			_ = p.p11.Logout(p.sess)
			_ = p.p11.CloseSession(p.sess)
		}
		_ = p.p11.Finalize()
		p.p11.Destroy()
		p.p11 = nil
	}
}

// mac signs data with CKM_SHA256_HMAC. A PKCS#11 session runs one
// operation at a time.
func (p *SoftHSMProvider) mac(data []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.p11 == nil {
		return nil, fmt.Errorf("hsm session is not open")
	}
	mech := []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_SHA256_HMAC, nil)}
	if err := p.p11.SignInit(p.sess, mech, p.key); err != nil {
		return nil, err
	}
	return p.p11.Sign(p.sess, data)
}

func (p *SoftHSMProvider) HashPIN(pan, pin string) ([]byte, error) {
	pan = cardgen.NormalizePAN(pan)
	if pan == "" || !cardgen.IsDigits(pan) {
		return nil, fmt.Errorf("pan must contain digits only")
	}
	norm, err := security.NormalizePIN(pin)
	if err != nil {
		return nil, err
	}
	return p.mac([]byte(pan + "|" + norm))
}

func (p *SoftHSMProvider) VerifyPIN(pan, pin string, stored []byte) (bool, error) {
	if len(stored) == 0 {
		return false, nil
	}
	if _, err := security.NormalizePIN(pin); err != nil {
		return false, nil
	}
	got, err := p.HashPIN(pan, pin)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, stored) == 1, nil
}
