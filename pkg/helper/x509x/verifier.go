package x509x

import (
	"crypto/x509"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
)

var (
	ErrCertWasRevoked = errors.New("certificate was revoked")
	ErrCRLOutdated    = errors.New("CRL was outdated")
)

// CRLSource returns the CRL published by issuer
type CRLSource func(issuer *x509.Certificate) ([]byte, error)

// CRLVerifier check peer certificates against the CRL of their issuer; use Verify as tls.Config.VerifyPeerCertificate
type CRLVerifier interface {
	Verify(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error
}

func NewCRLVerifier(source CRLSource) CRLVerifier {
	return &crlVerifier{
		source: source,
		crls:   map[string]*x509.RevocationList{},
	}
}

type crlVerifier struct {
	source CRLSource
	crls   map[string]*x509.RevocationList // cached by issuer subject
	muCrl  sync.Mutex
}

var _ CRLVerifier = (*crlVerifier)(nil)

// Verify verifiedChains: leaf -> ... -> root
func (v *crlVerifier) Verify(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	for _, chain := range verifiedChains {
		for i := 0; i < len(chain)-1; i++ {
			cert, issuer := chain[i], chain[i+1]
			log.Debugf("verify %s against CRL of %s", cert.Subject.CommonName, issuer.Subject.CommonName)

			crl, err := v.getCRL(issuer)
			if err != nil {
				return errors.Wrap(err, "crl verify failed")
			}

			if IsRevoked(crl, cert.SerialNumber) {
				return errors.Wrapf(ErrCertWasRevoked, "serial %s", cert.SerialNumber)
			}
		}
	}

	return nil
}

func (v *crlVerifier) getCRL(issuer *x509.Certificate) (*x509.RevocationList, error) {
	key := string(issuer.RawSubject)

	v.muCrl.Lock()
	defer v.muCrl.Unlock()

	if crl, ok := v.crls[key]; ok && crl.NextUpdate.After(time.Now()) {
		return crl, nil
	}

	crlBytes, err := v.source(issuer)
	if err != nil {
		return nil, errors.Wrap(err, "CRL get failed")
	}

	crl, err := ParseRevocationList(crlBytes)
	if err != nil {
		return nil, errors.Wrap(err, "CRL parse failed")
	}

	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return nil, errors.Wrap(err, "CRL signature check failed")
	}

	if crl.NextUpdate.Before(time.Now()) {
		return nil, ErrCRLOutdated
	}

	v.crls[key] = crl
	return crl, nil
}
