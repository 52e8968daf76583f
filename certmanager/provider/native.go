package provider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"strings"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"github.com/youmark/pkcs8"

	"fsca/certmanager/types"
	"fsca/pkg/helper/x509x"
)

var ciphers = map[string]pkcs8.Cipher{
	"aes-128-cbc": pkcs8.AES128CBC,
	"aes-192-cbc": pkcs8.AES192CBC,
	"aes-256-cbc": pkcs8.AES256CBC,
	"aes-128-gcm": pkcs8.AES128GCM,
	"aes-192-gcm": pkcs8.AES192GCM,
	"aes-256-gcm": pkcs8.AES256GCM,
}

// KeyEncryption private key encryption parameters
type KeyEncryption struct {
	Cipher        string // aes-256-cbc, aes-256-gcm, ...
	KDFIterations int    // PBKDF2 iterations
}

func (k KeyEncryption) opts() (*pkcs8.Opts, error) {
	name := strings.ToLower(k.Cipher)
	if name == "" {
		name = "aes-256-cbc"
	}

	cipher, ok := ciphers[name]
	if !ok {
		return nil, errors.Errorf("unsupported key cipher: %s", k.Cipher)
	}

	iterations := k.KDFIterations
	if iterations <= 0 {
		iterations = 100000
	}

	return &pkcs8.Opts{
		Cipher: cipher,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       16,
			IterationCount: iterations,
			HMACHash:       crypto.SHA256,
		},
	}, nil
}

func Native(enc KeyEncryption) Interface {
	return &nativeImpl{enc: enc}
}

type nativeImpl struct {
	enc KeyEncryption
}

var _ Interface = (*nativeImpl)(nil)

func (na *nativeImpl) GenerateKey(ctx context.Context, bits int) (x509x.PrivateKey, error) {
	log.Debugf("GenerateKey(): bits=%d", bits)

	key, err := x509x.GenerateRSAKey(bits)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to generate key")
	}
	return key, nil
}

func (na *nativeImpl) EncodePrivateKey(ctx context.Context, key x509x.PrivateKey, password []byte) ([]byte, error) {
	var opts *pkcs8.Opts
	if len(password) > 0 {
		o, err := na.enc.opts()
		if err != nil {
			return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to encode private key")
		}
		opts = o
	}

	keyPEM, err := x509x.EncodePrivateKeyToPEM(key, password, opts)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to encode private key")
	}
	return keyPEM, nil
}

func (na *nativeImpl) DecodePrivateKey(ctx context.Context, keyPEM []byte, password []byte) (x509x.PrivateKey, error) {
	key, err := x509x.ParsePrivateKey(keyPEM, password)
	if err != nil {
		if errors.Is(err, x509x.ErrPasswordRequired) || errors.Is(err, x509x.ErrIncorrectPassword) {
			return nil, types.Classify(types.ErrWrongPassword, err, "fail to decrypt private key")
		}
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to decode private key")
	}
	return key, nil
}

// CreateCertificate create certificate and returns cert as PEM format
//
// signer: signer(parent) private key; for self-signed certificate it is the key of pub
func (na *nativeImpl) CreateCertificate(ctx context.Context, template, parent *x509.Certificate, pub crypto.PublicKey, signer x509x.PrivateKey) ([]byte, error) {
	log.Debugf("CreateCertificate(): subject=%s, serial=%s", template.Subject, template.SerialNumber)

	if parent == nil {
		parent = template
	}

	certDerBytes, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to create certificate")
	}

	return x509x.EncodeCertificateToPEM(certDerBytes), nil
}

func (na *nativeImpl) CreateRevocationList(ctx context.Context, template *x509.RevocationList, issuer *x509.Certificate, signer x509x.PrivateKey) ([]byte, error) {
	log.Debugf("CreateRevocationList(): issuer=%s, number=%s, entries=%d", issuer.Subject, template.Number, len(template.RevokedCertificateEntries))

	crlDerBytes, err := x509.CreateRevocationList(rand.Reader, template, issuer, signer)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to create revocation list")
	}

	return x509x.EncodeCRLToPEM(crlDerBytes), nil
}
