package provider

import (
	"context"
	"crypto"
	"crypto/x509"

	"fsca/pkg/helper/x509x"
)

// Interface cryptography provider
type Interface interface {
	// GenerateKey generate RSA key pair
	GenerateKey(ctx context.Context, bits int) (x509x.PrivateKey, error)

	// EncodePrivateKey returns key as PEM, encrypted if password is not empty
	EncodePrivateKey(ctx context.Context, key x509x.PrivateKey, password []byte) ([]byte, error)

	// DecodePrivateKey parse PEM private key.
	// Returns ErrWrongPassword if the key is encrypted and can not be decrypted with password.
	DecodePrivateKey(ctx context.Context, keyPEM []byte, password []byte) (x509x.PrivateKey, error)

	// CreateCertificate sign template and returns certificate as PEM.
	// parent: if nil, template is self-signed
	CreateCertificate(ctx context.Context, template, parent *x509.Certificate, pub crypto.PublicKey, signer x509x.PrivateKey) ([]byte, error)

	// CreateRevocationList sign template by issuer and returns CRL as PEM
	CreateRevocationList(ctx context.Context, template *x509.RevocationList, issuer *x509.Certificate, signer x509x.PrivateKey) ([]byte, error)
}
