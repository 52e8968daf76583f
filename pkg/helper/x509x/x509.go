package x509x

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	encoding_asn1 "encoding/asn1"
	"encoding/pem"
	"math/big"
	"sort"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"
	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	CertificatePEMBlockType              = "CERTIFICATE"
	CrlPEMBlockType                      = "X509 CRL"
	RsaPrivateKeyPEMBlockType            = "RSA PRIVATE KEY"
	Pkcs8PrivateKeyPEMBlockType          = "PRIVATE KEY"
	EncryptedPKCS8PrivateKeyPEMBLockType = "ENCRYPTED PRIVATE KEY"

	pemPrefix = "-----BEGIN "
)

var (
	pemPrefixCertificate = []byte(pemPrefix + CertificatePEMBlockType)
	pemPrefixCRL         = []byte(pemPrefix + CrlPEMBlockType)
)

var (
	ErrInvalidPEM        = errors.New("invalid PEM")
	ErrPasswordRequired  = errors.New("password required")
	ErrIncorrectPassword = errors.New("incorrect password")

	// id-ce-authorityKeyIdentifier
	oidExtensionAuthorityKeyID = encoding_asn1.ObjectIdentifier{2, 5, 29, 35}
)

var randReader = rand.Reader

// ParseCertificate parse x509 certificate PEM block or DER bytes
func ParseCertificate(certBytes []byte) (*x509.Certificate, error) {
	if bytes.HasPrefix(certBytes, pemPrefixCertificate) {
		p, _ := pem.Decode(certBytes)
		if p == nil {
			return nil, ErrInvalidPEM
		}

		certBytes = p.Bytes
	}

	return x509.ParseCertificate(certBytes)
}

func ParseCertificateChain(derBytes []byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0)
	for {
		p, rest := pem.Decode(derBytes)
		if p == nil {
			return certs, nil
		}

		cert, err := ParseCertificate(p.Bytes)
		if err != nil {
			return nil, errors.Wrap(err, "certificate parse failed")
		}
		certs = append(certs, cert)
		derBytes = rest
	}
}

// ParseRevocationList parse CRL PEM block or DER bytes
func ParseRevocationList(crlBytes []byte) (*x509.RevocationList, error) {
	if bytes.HasPrefix(crlBytes, pemPrefixCRL) {
		p, _ := pem.Decode(crlBytes)
		if p == nil {
			return nil, ErrInvalidPEM
		}

		crlBytes = p.Bytes
	}

	return x509.ParseRevocationList(crlBytes)
}

// PrivateKey private key that can sign
type PrivateKey interface {
	crypto.PrivateKey
	crypto.Signer
}

// GenerateRSAKey generate RSA key pair
func GenerateRSAKey(bits int) (PrivateKey, error) {
	key, err := rsa.GenerateKey(randReader, bits)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// EncodePrivateKeyToPEM encode private key as PKCS#8 PEM, encrypted with password when it is not empty.
func EncodePrivateKeyToPEM(privateKey PrivateKey, password []byte, opts *pkcs8.Opts) ([]byte, error) {
	if len(password) == 0 {
		password = nil
	}

	derBytes, err := pkcs8.MarshalPrivateKey(privateKey, password, opts)
	if err != nil {
		return nil, errors.Wrap(err, "fail to encode private key")
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  fx.Ternary(password == nil, Pkcs8PrivateKeyPEMBlockType, EncryptedPKCS8PrivateKeyPEMBLockType),
		Bytes: derBytes,
	}), nil
}

// ParsePrivateKey parse pem formatted private key; PKCS#1, PKCS#8 and encrypted PKCS#8 are supported.
func ParsePrivateKey(keyPemBytes []byte, password []byte) (PrivateKey, error) {
	p, _ := pem.Decode(keyPemBytes)
	if p == nil {
		return nil, ErrInvalidPEM
	}

	var key any
	var err error
	switch p.Type {
	case RsaPrivateKeyPEMBlockType:
		key, err = x509.ParsePKCS1PrivateKey(p.Bytes)

	case Pkcs8PrivateKeyPEMBlockType:
		key, err = x509.ParsePKCS8PrivateKey(p.Bytes)

	case EncryptedPKCS8PrivateKeyPEMBLockType:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}

		key, err = pkcs8.ParsePKCS8PrivateKey(p.Bytes, password)
		if err != nil {
			// decryption garbage and a wrong password can not be told apart
			return nil, errors.Wrap(ErrIncorrectPassword, err.Error())
		}

	default:
		return nil, errors.Errorf("unknown pem type: %s", p.Type)
	}

	if err != nil {
		return nil, errors.Wrap(err, "fail to parse private key")
	}

	signer, ok := key.(PrivateKey)
	if !ok {
		return nil, errors.Errorf("unsupported private key: %T", key)
	}
	return signer, nil
}

func EncodeCertificateToPEM(derBytes []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:    CertificatePEMBlockType,
		Headers: nil,
		Bytes:   derBytes,
	})
}

func EncodeCRLToPEM(derBytes []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  CrlPEMBlockType,
		Bytes: derBytes,
	})
}

// SubjectKeyID returns the RFC 5280 4.2.1.2 (1) key identifier: SHA-1 of the subjectPublicKey bits.
func SubjectKeyID(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, errors.Wrap(err, "fail to marshal public key")
	}

	var info struct {
		Algorithm        pkix.AlgorithmIdentifier
		SubjectPublicKey encoding_asn1.BitString
	}
	if _, err := encoding_asn1.Unmarshal(spki, &info); err != nil {
		return nil, errors.Wrap(err, "fail to parse public key")
	}

	sum := sha1.Sum(info.SubjectPublicKey.Bytes)
	return sum[:], nil
}

// AuthorityKeyIDExtension build authorityKeyIdentifier with keyIdentifier, authorityCertIssuer and
// authorityCertSerialNumber; openssl "keyid,issuer:always".
func AuthorityKeyIDExtension(keyID []byte, issuer pkix.Name, serial *big.Int) (pkix.Extension, error) {
	issuerDER, err := encoding_asn1.Marshal(issuer.ToRDNSequence())
	if err != nil {
		return pkix.Extension{}, errors.Wrap(err, "fail to marshal issuer")
	}

	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(asn1.Tag(0).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes(keyID)
		})
		b.AddASN1(asn1.Tag(1).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
			// GeneralName directoryName is explicitly tagged
			b.AddASN1(asn1.Tag(4).ContextSpecific().Constructed(), func(b *cryptobyte.Builder) {
				b.AddBytes(issuerDER)
			})
		})
		b.AddASN1(asn1.Tag(2).ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddBytes(integerContent(serial))
		})
	})

	value, err := b.Bytes()
	if err != nil {
		return pkix.Extension{}, errors.Wrap(err, "fail to build authority key identifier")
	}

	return pkix.Extension{Id: oidExtensionAuthorityKeyID, Value: value}, nil
}

// AuthorityKeyIDIssuer parse authorityCertIssuer and authorityCertSerialNumber of certificate
func AuthorityKeyIDIssuer(cert *x509.Certificate) (issuer *pkix.Name, serial *big.Int, err error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidExtensionAuthorityKeyID) {
			continue
		}

		input := cryptobyte.String(ext.Value)
		var aki cryptobyte.String
		if !input.ReadASN1(&aki, asn1.SEQUENCE) {
			return nil, nil, errors.New("malformed authority key identifier")
		}

		var names, dirName, serialBytes cryptobyte.String
		var hasNames, hasSerial bool
		if !aki.SkipOptionalASN1(asn1.Tag(0).ContextSpecific()) ||
			!aki.ReadOptionalASN1(&names, &hasNames, asn1.Tag(1).ContextSpecific().Constructed()) ||
			!aki.ReadOptionalASN1(&serialBytes, &hasSerial, asn1.Tag(2).ContextSpecific()) {
			return nil, nil, errors.New("malformed authority key identifier")
		}

		if !hasNames || !hasSerial || !names.ReadASN1(&dirName, asn1.Tag(4).ContextSpecific().Constructed()) {
			return nil, nil, nil
		}

		var rdn pkix.RDNSequence
		if _, err := encoding_asn1.Unmarshal(dirName, &rdn); err != nil {
			return nil, nil, errors.Wrap(err, "malformed authority cert issuer")
		}

		name := new(pkix.Name)
		name.FillFromRDNSequence(&rdn)
		return name, new(big.Int).SetBytes(serialBytes), nil
	}

	return nil, nil, nil
}

// integerContent returns the content octets of a non negative DER INTEGER
func integerContent(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// IsRevoked returns true if serial is listed in revocation list
func IsRevoked(crl *x509.RevocationList, serial *big.Int) bool {
	if crl == nil {
		return false
	}

	for _, revoked := range crl.RevokedCertificateEntries {
		if revoked.SerialNumber.Cmp(serial) == 0 {
			return true
		}
	}

	return false
}

var (
	keyUsageToStr = map[x509.KeyUsage]string{
		x509.KeyUsageDigitalSignature:  "Digital Signature",
		x509.KeyUsageContentCommitment: "Non Repudiation",
		x509.KeyUsageKeyEncipherment:   "Key Encipherment",
		x509.KeyUsageDataEncipherment:  "Data Encipherment",
		x509.KeyUsageKeyAgreement:      "Key Agreement",
		x509.KeyUsageCertSign:          "Certificate Sign",
		x509.KeyUsageCRLSign:           "CRL Sign",
		x509.KeyUsageEncipherOnly:      "Encipher Only",
		x509.KeyUsageDecipherOnly:      "Decipher Only",
	}
	extKeyUsageToStr = map[x509.ExtKeyUsage]string{
		x509.ExtKeyUsageAny:             "Any",
		x509.ExtKeyUsageServerAuth:      "TLS Web Server Authentication",
		x509.ExtKeyUsageClientAuth:      "TLS Web Client Authentication",
		x509.ExtKeyUsageCodeSigning:     "Code Signing",
		x509.ExtKeyUsageEmailProtection: "Email Protection",
		x509.ExtKeyUsageTimeStamping:    "Time Stamping",
		x509.ExtKeyUsageOCSPSigning:     "OCSP Signing",
	}

	keyUsages []x509.KeyUsage
)

func init() {
	keyUsages = fx.Keys(keyUsageToStr)
	sort.Slice(keyUsages, func(i, j int) bool { return int(keyUsages[i]) < int(keyUsages[j]) })
}

// KeyUsageToStr
func KeyUsageToStr(keyUsage x509.KeyUsage) (usages []string) {
	for _, u := range keyUsages {
		if keyUsage&u > 0 {
			usages = append(usages, keyUsageToStr[u])
		}
	}
	return usages
}

// ExtKeyUsageToStr
func ExtKeyUsageToStr(keyUsage []x509.ExtKeyUsage) (usages []string) {
	for _, u := range keyUsage {
		usages = append(usages, extKeyUsageToStr[u])
	}
	return usages
}
