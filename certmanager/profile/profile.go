// Package profile holds the certificate profile table: validity, key usages and constraints per entity type.
package profile

import (
	"crypto"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/pkg/errors"

	"fsca/certmanager/types"
	"fsca/pkg/helper"
	"fsca/pkg/helper/x509x"
)

// Profile extension profile of entity type
type Profile struct {
	Type        types.EntityType
	IsCA        bool
	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage
	AltNames    bool   // add subjectAltName from common name
	NameRule    string // validation tag for common name, empty for root
}

var profiles = map[types.EntityType]Profile{
	types.TypeRoot: {
		Type:     types.TypeRoot,
		IsCA:     true,
		KeyUsage: x509.KeyUsageCRLSign | x509.KeyUsageCertSign,
	},
	types.TypeServer: {
		Type:        types.TypeServer,
		KeyUsage:    x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		AltNames:    true,
		NameRule:    "required,certname,hostname_rfc1123|ip",
	},
	types.TypeClient: {
		Type:        types.TypeClient,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		NameRule:    "required,certname",
	},
}

// Lookup returns profile of entity type; unknown type is a programming error
func Lookup(typ types.EntityType) Profile {
	p, ok := profiles[typ]
	if !ok {
		panic(fmt.Sprintf("unknown entity type: %d", typ))
	}
	return p
}

// Durations validity in days
type Durations struct {
	Root   int
	Server int
	Client int
	CRL    int
}

func (d Durations) Days(typ types.EntityType) int {
	switch typ {
	case types.TypeRoot:
		return d.Root
	case types.TypeServer:
		return d.Server
	case types.TypeClient:
		return d.Client
	}
	panic(fmt.Sprintf("unknown entity type: %d", typ))
}

func (d Durations) CRLDuration() time.Duration { return days(d.CRL) }

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

// BuildBasic create certificate template with subject, issuer and validity
//
// suffix: organizational attributes appended to subject and issuer; CommonName is ignored
func BuildBasic(typ types.EntityType, cn, issuerCN string, suffix pkix.Name, serial int64, now time.Time, d Durations) *x509.Certificate {
	subject := suffix
	subject.CommonName = cn
	issuer := suffix
	issuer.CommonName = issuerCN

	return &x509.Certificate{
		Version:      3,
		SerialNumber: big.NewInt(serial),
		Subject:      subject,
		Issuer:       issuer,
		NotBefore:    now,
		NotAfter:     now.Add(days(d.Days(typ))),
	}
}

// ApplyExtensions set extensions of profile.
//
// issuer: signer certificate, nil for the self-signed root
func ApplyExtensions(template *x509.Certificate, typ types.EntityType, pub crypto.PublicKey, issuer *x509.Certificate) error {
	p := Lookup(typ)

	keyID, err := x509x.SubjectKeyID(pub)
	if err != nil {
		return errors.Wrap(err, "fail to apply extensions")
	}
	template.SubjectKeyId = keyID

	authorityKeyID, authorityIssuer, authoritySerial := keyID, template.Issuer, template.SerialNumber
	if issuer != nil {
		authorityKeyID, authorityIssuer, authoritySerial = issuer.SubjectKeyId, issuer.Issuer, issuer.SerialNumber
	}

	aki, err := x509x.AuthorityKeyIDExtension(authorityKeyID, authorityIssuer, authoritySerial)
	if err != nil {
		return errors.Wrap(err, "fail to apply extensions")
	}
	template.ExtraExtensions = append(template.ExtraExtensions, aki)

	template.BasicConstraintsValid = true
	template.IsCA = p.IsCA
	template.KeyUsage = p.KeyUsage
	template.ExtKeyUsage = append([]x509.ExtKeyUsage(nil), p.ExtKeyUsage...)

	if p.AltNames {
		if ip := net.ParseIP(template.Subject.CommonName); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, template.Subject.CommonName)
		}
	}

	return nil
}

// ValidateName check common name against the naming rule of entity type
func ValidateName(typ types.EntityType, cn string) error {
	p := Lookup(typ)
	if p.NameRule == "" {
		return nil
	}

	if err := helper.ValidateVar(cn, p.NameRule); err != nil {
		return types.Classify(types.ErrInvalidIdentity, err, fmt.Sprintf("invalid %s name: %q", typ, cn))
	}
	return nil
}
