package repository

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/fx"
	"github.com/whitekid/goxp/log"

	"fsca/certmanager/index"
	"fsca/certmanager/profile"
	"fsca/certmanager/provider"
	"fsca/certmanager/store"
	"fsca/certmanager/types"
	"fsca/pkg/helper/x509x"
)

type Interface interface {
	// Init prepare store and index
	Init(ctx context.Context) error

	// Issue create key and certificate. cn of root is ignored if empty; root CN of options is used.
	Issue(ctx context.Context, typ types.EntityType, cn string, password []byte) (*types.Certificate, error)

	// Revoke add certificate to CRL then remove its key and certificate
	Revoke(ctx context.Context, name string) (*types.Revocation, error)

	// GenerateCRL returns CRL as PEM; sign a new one if missing or refresh is set
	GenerateCRL(ctx context.Context, refresh bool) ([]byte, error)

	// Verify check the certificate of name chains to the root and was not revoked
	Verify(ctx context.Context, name string) (*types.Certificate, error)
	VerifyPEM(ctx context.Context, certPEM []byte) (*x509.Certificate, error)

	Get(ctx context.Context, name string) (*types.Certificate, error)
	List(ctx context.Context) ([]*types.Certificate, error)

	// History returns index records including revoked certificates
	History(ctx context.Context, opts index.ListOpt) ([]*index.Record, error)
}

// Options issuance parameters
type Options struct {
	KeySize            int
	SignatureAlgorithm x509.SignatureAlgorithm
	RootName           string    // file name of root key and certificate
	RootCN             string    // common name of root certificate
	Subject            pkix.Name // attributes appended to every subject, CommonName is ignored
	Durations          profile.Durations
}

// New create new repository
func New(provider provider.Interface, store store.Interface, index index.Interface, unlocker Unlocker, opts Options) Interface {
	return &repoImpl{
		provider: provider,
		store:    store,
		index:    index,
		unlocker: unlocker,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type repoImpl struct {
	provider provider.Interface
	store    store.Interface
	index    index.Interface
	unlocker Unlocker
	opts     Options

	now func() time.Time
}

var _ Interface = (*repoImpl)(nil)

func (repo *repoImpl) Init(ctx context.Context) error {
	if err := repo.store.Init(ctx); err != nil {
		return errors.Wrap(err, "fail to init")
	}

	if err := repo.index.Init(ctx); err != nil {
		return errors.Wrap(err, "fail to init")
	}

	return nil
}

func (repo *repoImpl) Issue(ctx context.Context, typ types.EntityType, cn string, password []byte) (*types.Certificate, error) {
	name := cn
	if typ == types.TypeRoot {
		name = repo.opts.RootName
		cn = fx.Ternary(cn == "", repo.opts.RootCN, cn)
	}
	log.Debugf("Issue(): type=%s, name=%s, cn=%s", typ, name, cn)

	if err := profile.ValidateName(typ, cn); err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	exists, err := repo.store.Exists(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}
	if exists {
		return nil, errors.Wrapf(types.ErrAlreadyExists, "key or certificate for %s", name)
	}

	// leaf certificates need the root before anything is written
	var issuer *x509.Certificate
	issuerCN := cn
	if typ != types.TypeRoot {
		issuer, err = repo.rootCertificate(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fail to issue certificate")
		}
		issuerCN = issuer.Subject.CommonName
	}

	key, err := repo.provider.GenerateKey(ctx, repo.opts.KeySize)
	if err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	keyPEM, err := repo.provider.EncodePrivateKey(ctx, key, password)
	if err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}
	if len(password) == 0 {
		log.Infof("private key of %s is stored without password", name)
	}

	if err := repo.store.WriteKey(ctx, name, keyPEM); err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	serial, err := repo.store.NextSerial(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	template := profile.BuildBasic(typ, cn, issuerCN, repo.opts.Subject, serial, repo.now(), repo.opts.Durations)
	template.SignatureAlgorithm = repo.opts.SignatureAlgorithm
	if err := profile.ApplyExtensions(template, typ, key.Public(), issuer); err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to issue certificate")
	}

	signer := key
	if typ != types.TypeRoot {
		signer, err = repo.unlocker.Unlock(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "fail to issue certificate")
		}
	}

	certPEM, err := repo.provider.CreateCertificate(ctx, template, issuer, key.Public(), signer)
	if err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	if err := repo.store.CommitSerial(ctx, serial); err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	if err := repo.store.WriteCert(ctx, name, certPEM); err != nil {
		return nil, errors.Wrap(err, "fail to issue certificate")
	}

	cert := &types.Certificate{
		Name:      name,
		Type:      typ,
		CN:        cn,
		Serial:    serial,
		NotBefore: template.NotBefore,
		NotAfter:  template.NotAfter,
		Cert:      certPEM,
		Key:       keyPEM,
	}

	if err := repo.index.Record(ctx, cert, template.DNSNames); err != nil {
		log.Errorf("fail to record certificate %s to index: %+v", name, err)
	}

	return cert, nil
}

func (repo *repoImpl) rootCertificate(ctx context.Context) (*x509.Certificate, error) {
	certPEM, err := repo.store.ReadCert(ctx, repo.opts.RootName)
	if err != nil {
		return nil, errors.Wrap(err, "fail to load root certificate")
	}

	cert, err := x509x.ParseCertificate(certPEM)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to load root certificate")
	}

	return cert, nil
}

func (repo *repoImpl) Revoke(ctx context.Context, name string) (*types.Revocation, error) {
	log.Debugf("Revoke(): name=%s", name)

	if name == repo.opts.RootName {
		return nil, errors.Wrap(types.ErrInvalidIdentity, "root certificate can not be revoked")
	}

	certPEM, err := repo.store.ReadCert(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "fail to revoke certificate")
	}

	cert, err := x509x.ParseCertificate(certPEM)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to revoke certificate")
	}

	root, err := repo.rootCertificate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to revoke certificate")
	}

	template, err := repo.loadCRL(ctx, root)
	if err != nil {
		return nil, errors.Wrap(err, "fail to revoke certificate")
	}

	revokedAt := repo.now()
	if entry, ok := findRevoked(template, cert.SerialNumber); ok {
		log.Infof("serial %s is already listed in CRL", cert.SerialNumber)
		revokedAt = entry.RevocationTime
	} else {
		template.RevokedCertificateEntries = append(template.RevokedCertificateEntries, x509.RevocationListEntry{
			SerialNumber:   cert.SerialNumber,
			RevocationTime: revokedAt,
		})
	}

	if _, err := repo.signCRL(ctx, template, root); err != nil {
		return nil, errors.Wrap(err, "fail to revoke certificate")
	}

	if err := repo.store.Remove(ctx, name); err != nil {
		return nil, errors.Wrap(err, "fail to revoke certificate")
	}

	rev := &types.Revocation{
		Name:      name,
		Serial:    cert.SerialNumber.Int64(),
		RevokedAt: revokedAt,
	}

	if err := repo.index.MarkRevoked(ctx, rev); err != nil {
		log.Errorf("fail to mark %s revoked in index: %+v", name, err)
	}

	return rev, nil
}

func findRevoked(crl *x509.RevocationList, serial *big.Int) (x509.RevocationListEntry, bool) {
	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber.Cmp(serial) == 0 {
			return entry, true
		}
	}
	return x509.RevocationListEntry{}, false
}

// loadCRL returns template with entries of current CRL, or an empty one if no CRL was generated
func (repo *repoImpl) loadCRL(ctx context.Context, root *x509.Certificate) (*x509.RevocationList, error) {
	crlPEM, err := repo.store.ReadCRL(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return &x509.RevocationList{Number: big.NewInt(0)}, nil
		}
		return nil, errors.Wrap(err, "fail to load CRL")
	}

	crl, err := repo.parseCRL(crlPEM, root)
	if err != nil {
		return nil, errors.Wrap(err, "fail to load CRL")
	}

	return &x509.RevocationList{
		Number: crl.Number,
		RevokedCertificateEntries: fx.Map(crl.RevokedCertificateEntries, func(e x509.RevocationListEntry) x509.RevocationListEntry {
			return x509.RevocationListEntry{SerialNumber: e.SerialNumber, RevocationTime: e.RevocationTime}
		}),
	}, nil
}

func (repo *repoImpl) parseCRL(crlPEM []byte, root *x509.Certificate) (*x509.RevocationList, error) {
	crl, err := x509x.ParseRevocationList(crlPEM)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to parse CRL")
	}

	if err := crl.CheckSignatureFrom(root); err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "CRL is not signed by root")
	}

	return crl, nil
}

// signCRL increase CRL number, sign template with root key and store it
func (repo *repoImpl) signCRL(ctx context.Context, template *x509.RevocationList, root *x509.Certificate) ([]byte, error) {
	now := repo.now()

	number := big.NewInt(1)
	if template.Number != nil {
		number.Add(template.Number, number)
	}
	template.Number = number
	template.ThisUpdate = now
	template.NextUpdate = now.Add(repo.opts.Durations.CRLDuration())
	template.SignatureAlgorithm = repo.opts.SignatureAlgorithm

	signer, err := repo.unlocker.Unlock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to sign CRL")
	}

	crlPEM, err := repo.provider.CreateRevocationList(ctx, template, root, signer)
	if err != nil {
		return nil, errors.Wrap(err, "fail to sign CRL")
	}

	if err := repo.store.WriteCRL(ctx, crlPEM); err != nil {
		return nil, errors.Wrap(err, "fail to sign CRL")
	}

	log.Debugf("CRL #%s signed: entries=%d, next update=%s", number, len(template.RevokedCertificateEntries), template.NextUpdate)
	return crlPEM, nil
}

func (repo *repoImpl) GenerateCRL(ctx context.Context, refresh bool) ([]byte, error) {
	if !refresh {
		crlPEM, err := repo.store.ReadCRL(ctx)
		if err == nil {
			return crlPEM, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return nil, errors.Wrap(err, "fail to generate CRL")
		}
	}

	root, err := repo.rootCertificate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to generate CRL")
	}

	template, err := repo.loadCRL(ctx, root)
	if err != nil {
		return nil, errors.Wrap(err, "fail to generate CRL")
	}

	crlPEM, err := repo.signCRL(ctx, template, root)
	if err != nil {
		return nil, errors.Wrap(err, "fail to generate CRL")
	}

	return crlPEM, nil
}

func (repo *repoImpl) Verify(ctx context.Context, name string) (*types.Certificate, error) {
	cert, err := repo.Get(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "fail to verify")
	}

	if _, err := repo.VerifyPEM(ctx, cert.Cert); err != nil {
		return nil, errors.Wrapf(err, "fail to verify %s", name)
	}

	return cert, nil
}

func (repo *repoImpl) VerifyPEM(ctx context.Context, certPEM []byte) (*x509.Certificate, error) {
	cert, err := x509x.ParseCertificate(certPEM)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to verify")
	}

	root, err := repo.rootCertificate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to verify")
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)
	if _, err := cert.Verify(x509.VerifyOptions{
		Roots:       roots,
		CurrentTime: repo.now(),
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to verify")
	}

	crlPEM, err := repo.store.ReadCRL(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return cert, nil
		}
		return nil, errors.Wrap(err, "fail to verify")
	}

	crl, err := repo.parseCRL(crlPEM, root)
	if err != nil {
		return nil, errors.Wrap(err, "fail to verify")
	}

	if x509x.IsRevoked(crl, cert.SerialNumber) {
		return nil, errors.Wrapf(types.ErrRevoked, "serial %s", cert.SerialNumber)
	}

	return cert, nil
}

func (repo *repoImpl) Get(ctx context.Context, name string) (*types.Certificate, error) {
	certPEM, err := repo.store.ReadCert(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "fail to get certificate")
	}

	cert, err := x509x.ParseCertificate(certPEM)
	if err != nil {
		return nil, types.Classify(types.ErrCryptoOperationFailed, err, "fail to get certificate")
	}

	keyPEM, err := repo.store.ReadKey(ctx, name)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, errors.Wrap(err, "fail to get certificate")
	}

	return &types.Certificate{
		Name:      name,
		Type:      entityTypeOf(cert),
		CN:        cert.Subject.CommonName,
		Serial:    cert.SerialNumber.Int64(),
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		Cert:      certPEM,
		Key:       keyPEM,
	}, nil
}

func entityTypeOf(cert *x509.Certificate) types.EntityType {
	switch {
	case cert.IsCA:
		return types.TypeRoot
	case fx.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageServerAuth):
		return types.TypeServer
	case fx.Contains(cert.ExtKeyUsage, x509.ExtKeyUsageClientAuth):
		return types.TypeClient
	}
	return types.TypeNone
}

func (repo *repoImpl) List(ctx context.Context) ([]*types.Certificate, error) {
	names, err := repo.store.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to list certificates")
	}

	certs := make([]*types.Certificate, 0, len(names))
	for _, name := range names {
		cert, err := repo.Get(ctx, name)
		if err != nil {
			return nil, errors.Wrap(err, "fail to list certificates")
		}
		certs = append(certs, cert)
	}

	return certs, nil
}

func (repo *repoImpl) History(ctx context.Context, opts index.ListOpt) ([]*index.Record, error) {
	return repo.index.List(ctx, opts)
}
