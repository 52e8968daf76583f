package certmanager

import (
	"crypto/x509/pkix"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"fsca/certmanager/index"
	"fsca/certmanager/profile"
	"fsca/certmanager/provider"
	"fsca/certmanager/repository"
	"fsca/certmanager/store"
	"fsca/certmanager/types"
	"fsca/config"
)

type (
	Interface    = repository.Interface
	Provider     = provider.Interface
	Store        = store.Interface
	Index        = index.Interface
	Unlocker     = repository.Unlocker
	Prompter     = repository.Prompter
	PrompterFunc = repository.PrompterFunc
	Options      = repository.Options

	EntityType  = types.EntityType
	Status      = types.Status
	Certificate = types.Certificate
	Revocation  = types.Revocation
	Record      = index.Record
	ListOpt     = index.ListOpt
)

const (
	TypeRoot   = types.TypeRoot
	TypeServer = types.TypeServer
	TypeClient = types.TypeClient

	StatusNone    = types.StatusNone
	StatusActive  = types.StatusActive
	StatusRevoked = types.StatusRevoked
)

// ParseStatus returns StatusNone for unknown status
func ParseStatus(s string) Status { return types.StrToStatus(s) }

var (
	ErrAlreadyExists         = types.ErrAlreadyExists
	ErrInvalidIdentity       = types.ErrInvalidIdentity
	ErrCryptoOperationFailed = types.ErrCryptoOperationFailed
	ErrWrongPassword         = types.ErrWrongPassword
	ErrNotFound              = types.ErrNotFound
	ErrStorageIO             = types.ErrStorageIO
	ErrRevoked               = types.ErrRevoked
	ErrLocked                = types.ErrLocked
	ErrIndexDisabled         = types.ErrIndexDisabled
)

func New(provider Provider, store Store, index Index, unlocker Unlocker, opts Options) Interface {
	return repository.New(provider, store, index, unlocker, opts)
}

func NativeProvider() Provider {
	return provider.Native(provider.KeyEncryption{Cipher: config.KeyCipher(), KDFIterations: config.KDFIterations()})
}

// FileStore returns store on dir of real filesystem
func FileStore(dir string) Store {
	return store.File(afero.NewOsFs(), dir, store.WithSerialFile(config.SerialFile()), store.WithCRLFile(config.CRLFile()))
}

// SQLIndex returns index of dburl, Null index if dburl is empty
func SQLIndex(dburl string) (Index, error) {
	if dburl == "" {
		return index.Null(), nil
	}
	return index.NewSQL(dburl)
}

// ConfigOptions returns issuance options from configuration
func ConfigOptions() Options {
	return Options{
		KeySize:            config.KeySize(),
		SignatureAlgorithm: config.SignatureAlgorithm(),
		RootName:           config.RootName(),
		RootCN:             config.RootCN(),
		Subject: pkix.Name{
			Country:            config.Country(),
			Province:           config.Province(),
			Locality:           config.Locality(),
			Organization:       config.Organization(),
			OrganizationalUnit: config.OrganizationalUnit(),
		},
		Durations: profile.Durations{
			Root:   config.ExpireRootDays(),
			Server: config.ExpireServerDays(),
			Client: config.ExpireClientDays(),
			CRL:    config.ExpireCRLDays(),
		},
	}
}

// NewFromConfig create certificate manager of the configured directory and index.
// prompter is asked for the root key password when the configured one does not decrypt it.
func NewFromConfig(prompter Prompter) (Interface, Store, error) {
	p := NativeProvider()
	s := FileStore(config.Dir())

	idx, err := SQLIndex(config.IndexDSN())
	if err != nil {
		return nil, nil, errors.Wrap(err, "fail to create certificate manager")
	}

	opts := ConfigOptions()
	unlocker := repository.NewUnlocker(p, s, prompter, repository.UnlockOptions{
		Name:     opts.RootName,
		Password: []byte(config.CAPassword()),
		Attempts: config.UnlockAttempts(),
	})

	return New(p, s, idx, unlocker, opts), s, nil
}
